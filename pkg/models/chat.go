// Package models defines the core data models for the AskGrid platform.
//
// The models in this package represent the central data structures shared
// across the chat services. They are designed for serialization (JSON),
// database persistence (db tags), and cross-service transport.
//
// Conversation model:
//
// A conversation is a sequence of [SessionMessage] records keyed by a
// session identifier. Each message carries a role (user or assistant),
// the message text, and UTC timestamps. Messages are append-only; edits
// are modeled as new messages.
//
// Feedback model:
//
// A [Vote] records caller feedback on one exchange: exactly one of
// upvote or downvote, with a count of +1 (recorded) or -1 (removed).
// The same shape expresses both casting and retracting feedback, so a
// retraction is not a delete but a compensating event.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Messages and sessions
// ---------------------------------------------------------------------------

// MessageRole identifies who authored a message in a conversation.
type MessageRole string

const (
	// RoleUser marks a message written by the end user.
	RoleUser MessageRole = "user"

	// RoleAssistant marks a generated reply.
	RoleAssistant MessageRole = "assistant"
)

// Valid reports whether the role is one of the recognized values.
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// SessionMessage is one turn of a conversation. Messages belong to a
// session and are ordered by CreatedAt.
type SessionMessage struct {
	// ID is the unique identifier for this message (UUID v4).
	ID string `json:"id" db:"id"`

	// SessionID groups messages into a conversation.
	SessionID string `json:"session_id" db:"session_id"`

	// Subject is the authenticated subject the session belongs to.
	// List and read operations are scoped by this field.
	Subject string `json:"subject" db:"subject"`

	// Role identifies the author: user or assistant.
	Role MessageRole `json:"role" db:"role"`

	// Content is the message text.
	Content string `json:"content" db:"content"`

	// CreatedAt is the UTC timestamp when the message was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewSessionMessage creates a message with a generated UUID and a UTC
// timestamp. Returns an error if any required field is empty or the
// role is unrecognized.
func NewSessionMessage(sessionID, subject string, role MessageRole, content string) (*SessionMessage, error) {
	if sessionID == "" {
		return nil, errors.New("models: message sessionID must not be empty")
	}
	if subject == "" {
		return nil, errors.New("models: message subject must not be empty")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("models: invalid message role %q", role)
	}
	if content == "" {
		return nil, errors.New("models: message content must not be empty")
	}
	return &SessionMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Subject:   subject,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Validate checks that all required fields are present. Returns the
// first validation error encountered, or nil if the message is valid.
func (m *SessionMessage) Validate() error {
	if m.ID == "" {
		return errors.New("models: message ID is required")
	}
	if m.SessionID == "" {
		return errors.New("models: message session ID is required")
	}
	if m.Subject == "" {
		return errors.New("models: message subject is required")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("models: invalid message role %q", m.Role)
	}
	if m.Content == "" {
		return errors.New("models: message content is required")
	}
	if m.CreatedAt.IsZero() {
		return errors.New("models: message created_at is required")
	}
	return nil
}

// SessionSummary is the listing shape for a conversation: identifiers,
// timestamps, and a message count, without the message bodies.
type SessionSummary struct {
	SessionID    string    `json:"session_id" db:"session_id"`
	Subject      string    `json:"subject" db:"subject"`
	MessageCount int       `json:"message_count" db:"message_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ---------------------------------------------------------------------------
// Votes
// ---------------------------------------------------------------------------

// Vote records caller feedback on one question/answer exchange.
//
// Exactly one of Upvote or Downvote must be 1; the other must be 0.
// Count is +1 when the feedback is being recorded and -1 when it is
// being removed. Reason and Comments only accompany downvotes.
type Vote struct {
	// ID is the unique identifier for this vote event (UUID v4).
	ID string `json:"id" db:"id"`

	// Subject is the authenticated subject who cast the vote.
	Subject string `json:"subject" db:"subject"`

	// UserQuery is the question the feedback refers to.
	UserQuery string `json:"user_query" db:"user_query"`

	// ChatbotResponse is the answer the feedback refers to.
	ChatbotResponse string `json:"chatbot_response" db:"chatbot_response"`

	// Upvote is 1 when this event concerns an upvote, otherwise 0.
	Upvote int `json:"upvote" db:"upvote"`

	// Downvote is 1 when this event concerns a downvote, otherwise 0.
	Downvote int `json:"downvote" db:"downvote"`

	// Count is +1 to record the vote, -1 to remove a prior vote.
	Count int `json:"count" db:"count"`

	// Reason is the selected reason for a downvote. Empty for upvotes.
	Reason string `json:"reason_multiple_choice,omitempty" db:"reason"`

	// Comments holds free-form feedback text for a downvote.
	Comments string `json:"additional_comments,omitempty" db:"comments"`

	// CreatedAt is the UTC timestamp when the vote was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewVote creates a vote event with a generated UUID and UTC timestamp,
// validating the up/down/count combination.
func NewVote(subject, userQuery, chatbotResponse string, upvote, downvote, count int) (*Vote, error) {
	v := &Vote{
		ID:              uuid.New().String(),
		Subject:         subject,
		UserQuery:       userQuery,
		ChatbotResponse: chatbotResponse,
		Upvote:          upvote,
		Downvote:        downvote,
		Count:           count,
		CreatedAt:       time.Now().UTC(),
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks the vote invariants. Returns the first validation
// error encountered, or nil if the vote is valid.
func (v *Vote) Validate() error {
	if v.ID == "" {
		return errors.New("models: vote ID is required")
	}
	if v.UserQuery == "" {
		return errors.New("models: vote user_query is required")
	}
	if v.Upvote != 0 && v.Upvote != 1 {
		return fmt.Errorf("models: upvote must be 0 or 1, got %d", v.Upvote)
	}
	if v.Downvote != 0 && v.Downvote != 1 {
		return fmt.Errorf("models: downvote must be 0 or 1, got %d", v.Downvote)
	}
	if v.Count != 1 && v.Count != -1 {
		return fmt.Errorf("models: count must be 1 or -1, got %d", v.Count)
	}
	if v.Upvote == 1 && v.Downvote == 1 {
		return errors.New("models: both upvote and downvote were recorded simultaneously")
	}
	if v.Upvote == 0 && v.Downvote == 0 {
		return errors.New("models: neither an upvote nor a downvote were recorded")
	}
	if v.CreatedAt.IsZero() {
		return errors.New("models: vote created_at is required")
	}
	return nil
}

// IsUpvote reports whether the event concerns an upvote.
func (v *Vote) IsUpvote() bool { return v.Upvote == 1 }

// IsRemoval reports whether the event retracts a previously recorded
// vote rather than casting a new one.
func (v *Vote) IsRemoval() bool { return v.Count == -1 }

// ---------------------------------------------------------------------------
// Retrieval and answers
// ---------------------------------------------------------------------------

// Passage is one retrieved chunk of source material, scored by the
// retrieval index.
type Passage struct {
	// ID identifies the chunk in the retrieval index.
	ID string `json:"id"`

	// SourceRef names the source document the chunk came from, in the
	// form bucket/object understood by the corpus store.
	SourceRef string `json:"source_ref"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Score is the retrieval similarity score, higher is closer.
	Score float32 `json:"score"`

	// Expanded marks passages added by citation-graph expansion rather
	// than direct retrieval.
	Expanded bool `json:"expanded,omitempty"`
}

// Citation points a generated answer back at the source material that
// supports it.
type Citation struct {
	// SourceRef names the cited source document.
	SourceRef string `json:"source_ref"`

	// Snippet is the supporting excerpt.
	Snippet string `json:"snippet,omitempty"`
}

// Answer is a generated reply with its supporting citations.
type Answer struct {
	// Content is the generated reply text.
	Content string `json:"content"`

	// Citations references the source material used to generate the
	// reply. May be empty when generation had no retrieval support.
	Citations []Citation `json:"citations,omitempty"`

	// GeneratedAt is the UTC timestamp when the reply was produced.
	GeneratedAt time.Time `json:"generated_at"`
}
