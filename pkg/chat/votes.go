package chat

import (
	"context"
	"log/slog"

	"github.com/askgrid/askgrid-core/pkg/auth"
	agerr "github.com/askgrid/askgrid-core/pkg/errors"
	"github.com/askgrid/askgrid-core/pkg/models"
)

// VoteRequest carries one feedback event from the caller: casting or
// retracting an upvote or downvote on a question/answer exchange.
type VoteRequest struct {
	// UserQuery is the question the feedback refers to.
	UserQuery string `json:"user_query"`

	// ChatbotResponse is the answer the feedback refers to.
	ChatbotResponse string `json:"chatbot_response"`

	// Upvote is 1 when the event concerns an upvote, otherwise 0.
	Upvote int `json:"upvote"`

	// Downvote is 1 when the event concerns a downvote, otherwise 0.
	Downvote int `json:"downvote"`

	// Count is +1 to record the vote, -1 to remove a prior vote.
	Count int `json:"count"`

	// Reason is the selected reason for a downvote. Ignored for upvotes.
	Reason string `json:"reason_multiple_choice,omitempty"`

	// Comments holds free-form feedback text for a downvote.
	Comments string `json:"additional_comments,omitempty"`
}

// VoteService validates and persists answer feedback.
type VoteService struct {
	db Database
}

// NewVoteService creates a VoteService backed by the given database.
func NewVoteService(db Database) (*VoteService, error) {
	if db == nil {
		return nil, agerr.New(agerr.CodeValidation, "chat: vote service requires a database")
	}
	return &VoteService{db: db}, nil
}

// Record validates and stores one feedback event, and logs it under its
// event name (UPVOTE_RECORDED, UPVOTE_REMOVED, DOWNVOTE_RECORDED,
// DOWNVOTE_REMOVED).
//
// Error codes returned:
//   - [agerr.CodeAuthentication]: nil identity
//   - [agerr.CodeValidation]: invalid up/down/count combination
//   - database client codes on write failure
func (s *VoteService) Record(ctx context.Context, identity *auth.Identity, req VoteRequest) (*models.Vote, error) {
	if identity == nil {
		return nil, agerr.New(agerr.CodeAuthentication, "chat: recording a vote requires an authenticated caller")
	}

	vote, err := models.NewVote(identity.Subject(), req.UserQuery, req.ChatbotResponse,
		req.Upvote, req.Downvote, req.Count)
	if err != nil {
		return nil, agerr.Wrap(err, agerr.CodeValidation, "chat: invalid vote")
	}
	if vote.Downvote == 1 {
		vote.Reason = req.Reason
		vote.Comments = req.Comments
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO votes (id, subject, user_query, chatbot_response, upvote, downvote, count, reason, comments, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		vote.ID, vote.Subject, vote.UserQuery, vote.ChatbotResponse,
		vote.Upvote, vote.Downvote, vote.Count, vote.Reason, vote.Comments, vote.CreatedAt)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "chat: feedback recorded",
		"event", voteEvent(vote),
		"subject", vote.Subject)
	return vote, nil
}

// Export returns every stored feedback event, newest first. It backs the
// admin-only feedback-export route; authorization is enforced by the
// route's guard, not here.
func (s *VoteService) Export(ctx context.Context) ([]models.Vote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, subject, user_query, chatbot_response, upvote, downvote, count, reason, comments, created_at
		 FROM votes
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.Subject, &v.UserQuery, &v.ChatbotResponse,
			&v.Upvote, &v.Downvote, &v.Count, &v.Reason, &v.Comments, &v.CreatedAt); err != nil {
			return nil, agerr.Wrap(err, agerr.CodeInternalDatabase,
				"chat: failed to scan vote")
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, agerr.Wrap(err, agerr.CodeInternalDatabase,
			"chat: failed to read votes")
	}
	return votes, nil
}

// voteEvent names the feedback event for structured logging.
func voteEvent(v *models.Vote) string {
	switch {
	case v.IsUpvote() && !v.IsRemoval():
		return "UPVOTE_RECORDED"
	case v.IsUpvote():
		return "UPVOTE_REMOVED"
	case v.IsRemoval():
		return "DOWNVOTE_REMOVED"
	default:
		return "DOWNVOTE_RECORDED"
	}
}
