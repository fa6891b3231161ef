package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/askgrid/askgrid-core/pkg/auth"
	"github.com/askgrid/askgrid-core/pkg/clients/postgres"
	"github.com/askgrid/askgrid-core/pkg/clients/redis"
	agerr "github.com/askgrid/askgrid-core/pkg/errors"
	"github.com/askgrid/askgrid-core/pkg/models"
)

// Database is the relational surface the chat stores need. It is
// satisfied by [postgres.Client].
type Database interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Database = (*postgres.Client)(nil)

// HistoryCache is the cache surface for recent conversation history. It
// is satisfied by [redis.Client].
type HistoryCache interface {
	RPush(ctx context.Context, key string, values ...interface{}) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

var _ HistoryCache = (*redis.Client)(nil)

// SessionConfig tunes the recent-history cache.
type SessionConfig struct {
	// RecentWindow is the number of trailing messages kept per session
	// in the cache.
	RecentWindow int `json:"recent_window,omitempty" yaml:"recent_window" env:"SESSION_RECENT_WINDOW" envDefault:"20"`

	// CacheTTL is how long a session's recent-history list lives in the
	// cache after its last append.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl" env:"SESSION_CACHE_TTL" envDefault:"30m"`
}

// Default recent-history cache settings.
const (
	DefaultRecentWindow = 20
	DefaultCacheTTL     = 30 * time.Minute
)

func (c *SessionConfig) applyDefaults() {
	if c.RecentWindow == 0 {
		c.RecentWindow = DefaultRecentWindow
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// SessionService persists conversation messages and serves session
// history. Messages live in PostgreSQL; the trailing window of each
// session is mirrored into a Redis list so the ask pipeline can read
// recent turns without a database round trip.
//
// The cache is optional and strictly an accelerator: cache failures are
// logged and swallowed, and [SessionService.Recent] falls back to the
// database when the cache has nothing.
//
// All operations are scoped to the caller's subject. A session created
// by one subject is invisible to every other subject.
type SessionService struct {
	db     Database
	cache  HistoryCache
	config SessionConfig
}

// NewSessionService creates a SessionService. The database is required;
// pass a nil cache to disable recent-history caching.
func NewSessionService(db Database, cache HistoryCache, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, agerr.New(agerr.CodeValidation, "chat: session service requires a database")
	}
	cfg.applyDefaults()
	return &SessionService{db: db, cache: cache, config: cfg}, nil
}

// Append records one conversation turn. The message is written to the
// database first; the cache mirror is best-effort.
//
// Error codes returned:
//   - [agerr.CodeAuthentication]: nil identity
//   - [agerr.CodeValidation]: empty session ID or content, bad role
//   - database client codes on write failure
func (s *SessionService) Append(ctx context.Context, identity *auth.Identity, sessionID string, role models.MessageRole, content string) (*models.SessionMessage, error) {
	if identity == nil {
		return nil, agerr.New(agerr.CodeAuthentication, "chat: session append requires an authenticated caller")
	}

	msg, err := models.NewSessionMessage(sessionID, identity.Subject(), role, content)
	if err != nil {
		return nil, agerr.Wrap(err, agerr.CodeValidation, "chat: invalid session message")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO session_messages (id, session_id, subject, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.SessionID, msg.Subject, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.cacheAppend(ctx, msg)
	return msg, nil
}

// History returns the full message history of a session belonging to the
// caller, oldest first. An unknown session yields an empty slice.
func (s *SessionService) History(ctx context.Context, identity *auth.Identity, sessionID string) ([]models.SessionMessage, error) {
	if identity == nil {
		return nil, agerr.New(agerr.CodeAuthentication, "chat: session history requires an authenticated caller")
	}
	if sessionID == "" {
		return nil, agerr.New(agerr.CodeValidation, "chat: session ID must not be empty")
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, subject, role, content, created_at
		 FROM session_messages
		 WHERE session_id = $1 AND subject = $2
		 ORDER BY created_at, id`,
		sessionID, identity.Subject())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.SessionMessage
	for rows.Next() {
		var m models.SessionMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Subject, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, agerr.Wrap(err, agerr.CodeInternalDatabase,
				"chat: failed to scan session message")
		}
		m.Role = models.MessageRole(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, agerr.Wrap(err, agerr.CodeInternalDatabase,
			"chat: failed to read session messages")
	}
	return messages, nil
}

// Recent returns the trailing window of a session's messages, oldest
// first. The cache is consulted first; on a miss (or with no cache
// configured) the window is read from the database.
func (s *SessionService) Recent(ctx context.Context, identity *auth.Identity, sessionID string) ([]models.SessionMessage, error) {
	if identity == nil {
		return nil, agerr.New(agerr.CodeAuthentication, "chat: recent history requires an authenticated caller")
	}
	if sessionID == "" {
		return nil, agerr.New(agerr.CodeValidation, "chat: session ID must not be empty")
	}

	if s.cache != nil {
		if msgs, ok := s.cacheRead(ctx, identity.Subject(), sessionID); ok {
			return msgs, nil
		}
	}

	history, err := s.History(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}
	if len(history) > s.config.RecentWindow {
		history = history[len(history)-s.config.RecentWindow:]
	}
	return history, nil
}

// Sessions lists the caller's sessions as summaries, most recently
// updated first.
func (s *SessionService) Sessions(ctx context.Context, identity *auth.Identity) ([]models.SessionSummary, error) {
	if identity == nil {
		return nil, agerr.New(agerr.CodeAuthentication, "chat: session listing requires an authenticated caller")
	}

	rows, err := s.db.Query(ctx,
		`SELECT session_id, subject, count(*) AS message_count,
		        min(created_at) AS created_at, max(created_at) AS updated_at
		 FROM session_messages
		 WHERE subject = $1
		 GROUP BY session_id, subject
		 ORDER BY max(created_at) DESC`,
		identity.Subject())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		var sum models.SessionSummary
		if err := rows.Scan(&sum.SessionID, &sum.Subject, &sum.MessageCount, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, agerr.Wrap(err, agerr.CodeInternalDatabase,
				"chat: failed to scan session summary")
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, agerr.Wrap(err, agerr.CodeInternalDatabase,
			"chat: failed to read session summaries")
	}
	return summaries, nil
}

// recentKey is the cache key for a session's trailing message list. The
// subject is part of the key so cache reads inherit the same scoping as
// database reads.
func recentKey(subject, sessionID string) string {
	return fmt.Sprintf("chat:recent:%s:%s", subject, sessionID)
}

// cacheAppend mirrors a message into the session's recent-history list,
// trims the list to the configured window, and refreshes the TTL. All
// failures are logged and swallowed.
func (s *SessionService) cacheAppend(ctx context.Context, msg *models.SessionMessage) {
	if s.cache == nil {
		return
	}
	key := recentKey(msg.Subject, msg.SessionID)

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.WarnContext(ctx, "chat: failed to encode message for cache", "error", err)
		return
	}
	if _, err := s.cache.RPush(ctx, key, string(payload)); err != nil {
		slog.WarnContext(ctx, "chat: recent-history cache append failed", "error", err)
		return
	}
	if err := s.cache.LTrim(ctx, key, int64(-s.config.RecentWindow), -1); err != nil {
		slog.WarnContext(ctx, "chat: recent-history cache trim failed", "error", err)
	}
	if _, err := s.cache.Expire(ctx, key, s.config.CacheTTL); err != nil {
		slog.WarnContext(ctx, "chat: recent-history cache expire failed", "error", err)
	}
}

// cacheRead loads the recent-history list from the cache. The second
// return is false on any miss or failure, in which case the caller falls
// back to the database.
func (s *SessionService) cacheRead(ctx context.Context, subject, sessionID string) ([]models.SessionMessage, bool) {
	entries, err := s.cache.LRange(ctx, recentKey(subject, sessionID), 0, -1)
	if err != nil {
		slog.WarnContext(ctx, "chat: recent-history cache read failed", "error", err)
		return nil, false
	}
	if len(entries) == 0 {
		return nil, false
	}

	messages := make([]models.SessionMessage, 0, len(entries))
	for _, entry := range entries {
		var m models.SessionMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			slog.WarnContext(ctx, "chat: corrupt recent-history cache entry, falling back",
				"error", err)
			return nil, false
		}
		messages = append(messages, m)
	}
	return messages, true
}
