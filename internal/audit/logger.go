package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry. Entries are persisted in the
// same transaction as the change they describe and mirrored to the log.
type Entry struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Action      string         `json:"action"`
	ActorUserID string         `json:"actor_user_id,omitempty"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Before      map[string]any `json:"before,omitempty"`
	After       map[string]any `json:"after,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
}

// NewEntry builds an entry with a fresh ULID and timestamp. The client IP is
// taken from ctx when the request middleware stored one.
func NewEntry(ctx context.Context, action, actorUserID, entityType, entityID string) Entry {
	return Entry{
		ID:          ulid.Make().String(),
		Timestamp:   time.Now().UTC(),
		Action:      action,
		ActorUserID: actorUserID,
		EntityType:  entityType,
		EntityID:    entityID,
		IPAddress:   IPFromContext(ctx),
	}
}

// WithBefore sets the pre-change snapshot.
func (e Entry) WithBefore(before map[string]any) Entry {
	e.Before = before
	return e
}

// WithAfter sets the post-change snapshot.
func (e Entry) WithAfter(after map[string]any) Entry {
	e.After = after
	return e
}

// Logger mirrors committed audit entries to structured logs.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "audit").Logger()}
}

// Log writes an audit entry to the log output
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.logger.Info().
		Interface("audit", entry).
		Msg(entry.Action)
}

// ClientIP gets the client IP from request headers or RemoteAddr
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type contextKey string

const ipKey contextKey = "auditIP"

// WithIP stores the client IP for entries created further down the call chain.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey, ip)
}

// IPFromContext returns the client IP stored by WithIP, or "".
func IPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey).(string); ok {
		return ip
	}
	return ""
}
