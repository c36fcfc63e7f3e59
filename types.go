package aegis

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/flowforge-io/aegis/internal/audit"
	internalmetrics "github.com/flowforge-io/aegis/internal/metrics"
)

// Principal is a read-only snapshot of a user as seen by the external
// directory. The token and rbac subsystems only ever read it; ownership of
// the record stays with the [UserDirectory].
type Principal struct {
	UserID      string
	Email       string
	Role        string
	Permissions []string
	TeamID      string
	MFAEnabled  bool
	MFAVerified bool
}

// Session is the server-side record backing a refresh token. It is keyed
// by session id; the refresh token itself is never stored, only its hash.
type Session struct {
	ID          string
	UserID      string
	RefreshHash string
	IP          string
	UserAgent   string
	DeviceID    string
	CreatedAt   time.Time
	LastUsedAt  time.Time
	ExpiresAt   time.Time
}

// UserDirectory is the caller-supplied user store. Lookups must honor ctx
// cancellation; a slow directory must not stall the request pipeline.
type UserDirectory interface {
	GetByID(ctx context.Context, userID string) (Principal, error)
	GetByEmail(ctx context.Context, email string) (Principal, error)
	Create(ctx context.Context, p Principal) (Principal, error)
	Update(ctx context.Context, p Principal) (Principal, error)
}

// SessionStore is the caller-supplied session persistence. The engine
// treats it as the source of truth for session liveness: deleting a
// session is the hard revocation path that the blacklist alone cannot
// provide (the blacklist has no index by user id).
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (Session, error)
	TouchLastUsed(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// SMSSender delivers a one-time code to a phone number. Delivery is
// fire-and-forget: a send failure does not fail challenge creation.
type SMSSender interface {
	Send(ctx context.Context, to, code string) error
}

// EmailSender delivers a one-time code to an email address. Same
// fire-and-forget contract as [SMSSender].
type EmailSender interface {
	Send(ctx context.Context, to, code string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events, one
// per line, to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

// Metrics holds atomic counters shared by all engine subsystems.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
