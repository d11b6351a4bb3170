// Package persistence declares the typed storage contracts the core
// consumes but never implements: append-only logs, metrics counters, the
// feedback journal, pattern-weight storage, and signal-quality tracking.
package persistence

import (
	"context"
	"time"

	"github.com/marketintel/engine/internal/domain"
)

// LogLevel mirrors the append-only log contract's severity field.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one append-only log record.
type LogEntry struct {
	Level     LogLevel
	Message   string
	Details   map[string]interface{}
	Timestamp time.Time
}

// LogAppender is the append-only log sink contract.
type LogAppender interface {
	Append(ctx context.Context, entry LogEntry) error
}

// MetricsRecorder is the counter/timer update contract.
type MetricsRecorder interface {
	RecordResponseTime(ctx context.Context, operation string, responseTimeMs int64) error
	IncrementCounter(ctx context.Context, name string, labels map[string]string) error
}

// FeedbackJournal is the durable feedback-record store.
type FeedbackJournal interface {
	Append(ctx context.Context, rec domain.FeedbackRecord) error
	ReadByRefID(ctx context.Context, refID string) ([]domain.FeedbackRecord, error)
	ReadBatch(ctx context.Context, since time.Time, limit int) ([]domain.FeedbackRecord, error)
	RollingWindowStats(ctx context.Context, pattern string, window time.Duration) (domain.FeedbackStats, error)
}

// PatternWeightStore is the durable pattern-weight store.
type PatternWeightStore interface {
	Upsert(ctx context.Context, pw domain.PatternWeight) error
	ReadByName(ctx context.Context, name string) (domain.PatternWeight, error)
	ReadAll(ctx context.Context) ([]domain.PatternWeight, error)
}

// SignalQualityStore tracks emitted signals keyed by signal_id and their
// eventual rating on feedback arrival.
type SignalQualityStore interface {
	Upsert(ctx context.Context, sig domain.Signal) error
	UpdateRating(ctx context.Context, signalID string, rating domain.Rating) error
}

// Repository bundles the full persistence surface the core is handed at
// construction time; any field may be nil in a deployment that doesn't
// need that capability (e.g. a read-only analysis tool skips SignalQuality).
type Repository struct {
	Logs      LogAppender
	Metrics   MetricsRecorder
	Feedback  FeedbackJournal
	Patterns  PatternWeightStore
	Signals   SignalQualityStore
}
