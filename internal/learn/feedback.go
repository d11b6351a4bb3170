// Package learn implements the FeedbackLearner: it ingests FeedbackRecord
// events and mutates per-pattern weights that the confluence scorer reads
// on every subsequent evaluation.
package learn

import (
	"sync"
	"time"

	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
)

const maxAdjustmentHistory = 10

// Store holds the authoritative in-process view of every pattern's learned
// weight. Mutations are serialized per pattern_name via a coarse lock;
// reads may race and observe the most recently committed value.
type Store struct {
	mu       sync.RWMutex
	patterns map[string]*domain.PatternWeight
	seenRefs map[string]bool
	cfg      *config.Config
}

// NewStore builds an empty Store, seeding nothing: patterns are created on
// first feedback or first explicit Register call.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		patterns: make(map[string]*domain.PatternWeight),
		seenRefs: make(map[string]bool),
		cfg:      cfg,
	}
}

// Register ensures a pattern exists with its base weight, idempotently.
func (s *Store) Register(name string, baseWeight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[name]; ok {
		return
	}
	s.patterns[name] = &domain.PatternWeight{
		Name:          name,
		BaseWeight:    baseWeight,
		CurrentWeight: baseWeight,
		MinConfidence: 0.6,
	}
}

// Multiplier implements confluence.PatternWeightSource: current_weight /
// base_weight, or 1.0 if the pattern has never been observed.
func (s *Store) Multiplier(engine domain.EngineName) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pw, ok := s.patterns[string(engine)]
	if !ok || pw.BaseWeight == 0 {
		return 1.0
	}
	return pw.CurrentWeight / pw.BaseWeight
}

// MinConfidence implements confluence.PatternWeightSource.
func (s *Store) MinConfidence(engine domain.EngineName) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pw, ok := s.patterns[string(engine)]
	if !ok {
		return 0.6
	}
	return pw.MinConfidence
}

// Get returns a copy of a pattern's current state for reporting.
func (s *Store) Get(name string) (domain.PatternWeight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pw, ok := s.patterns[name]
	if !ok {
		return domain.PatternWeight{}, false
	}
	return *pw, true
}

// All returns a snapshot of every tracked pattern, for weekly reporting.
func (s *Store) All() []domain.PatternWeight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PatternWeight, 0, len(s.patterns))
	for _, pw := range s.patterns {
		out = append(out, *pw)
	}
	return out
}

// Learner subscribes to feedback and adjusts PatternWeight.current_weight.
type Learner struct {
	store *Store
	cfg   *config.Config

	mu       sync.Mutex
	byRef    map[string]domain.FeedbackRecord
	window   map[string][]domain.FeedbackRecord // pattern -> trailing records
}

// NewLearner builds a Learner writing into store, bounded by cfg's sentiment
// thresholds and learning velocity.
func NewLearner(store *Store, cfg *config.Config) *Learner {
	return &Learner{
		store:  store,
		cfg:    cfg,
		byRef:  make(map[string]domain.FeedbackRecord),
		window: make(map[string][]domain.FeedbackRecord),
	}
}

// RecordFeedback ingests one rating. Re-applying the same ref_id is a
// no-op, so retried feedback submissions never double-count.
func (l *Learner) RecordFeedback(rec domain.FeedbackRecord) {
	l.mu.Lock()
	if _, dup := l.byRef[rec.RefID]; dup {
		l.mu.Unlock()
		return
	}
	l.byRef[rec.RefID] = rec
	for _, pattern := range rec.PatternNamesUsed {
		l.window[pattern] = append(l.window[pattern], rec)
	}
	patterns := append([]string(nil), rec.PatternNamesUsed...)
	l.mu.Unlock()

	now := time.UnixMilli(rec.RecordedAtMs)
	for _, pattern := range patterns {
		l.reassess(pattern, now)
	}
}

// reassess recomputes trailing-7-day sentiment for a pattern and applies
// the threshold-based weight adjustment.
func (l *Learner) reassess(pattern string, now time.Time) {
	l.mu.Lock()
	cutoff := now.Add(-7 * 24 * time.Hour).UnixMilli()
	var kept []domain.FeedbackRecord
	var positive, negative int
	for _, r := range l.window[pattern] {
		if r.RecordedAtMs < cutoff {
			continue
		}
		kept = append(kept, r)
		if r.Rating == domain.RatingPositive {
			positive++
		} else {
			negative++
		}
	}
	l.window[pattern] = kept
	total := positive + negative
	l.mu.Unlock()

	if total < l.cfg.MinFeedbackThreshold {
		return
	}
	net := float64(positive-negative) / float64(total)

	l.store.Register(pattern, 1.0)
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	pw := l.store.patterns[pattern]
	pw.FeedbackStats = domain.FeedbackStats{Total: total, Positive: positive, Negative: negative, NetSentiment: net}

	var delta float64
	var reason string
	switch {
	case net < l.cfg.SentimentNegativeThreshold:
		delta = -minFloat(0.2, absFloat(net)*l.cfg.PatternLearningVelocity)
		pw.MinConfidence = minFloat(0.95, pw.MinConfidence+0.05)
		reason = "negative sentiment"
	case net > l.cfg.SentimentPositiveThreshold:
		delta = minFloat(0.2, net*l.cfg.PatternLearningVelocity)
		pw.MinConfidence = maxFloat(0.60, pw.MinConfidence-0.02)
		reason = "positive sentiment"
	default:
		return
	}

	newWeight := clampFloat(pw.CurrentWeight+delta, 0.1, 2.0)
	delta = newWeight - pw.CurrentWeight
	pw.CurrentWeight = newWeight
	pw.AdjustmentHistory = append(pw.AdjustmentHistory, domain.WeightAdjustment{
		AtMs:      now.UnixMilli(),
		Delta:     delta,
		Reason:    reason,
		NewWeight: newWeight,
	})
	if len(pw.AdjustmentHistory) > maxAdjustmentHistory {
		pw.AdjustmentHistory = pw.AdjustmentHistory[len(pw.AdjustmentHistory)-maxAdjustmentHistory:]
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
