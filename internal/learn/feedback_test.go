package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
)

func recordAt(refID string, rating domain.Rating, patterns []string, at time.Time) domain.FeedbackRecord {
	return domain.FeedbackRecord{
		RefID:            refID,
		Rating:           rating,
		PatternNamesUsed: patterns,
		RecordedAtMs:     at.UnixMilli(),
	}
}

func TestRecordFeedbackIsIdempotentByRefID(t *testing.T) {
	cfg := config.Default()
	store := NewStore(cfg)
	learner := NewLearner(store, cfg)
	now := time.Now()

	rec := recordAt("sig-1", domain.RatingNegative, []string{"momentum"}, now)
	for i := 0; i < 3; i++ {
		learner.RecordFeedback(rec)
	}

	pw, ok := store.Get("momentum")
	require.True(t, ok, "expected pattern momentum to be registered after feedback")
	assert.Equal(t, 1, pw.FeedbackStats.Total, "re-applying the same ref_id should be a no-op")
}

func TestNegativeSentimentLowersWeightWithinBound(t *testing.T) {
	cfg := config.Default()
	store := NewStore(cfg)
	learner := NewLearner(store, cfg)
	now := time.Now()

	for i := 0; i < 10; i++ {
		rec := recordAt(uniqueRef("neg", i), domain.RatingNegative, []string{"cvd"}, now)
		learner.RecordFeedback(rec)
	}

	pw, ok := store.Get("cvd")
	require.True(t, ok, "expected pattern cvd to be registered after feedback")
	assert.Less(t, pw.CurrentWeight, 1.0, "expected weight to decrease after sustained negative sentiment")
	for _, adj := range pw.AdjustmentHistory {
		assert.InDelta(t, 0, adj.Delta, 0.2, "adjustment delta exceeds the +/-0.2 bound")
	}
	assert.GreaterOrEqual(t, pw.CurrentWeight, 0.1)
	assert.LessOrEqual(t, pw.CurrentWeight, 2.0)
}

func TestPositiveSentimentRaisesWeightWithinBound(t *testing.T) {
	cfg := config.Default()
	store := NewStore(cfg)
	learner := NewLearner(store, cfg)
	now := time.Now()

	for i := 0; i < 10; i++ {
		rec := recordAt(uniqueRef("pos", i), domain.RatingPositive, []string{"funding"}, now)
		learner.RecordFeedback(rec)
	}

	pw, ok := store.Get("funding")
	if !ok {
		t.Fatal("expected pattern funding to be registered after feedback")
	}
	if pw.CurrentWeight <= 1.0 {
		t.Errorf("expected weight to increase after sustained positive sentiment, got %v", pw.CurrentWeight)
	}
}

func TestBelowMinFeedbackThresholdSkipsAdjustment(t *testing.T) {
	cfg := config.Default()
	store := NewStore(cfg)
	learner := NewLearner(store, cfg)
	now := time.Now()

	rec := recordAt("only-one", domain.RatingNegative, []string{"oi"}, now)
	learner.RecordFeedback(rec)

	if _, ok := store.Get("oi"); ok {
		t.Error("a single feedback record below min_feedback_threshold should not register the pattern")
	}
}

func TestMultiplierDefaultsToOneForUnknownPattern(t *testing.T) {
	store := NewStore(config.Default())
	if m := store.Multiplier("never_seen"); m != 1.0 {
		t.Errorf("Multiplier for an unregistered pattern should default to 1.0, got %v", m)
	}
}

func uniqueRef(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i))
}
