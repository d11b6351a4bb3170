package screener

import (
	"context"
	"testing"
	"time"

	"github.com/marketintel/engine/internal/analyzer"
	"github.com/marketintel/engine/internal/breaker"
	"github.com/marketintel/engine/internal/confluence"
	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/fixture"
	"github.com/marketintel/engine/internal/learn"
	"github.com/marketintel/engine/internal/signal"
	"github.com/marketintel/engine/internal/universe"
)

func buildScreener(cfg *config.Config) *Screener {
	patterns := learn.NewStore(cfg)
	scorer := confluence.NewScorer(patterns)
	enricher := signal.NewEnricher(cfg)
	breakers := breaker.NewManager(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown())
	validator := universe.NewValidator(universe.DefaultPairs)
	az := analyzer.New(fixture.New(), scorer, enricher, breakers, validator, cfg)
	return New(az, validator, breakers, cfg)
}

func TestScreenRejectsEmptySymbolList(t *testing.T) {
	s := buildScreener(config.Default())
	_, err := s.Screen(context.Background(), Request{Symbols: nil, Timeframe: "1h"})
	if err == nil {
		t.Fatal("expected an empty symbol list to be rejected")
	}
}

func TestScreenRejectsOver100Symbols(t *testing.T) {
	s := buildScreener(config.Default())
	// 101 distinct unrecognized symbols: each lands in the rejected map under
	// its own key, so the post-normalization count still exceeds the cap.
	syms := make([]string, 101)
	for i := range syms {
		syms[i] = "ZQ" + string(rune('A'+i%26)) + string(rune('0'+i/26))
	}
	_, err := s.Screen(context.Background(), Request{Symbols: syms, Timeframe: "1h"})
	if err == nil {
		t.Fatal("expected a request exceeding 100 distinct symbols to be rejected")
	}
	if de, ok := err.(*domain.Error); !ok || de.Kind != domain.KindTooManySymbols {
		t.Errorf("expected KindTooManySymbols, got %v", err)
	}
}

func TestScreenDedupesKnownSymbolsBeforeCountingCap(t *testing.T) {
	s := buildScreener(config.Default())
	known := []string{"BTC", "ETH", "SOL", "XRP", "BNB"}
	syms := make([]string, 20)
	for i := range syms {
		syms[i] = known[i%len(known)]
	}
	_, err := s.Screen(context.Background(), Request{Symbols: syms, Timeframe: "1h"})
	if err != nil {
		t.Fatalf("a cycled list of 5 known symbols should dedupe under the cap, got %v", err)
	}
}

func TestScreenTotalProcessedEqualsSucceededPlusFailed(t *testing.T) {
	s := buildScreener(config.Default())
	resp, err := s.Screen(context.Background(), Request{
		Symbols:   []string{"BTC", "ETH", "not-a-real-symbol"},
		Timeframe: "1h",
	})
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if resp.Stats.TotalProcessed != resp.Stats.TotalSucceeded+resp.Stats.TotalFailed {
		t.Errorf("total_processed (%d) != succeeded (%d) + failed (%d)",
			resp.Stats.TotalProcessed, resp.Stats.TotalSucceeded, resp.Stats.TotalFailed)
	}
	if resp.Stats.TotalFailed == 0 {
		t.Error("expected the unrecognized symbol to produce at least one failure")
	}
}

func TestScreenEnablesBatchingAboveConfiguredSize(t *testing.T) {
	cfg := config.Default()
	cfg.BatchSizeScreener = 2
	cfg.BatchInterDelayMs = 100
	s := buildScreener(cfg)

	resp, err := s.Screen(context.Background(), Request{
		Symbols:   []string{"BTC", "ETH", "SOL", "XRP", "BNB"},
		Timeframe: "1h",
	})
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if !resp.Stats.BatchingUsed {
		t.Error("expected batching_used=true for 5 symbols with batch size 2")
	}
	if resp.Stats.BatchCount != 3 {
		t.Errorf("expected 3 batches of size 2,2,1 got %d", resp.Stats.BatchCount)
	}
}

func TestScreenResultsPreserveRequestOrder(t *testing.T) {
	s := buildScreener(config.Default())
	syms := []string{"SOL", "BTC", "ETH"}
	resp, err := s.Screen(context.Background(), Request{Symbols: syms, Timeframe: "1h"})
	if err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	for i, r := range resp.Results {
		if r.Pair != syms[i] {
			t.Errorf("result[%d] = %s, want %s (results should preserve request order)", i, r.Pair, syms[i])
		}
	}
}

func TestScreenInterBatchDelayRespectsCancellation(t *testing.T) {
	cfg := config.Default()
	cfg.BatchSizeScreener = 1
	cfg.BatchInterDelayMs = 1000
	s := buildScreener(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Screen(ctx, Request{Symbols: []string{"BTC", "ETH"}, Timeframe: "1h"})
	if err == nil {
		t.Error("expected cancellation during the inter-batch delay to surface an error")
	}
}
