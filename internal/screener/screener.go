// Package screener implements the multi-symbol Screener: automatic
// batching, bounded parallelism, and fault-tolerant aggregate summarization.
package screener

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/marketintel/engine/internal/analyzer"
	"github.com/marketintel/engine/internal/breaker"
	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/universe"
)

// PairResult is one symbol's outcome: exactly one of Analysis or Failure
// is populated.
type PairResult struct {
	Pair           string
	Index          int
	OK             bool
	Analysis       *analyzer.Result
	FailureCategory domain.ErrorKind
	FailureMessage  string
	ProcessingTime time.Duration
}

// BatchSummary reports timing for one executed batch.
type BatchSummary struct {
	BatchIndex     int
	Symbols        []string
	ProcessingTime time.Duration
}

// Stats is the Screener's aggregate summary, order-independent.
type Stats struct {
	TotalRequested   int
	TotalProcessed   int
	TotalSucceeded   int
	TotalFailed      int
	SuccessRatePct   float64
	ProcessingTime   time.Duration
	BatchingUsed     bool
	BatchCount       int
	BatchSummaries   []BatchSummary
	SignalHistogram  map[domain.Classification]int
	AverageScore     float64
}

// Request is the Screen input.
type Request struct {
	Symbols        []string
	Timeframe      string
	IncludeDetails bool
	EnabledLayers  map[domain.EngineName]bool
	Regime         bool // true selects BatchSizeRegime instead of BatchSizeScreener
}

// Response is the full Screen output.
type Response struct {
	Results []PairResult
	Stats   Stats
}

// Screener fans PerPairAnalyzer out over many symbols with automatic
// batching above the configured batch size.
type Screener struct {
	analyzer  *analyzer.Analyzer
	validator *universe.Validator
	breakers  *breaker.Manager
	cfg       *config.Config
}

// New builds a Screener.
func New(a *analyzer.Analyzer, validator *universe.Validator, breakers *breaker.Manager, cfg *config.Config) *Screener {
	return &Screener{analyzer: a, validator: validator, breakers: breakers, cfg: cfg}
}

const maxSymbols = 100

// Screen validates, batches, and fans out req.Symbols, tolerating
// individual pair failures.
func (s *Screener) Screen(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	if len(req.Symbols) == 0 {
		return Response{}, domain.NewError(domain.KindValidation, "", "symbols list must not be empty", nil)
	}

	normalized, rejected := s.validator.NormalizeAll(req.Symbols)
	if len(normalized)+len(rejected) > maxSymbols {
		return Response{}, domain.NewError(domain.KindTooManySymbols, "", "too many symbols requested (max 100 after normalization)", nil)
	}

	batchSize := s.cfg.BatchSizeScreener
	if req.Regime {
		batchSize = s.cfg.BatchSizeRegime
	}

	indexOf := make(map[string]int, len(normalized))
	for i, sym := range normalized {
		indexOf[sym] = i
	}

	var results []PairResult
	var batchSummaries []BatchSummary
	batching := len(normalized) > batchSize

	err := s.breakers.Call(ctx, breaker.AggregateScope, func(ctx context.Context) error {
		batches := partition(normalized, batchSize)
		for bi, batch := range batches {
			bStart := time.Now()
			batchResults := s.runBatch(ctx, batch, req)
			for i := range batchResults {
				batchResults[i].Index = indexOf[batchResults[i].Pair]
			}
			results = append(results, batchResults...)
			batchSummaries = append(batchSummaries, BatchSummary{
				BatchIndex:     bi,
				Symbols:        batch,
				ProcessingTime: time.Since(bStart),
			})
			if bi < len(batches)-1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(s.cfg.BatchInterDelayMs) * time.Millisecond):
				}
			}
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	nextIndex := len(normalized)
	for sym, rejectErr := range rejected {
		results = append(results, PairResult{
			Pair:            sym,
			Index:           nextIndex,
			OK:              false,
			FailureCategory: domain.KindValidation,
			FailureMessage:  rejectErr.Error(),
		})
		nextIndex++
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	stats := summarize(results, len(req.Symbols), batching, len(batchSummaries), batchSummaries, time.Since(start))

	log.Info().Int("requested", stats.TotalRequested).Int("processed", stats.TotalProcessed).Bool("batching_used", stats.BatchingUsed).Msg("screen completed")

	return Response{Results: results, Stats: stats}, nil
}

func (s *Screener) runBatch(ctx context.Context, batch []string, req Request) []PairResult {
	out := make([]PairResult, len(batch))
	var mu sync.Mutex
	var wg errgroup.Group
	for i, sym := range batch {
		i, sym := i, sym
		wg.Go(func() error {
			pStart := time.Now()
			res, err := s.analyzer.Analyze(ctx, sym, req.Timeframe, analyzer.Options{
				IncludeDetails: req.IncludeDetails,
				EnabledLayers:  req.EnabledLayers,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				kind := domain.KindInternal
				if de, ok := err.(*domain.Error); ok {
					kind = de.Kind
				}
				out[i] = PairResult{Pair: sym, OK: false, FailureCategory: kind, FailureMessage: err.Error(), ProcessingTime: time.Since(pStart)}
				return nil
			}
			out[i] = PairResult{Pair: sym, OK: true, Analysis: &res, ProcessingTime: time.Since(pStart)}
			return nil
		})
	}
	_ = wg.Wait()
	return out
}

func partition(symbols []string, batchSize int) [][]string {
	var out [][]string
	for i := 0; i < len(symbols); i += batchSize {
		end := i + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[i:end])
	}
	return out
}

func summarize(results []PairResult, requested int, batching bool, batchCount int, summaries []BatchSummary, elapsed time.Duration) Stats {
	succeeded, failed := 0, 0
	histogram := make(map[domain.Classification]int)
	totalScore := 0.0
	for _, r := range results {
		if r.OK {
			succeeded++
			if r.Analysis != nil {
				histogram[r.Analysis.Confluence.Signal]++
				totalScore += r.Analysis.Confluence.OverallScore
			}
		} else {
			failed++
		}
	}
	processed := succeeded + failed
	avgScore := 0.0
	if succeeded > 0 {
		avgScore = totalScore / float64(succeeded)
	}
	successRate := 0.0
	if processed > 0 {
		successRate = float64(succeeded) / float64(processed) * 100
	}

	return Stats{
		TotalRequested:  requested,
		TotalProcessed:  processed,
		TotalSucceeded:  succeeded,
		TotalFailed:     failed,
		SuccessRatePct:  successRate,
		ProcessingTime:  elapsed,
		BatchingUsed:    batching,
		BatchCount:      batchCount,
		BatchSummaries:  summaries,
		SignalHistogram: histogram,
		AverageScore:    avgScore,
	}
}
