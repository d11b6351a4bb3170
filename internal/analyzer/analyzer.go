// Package analyzer implements PerPairAnalyzer: orchestrates gateway fetch,
// the eight indicator engines, and the confluence scorer for one pair.
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/marketintel/engine/internal/breaker"
	"github.com/marketintel/engine/internal/confluence"
	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
	"github.com/marketintel/engine/internal/indicators"
	"github.com/marketintel/engine/internal/signal"
	"github.com/marketintel/engine/internal/universe"
)

var criticalEngines = map[domain.EngineName]bool{
	domain.EngineMarketStructure: true,
	domain.EngineCVD:             true,
	domain.EngineMomentum:        true,
}

// Options controls a single Analyze call.
type Options struct {
	Limit           int
	IncludeDetails  bool
	EnabledLayers   map[domain.EngineName]bool // nil = all enabled
}

// Result is the full output of one PerPairAnalyzer invocation.
type Result struct {
	Pair            string
	Confluence      domain.ConfluenceResult
	Signal          domain.Signal
	DegradedLayers  []domain.EngineName
	ProcessingTime  time.Duration
}

// Analyzer wires together the gateway, engines, scorer, enricher, and
// per-pair circuit breaker for Analyze.
type Analyzer struct {
	gateway   gateway.MarketDataGateway
	scorer    *confluence.Scorer
	enricher  *signal.Enricher
	breakers  *breaker.Manager
	validator *universe.Validator
	cfg       *config.Config
	engines   []indicators.Engine
}

// New builds an Analyzer.
func New(gw gateway.MarketDataGateway, scorer *confluence.Scorer, enricher *signal.Enricher, breakers *breaker.Manager, validator *universe.Validator, cfg *config.Config) *Analyzer {
	return &Analyzer{
		gateway:   gw,
		scorer:    scorer,
		enricher:  enricher,
		breakers:  breakers,
		validator: validator,
		cfg:       cfg,
		engines:   indicators.All(),
	}
}

// Analyze runs the full per-pair pipeline for rawPair+rawTF.
func (a *Analyzer) Analyze(ctx context.Context, rawPair string, rawTF string, opts Options) (Result, error) {
	start := time.Now()

	pair, err := a.validator.Validate(rawPair)
	if err != nil {
		return Result{}, err
	}
	tf, ok := domain.NormalizeTimeframe(rawTF)
	if !ok {
		return Result{}, domain.NewError(domain.KindValidation, pair, "unrecognized timeframe: "+rawTF, nil)
	}

	var result Result
	err = a.breakers.Call(ctx, pair, func(ctx context.Context) error {
		r, analyzeErr := a.analyzeLocked(ctx, pair, tf, opts)
		if analyzeErr != nil {
			return analyzeErr
		}
		result = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	result.ProcessingTime = time.Since(start)
	return result, nil
}

func (a *Analyzer) analyzeLocked(ctx context.Context, pair string, tf domain.Timeframe, opts Options) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	snap, fetchErr := a.fetchSnapshot(ctx, pair, tf, limit)
	if fetchErr != nil {
		return Result{}, fetchErr
	}

	outputs := a.runEngines(snap, opts.EnabledLayers)

	unavailableCritical := 0
	for _, o := range outputs {
		if o.Unavailable && criticalEngines[o.Engine] {
			unavailableCritical++
		}
	}
	if unavailableCritical >= 2 {
		return Result{}, domain.NewError(domain.KindServiceUnavailable, pair, "two or more critical engines unavailable", nil)
	}

	result := a.scorer.Score(outputs, tf, time.Now())

	quote := signal.PriceQuote{Price: snap.Ticker.Price}
	if total := depthTotal(snap.OrderBook); total > 0 {
		quote.BookImbalance = depthOf(snap.OrderBook.Bids) / total
	}

	evidence := buildEvidence(outputs)
	sig := a.enricher.Enrich(pair, tf, result, quote, evidence, time.Now())

	log.Debug().Str("pair", pair).Str("tf", string(tf)).Float64("score", result.OverallScore).Str("signal", string(result.Signal)).Msg("analyzed pair")

	return Result{
		Pair:           pair,
		Confluence:     result,
		Signal:         sig,
		DegradedLayers: result.DegradedLayers,
	}, nil
}

func (a *Analyzer) runEngines(snap gateway.Snapshot, enabled map[domain.EngineName]bool) []domain.IndicatorOutput {
	outputs := make([]domain.IndicatorOutput, len(a.engines))
	var wg errgroup.Group
	for i, eng := range a.engines {
		i, eng := i, eng
		wg.Go(func() error {
			if enabled != nil && !enabled[eng.Name()] {
				outputs[i] = domain.IndicatorOutput{Engine: eng.Name(), Unavailable: true}
				return nil
			}
			outputs[i] = eng.Compute(snap)
			return nil
		})
	}
	_ = wg.Wait()
	return outputs
}

// fetchSnapshot concurrently gathers every gateway input. A gateway error on
// a soft-optional input degrades the snapshot rather than failing the pair;
// candle or ticker errors are always treated as critical.
func (a *Analyzer) fetchSnapshot(ctx context.Context, pair string, tf domain.Timeframe, limit int) (gateway.Snapshot, error) {
	snap := gateway.Snapshot{Pair: pair, Timeframe: tf}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		candles, err := a.gateway.Candles(gctx, pair, tf, limit)
		if err != nil {
			return domain.NewError(domain.KindTimeout, pair, "candles fetch failed", err)
		}
		snap.Candles = candles
		return nil
	})
	g.Go(func() error {
		ticker, err := a.gateway.Ticker(gctx, pair)
		if err != nil {
			return domain.NewError(domain.KindTimeout, pair, "ticker fetch failed", err)
		}
		snap.Ticker = ticker
		return nil
	})
	g.Go(func() error {
		trades, err := a.gateway.Trades(gctx, pair, 200)
		if err != nil {
			snap.MissingTrades = true
			return nil
		}
		snap.Trades = trades
		return nil
	})
	g.Go(func() error {
		book, err := a.gateway.OrderBook(gctx, pair)
		if err != nil {
			snap.MissingBook = true
			return nil
		}
		snap.OrderBook = book
		return nil
	})
	g.Go(func() error {
		funding, err := a.gateway.FundingRate(gctx, pair)
		if err != nil {
			snap.MissingFunding = true
			return nil
		}
		snap.Funding = funding
		hist, histErr := a.gateway.FundingHistory(gctx, pair, 30)
		if histErr == nil {
			snap.FundingHist = hist
		}
		return nil
	})
	g.Go(func() error {
		oi, err := a.gateway.OpenInterest(gctx, pair)
		if err != nil {
			snap.MissingOI = true
			return nil
		}
		snap.OI = oi
		hist, histErr := a.gateway.OpenInterestHistory(gctx, pair, 24)
		if histErr == nil {
			snap.OIHist = hist
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return gateway.Snapshot{}, err
	}
	return snap, nil
}

func depthTotal(ob domain.OrderBook) float64 {
	return depthOf(ob.Bids) + depthOf(ob.Asks)
}

func depthOf(levels []domain.PriceLevel) float64 {
	total := 0.0
	for _, l := range levels {
		total += l.Size
	}
	return total
}

func buildEvidence(outputs []domain.IndicatorOutput) map[string]string {
	evidence := make(map[string]string, len(outputs))
	for _, o := range outputs {
		if o.Unavailable {
			continue
		}
		evidence[string(o.Engine)] = string(o.Lean)
	}
	return evidence
}
