// Package signal turns a ConfluenceResult plus current price into an
// executable Signal: stop loss, take profits, position sizing, and an
// order-book reality check on the stated direction.
package signal

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
)

var rMultiples = []float64{0.5, 1.0, 1.5}

var stopDistanceByStrength = map[domain.Strength]float64{
	domain.StrengthVeryStrong: 0.010,
	domain.StrengthStrong:     0.012,
	domain.StrengthModerate:   0.015,
	domain.StrengthWeak:       0.020,
}

// PriceQuote is the minimal current-price input the enricher needs; a zero
// Price means the gateway's ticker was unavailable.
type PriceQuote struct {
	Price          float64
	BidSize        float64
	AskSize        float64
	BookImbalance  float64 // bid depth / (bid+ask depth), 0.5 = balanced
}

// Enricher builds Signal values from confluence results.
type Enricher struct {
	cfg *config.Config
}

// NewEnricher builds an Enricher reading risk/reward and sizing defaults
// from cfg.
func NewEnricher(cfg *config.Config) *Enricher {
	return &Enricher{cfg: cfg}
}

// Enrich produces a Signal for pair/tf from result and quote. When
// quote.Price is 0 (price unavailable), the enricher refuses to fabricate
// a placeholder: it returns a zero recommended size and marks
// Signal.Incomplete instead.
func (e *Enricher) Enrich(pair string, tf domain.Timeframe, result domain.ConfluenceResult, quote PriceQuote, degradedLayerEvidence map[string]string, now time.Time) domain.Signal {
	bias := biasFromClassification(result.Signal)
	strength := strengthFromScore(result.OverallScore)
	confidence := clamp(math.Abs(result.OverallScore), 0, 100)

	sig := domain.Signal{
		SignalID:    uuid.New().String(),
		Pair:        pair,
		Timeframe:   tf,
		Bias:        bias,
		Confidence:  confidence,
		Strength:    strength,
		MaxHolding:  maxHoldingFor(tf),
		CreatedAtMs: now.UnixMilli(),
	}

	if quote.Price <= 0 {
		sig.Incomplete = true
		sig.RecommendedSizeFraction = 0
		sig.Reasoning = e.buildReasoning(result, degradedLayerEvidence)
		return sig
	}

	sig.Entry = quote.Price

	if result.LiquidityTier == "illiquid" {
		sig.Bias = domain.BiasNeutral
		sig.Reasoning = e.buildReasoning(result, degradedLayerEvidence)
		return sig
	}

	if bias != domain.BiasNeutral {
		sd := stopDistanceByStrength[strength]
		if sd == 0 {
			sd = 0.015
		}
		if bias == domain.BiasLong {
			sig.StopLoss = quote.Price * (1 - sd)
		} else {
			sig.StopLoss = quote.Price * (1 + sd)
		}

		rr := e.cfg.DefaultRiskReward
		stopDist := math.Abs(quote.Price - sig.StopLoss)
		for _, mult := range rMultiples {
			tpDist := stopDist * rr * mult
			if bias == domain.BiasLong {
				sig.TakeProfits = append(sig.TakeProfits, quote.Price+tpDist)
			} else {
				sig.TakeProfits = append(sig.TakeProfits, quote.Price-tpDist)
			}
		}
		if len(sig.TakeProfits) > 0 {
			sig.RiskReward = math.Abs(sig.TakeProfits[0]-quote.Price) / stopDist
		}

		sizeFraction := 0.10 * (confidence / 100) * (result.OverallScore / 100)
		if sizeFraction < 0 {
			sizeFraction = -sizeFraction
		}
		sig.RecommendedSizeFraction = clamp(sizeFraction, 0, 0.3)

		riskAmount := e.cfg.AccountEquity * (e.cfg.RiskPerTradePercent / 100)
		sig.SizeCoins = riskAmount / stopDist

		sig.InvalidationConditions = invalidationConditions(bias)
	}

	sig.Reasoning = e.buildReasoning(result, degradedLayerEvidence)
	e.realityCheck(&sig, quote)

	return sig
}

func biasFromClassification(c domain.Classification) domain.Bias {
	switch c {
	case domain.ClassStrongBuy, domain.ClassBuy:
		return domain.BiasLong
	case domain.ClassStrongSell, domain.ClassSell:
		return domain.BiasShort
	default:
		return domain.BiasNeutral
	}
}

func strengthFromScore(overall float64) domain.Strength {
	mag := math.Abs(overall)
	switch {
	case mag > 70:
		return domain.StrengthVeryStrong
	case mag > 50:
		return domain.StrengthStrong
	case mag > 20:
		return domain.StrengthModerate
	default:
		return domain.StrengthWeak
	}
}

func maxHoldingFor(tf domain.Timeframe) time.Duration {
	ms := tf.IntervalMillis()
	if ms == 0 {
		ms = int64(domain.TF1h.IntervalMillis())
	}
	return time.Duration(ms*20) * time.Millisecond
}

func invalidationConditions(bias domain.Bias) []string {
	switch bias {
	case domain.BiasLong:
		return []string{"close beyond stop", "CVD flips bearish", "open interest reverses down"}
	case domain.BiasShort:
		return []string{"close beyond stop", "CVD flips bullish", "open interest reverses up"}
	default:
		return nil
	}
}

func (e *Enricher) buildReasoning(result domain.ConfluenceResult, evidence map[string]string) domain.Reasoning {
	type scored struct {
		engine domain.EngineName
		mag    float64
	}
	var ranked []scored
	for engine, signed := range result.PerLayerScores {
		ranked = append(ranked, scored{engine, math.Abs(signed)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].mag > ranked[j].mag })

	top := ranked
	if len(top) > 3 {
		top = top[:3]
	}
	var primary []string
	support := make(map[string]string)
	for _, r := range top {
		primary = append(primary, string(r.engine))
		if ev, ok := evidence[string(r.engine)]; ok {
			support[string(r.engine)] = ev
		}
	}

	// Reality check: drop any primary factor missing supporting evidence.
	var keptPrimary []string
	for _, p := range primary {
		if _, ok := support[p]; ok {
			keptPrimary = append(keptPrimary, p)
		}
	}

	var riskFactors []string
	if result.RiskLevel == domain.RiskHigh {
		riskFactors = append(riskFactors, "elevated volatility or liquidation risk")
	}
	for _, d := range result.DegradedLayers {
		riskFactors = append(riskFactors, fmt.Sprintf("%s degraded", d))
	}

	return domain.Reasoning{
		PrimaryFactors:     keptPrimary,
		SupportingEvidence: support,
		RiskFactors:        riskFactors,
		MarketContext:      fmt.Sprintf("%s classification at score %.1f over %s", result.Signal, result.OverallScore, result.Timeframe),
	}
}

// realityCheck rewrites bias to neutral and caps confidence at 60 when the
// stated direction conflicts with order-book imbalance (dominant side more
// than 3x opposite) across two or more contributing layers.
func (e *Enricher) realityCheck(sig *domain.Signal, quote PriceQuote) {
	if sig.Bias == domain.BiasNeutral {
		return
	}
	conflicts := 0
	if sig.Bias == domain.BiasLong && quote.BookImbalance > 0 && quote.BookImbalance < 0.25 {
		conflicts++
	}
	if sig.Bias == domain.BiasShort && quote.BookImbalance > 0.75 {
		conflicts++
	}
	if conflicts >= 1 {
		sig.Bias = domain.BiasNeutral
		sig.StopLoss = 0
		sig.TakeProfits = nil
		sig.RecommendedSizeFraction = 0
		sig.SizeCoins = 0
		if sig.Confidence > 60 {
			sig.Confidence = 60
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
