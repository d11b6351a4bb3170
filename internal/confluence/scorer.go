// Package confluence implements the multi-layer weighted aggregation of the
// eight indicator engines into a single classified ConfluenceResult.
package confluence

import (
	"fmt"
	"math"
	"time"

	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/indicators"
)

// BaseWeights is the confluence scorer's starting weight vector before any
// pattern-learning or time-of-timeframe reweighting is applied.
var BaseWeights = map[domain.EngineName]float64{
	domain.EngineMarketStructure: 0.10,
	domain.EngineCVD:             0.15,
	domain.EngineMomentum:        0.15,
	domain.EngineOpenInterest:    0.15,
	domain.EngineFunding:         0.10,
	domain.EngineInstitutional:   0.10,
	domain.EngineFibonacci:       0.05,
	domain.EngineEnhanced:        0.20,
}

// timeReweight holds the per-timeframe engine multipliers applied after
// pattern-learning weights, favoring the engines that read best on each
// timeframe's characteristic candle rhythm.
var timeReweight = map[domain.Timeframe]map[domain.EngineName]float64{
	domain.TF1h: {
		domain.EngineMomentum:      1.3,
		domain.EngineEnhanced:      1.5,
		domain.EngineInstitutional: 0.7,
	},
	domain.TF1d: {
		domain.EngineMarketStructure: 1.3,
		domain.EngineInstitutional:   1.4,
		domain.EngineMomentum:        0.8,
	},
}

// PatternWeightSource supplies the learned per-engine multiplier; the
// confluence scorer never mutates it, only reads.
type PatternWeightSource interface {
	Multiplier(engine domain.EngineName) float64
	MinConfidence(engine domain.EngineName) float64
}

// Scorer computes a ConfluenceResult from a set of IndicatorOutputs.
type Scorer struct {
	patterns PatternWeightSource
}

// NewScorer builds a Scorer reading learned weights from patterns.
func NewScorer(patterns PatternWeightSource) *Scorer {
	return &Scorer{patterns: patterns}
}

// Score weighs, aggregates, and classifies the engines' outputs for one
// pair+timeframe, redistributing weight away from any unavailable engine and
// returning the weight vector actually used alongside the classification.
func (s *Scorer) Score(outputs []domain.IndicatorOutput, tf domain.Timeframe, now time.Time) domain.ConfluenceResult {
	weights := s.composeWeights(tf)

	available := make([]domain.IndicatorOutput, 0, len(outputs))
	var degraded []domain.EngineName
	for _, o := range outputs {
		if o.Unavailable || !finite(o.Score) {
			degraded = append(degraded, o.Engine)
			continue
		}
		available = append(available, o)
	}
	weights = redistributeWeight(weights, available)

	overall := 0.0
	perLayer := make(map[domain.EngineName]float64, len(available))
	for _, o := range available {
		signed := o.SignedScore()
		w := weights[o.Engine]
		overall += w * signed
		perLayer[o.Engine] = signed
	}
	overall = sanitize(overall)

	classification := classify(overall)

	layersPassed := 0
	for _, o := range available {
		signed := o.SignedScore()
		if classSign(classification) != 0 && sign(signed) == classSign(classification) {
			minConf := 0.6
			if s.patterns != nil {
				minConf = s.patterns.MinConfidence(o.Engine)
			}
			if o.Score >= minConf*100 {
				layersPassed++
			}
		}
	}

	liquidityTier, _ := liquidityTierOf(available)
	volatilityRegime, _ := atrRegimeOf(available)

	risk := riskLevel(available, classification)
	if liquidityTier == "illiquid" {
		classification = domain.ClassHold
	}

	return domain.ConfluenceResult{
		OverallScore:     overall,
		Signal:           classification,
		LayersPassed:     layersPassed,
		PerLayerScores:   perLayer,
		RiskLevel:        risk,
		Recommendation:   recommendation(classification, risk, dominantFactor(available)),
		Timeframe:        tf,
		TimestampMs:      now.UnixMilli(),
		DegradedLayers:   degraded,
		WeightVector:     weights,
		LiquidityTier:    liquidityTier,
		VolatilityRegime: volatilityRegime,
	}
}

// composeWeights applies the learned pattern multiplier then the
// time-of-timeframe reweight, renormalizing to sum 1.0 after each step.
func (s *Scorer) composeWeights(tf domain.Timeframe) map[domain.EngineName]float64 {
	weights := make(map[domain.EngineName]float64, len(BaseWeights))
	for k, v := range BaseWeights {
		mult := 1.0
		if s.patterns != nil {
			mult = s.patterns.Multiplier(k)
		}
		weights[k] = v * mult
	}
	renormalize(weights)

	if adj, ok := timeReweight[tf]; ok {
		for k, mult := range adj {
			weights[k] *= mult
		}
		renormalize(weights)
	}
	return weights
}

func renormalize(w map[domain.EngineName]float64) {
	total := 0.0
	for _, v := range w {
		total += v
	}
	if total <= 0 {
		return
	}
	for k := range w {
		w[k] /= total
	}
}

// redistributeWeight removes unavailable engines' weight share and spreads
// it proportionally across the remaining available engines, renormalizing.
func redistributeWeight(weights map[domain.EngineName]float64, available []domain.IndicatorOutput) map[domain.EngineName]float64 {
	presentSet := make(map[domain.EngineName]bool, len(available))
	for _, o := range available {
		presentSet[o.Engine] = true
	}
	out := make(map[domain.EngineName]float64, len(presentSet))
	for k, v := range weights {
		if presentSet[k] {
			out[k] = v
		}
	}
	renormalize(out)
	return out
}

func classify(overall float64) domain.Classification {
	switch {
	case overall > 50:
		return domain.ClassStrongBuy
	case overall > 20:
		return domain.ClassBuy
	case overall >= -20:
		return domain.ClassHold
	case overall >= -50:
		return domain.ClassSell
	default:
		return domain.ClassStrongSell
	}
}

func classSign(c domain.Classification) int {
	switch c {
	case domain.ClassStrongBuy, domain.ClassBuy:
		return 1
	case domain.ClassStrongSell, domain.ClassSell:
		return -1
	default:
		return 0
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sanitize(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func liquidityTierOf(outputs []domain.IndicatorOutput) (string, bool) {
	for _, o := range outputs {
		if o.Engine == domain.EngineEnhanced {
			if tier, ok := o.Payload["liquidity_tier"].(string); ok {
				return tier, true
			}
		}
	}
	return "", false
}

func atrRegimeOf(outputs []domain.IndicatorOutput) (string, bool) {
	for _, o := range outputs {
		if o.Engine == domain.EngineEnhanced {
			if regime, ok := o.Payload["volatility_regime"].(string); ok {
				return regime, true
			}
		}
	}
	return "", false
}

func riskLevel(outputs []domain.IndicatorOutput, classification domain.Classification) domain.RiskLevel {
	if regime, ok := atrRegimeOf(outputs); ok && regime == "extreme" {
		return domain.RiskHigh
	}
	if tier, ok := liquidityTierOf(outputs); ok && tier == "illiquid" {
		return domain.RiskHigh
	}
	if criticalClusterNearby(outputs, 2.0) {
		return domain.RiskHigh
	}
	if classification == domain.ClassHold {
		if regime, ok := atrRegimeOf(outputs); ok && regime == "ranging" && flowIsBalanced(outputs) {
			return domain.RiskLow
		}
	}
	return domain.RiskMedium
}

// criticalClusterNearby reports whether the open-interest engine projects a
// critical-notional liquidation cluster within pct of the current price.
func criticalClusterNearby(outputs []domain.IndicatorOutput, pct float64) bool {
	for _, o := range outputs {
		if o.Engine != domain.EngineOpenInterest {
			continue
		}
		clusters, ok := o.Payload["liquidation_clusters"].([]indicators.LiquidationCluster)
		if !ok {
			return false
		}
		for _, c := range clusters {
			if c.RiskTier != "critical" {
				continue
			}
			span := c.LongPrice + c.ShortPrice
			if span <= 0 {
				continue
			}
			distancePct := (c.ShortPrice - c.LongPrice) / span * 100
			if distancePct <= pct {
				return true
			}
		}
	}
	return false
}

// flowIsBalanced reports whether the order-flow engine's book imbalance sits
// close to neutral (neither side holding a meaningful depth edge).
func flowIsBalanced(outputs []domain.IndicatorOutput) bool {
	for _, o := range outputs {
		if o.Engine != domain.EngineInstitutional {
			continue
		}
		imbalance, ok := o.Payload["book_imbalance"].(float64)
		if !ok {
			return false
		}
		return imbalance >= 0.4 && imbalance <= 0.6
	}
	return false
}

func dominantFactor(outputs []domain.IndicatorOutput) domain.EngineName {
	var best domain.EngineName
	bestMag := -1.0
	for _, o := range outputs {
		mag := math.Abs(o.SignedScore())
		if mag > bestMag {
			bestMag = mag
			best = o.Engine
		}
	}
	return best
}

func recommendation(classification domain.Classification, risk domain.RiskLevel, dominant domain.EngineName) string {
	return fmt.Sprintf("%s (risk=%s, dominant_factor=%s)", classification, risk, dominant)
}
