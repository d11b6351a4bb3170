package indicators

import (
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

const swingLookback = 5

type swing struct {
	index int
	price float64
	high  bool
}

// MarketStructureEngine identifies swing points and the most recent
// break-of-structure, classifying overall trend over the last six swings.
type MarketStructureEngine struct{}

func (MarketStructureEngine) Name() domain.EngineName { return domain.EngineMarketStructure }

func (MarketStructureEngine) Compute(snap gateway.Snapshot) domain.IndicatorOutput {
	name := domain.EngineMarketStructure
	candles := snap.Candles
	if len(candles) < 2*swingLookback+1 {
		return unavailable(name)
	}

	swings := findSwings(candles)
	if len(swings) < 2 {
		return domain.IndicatorOutput{Engine: name, Score: 50, Lean: domain.LeanNeutral, Payload: map[string]interface{}{"trend": "consolidation"}}
	}

	recent := swings
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	trend, lean := classifyTrend(recent)

	bos, bosFound := findBreakOfStructure(candles, swings)

	impulseConfirmations := 0
	if trend == "bullish-impulse" || trend == "bearish-impulse" {
		impulseConfirmations = 1
	}
	respectedLevels := countRespectedLevels(candles, swings)

	score := 50.0 + 10.0*float64(impulseConfirmations) + 5.0*float64(respectedLevels)
	score = clamp(score, 0, 95)

	payload := map[string]interface{}{"trend": trend}
	if bosFound {
		payload["break_of_structure"] = bos
	}

	return domain.IndicatorOutput{Engine: name, Score: score, Lean: lean, Payload: payload}
}

func findSwings(c []domain.Candle) []swing {
	var out []swing
	k := swingLookback
	for i := k; i < len(c)-k; i++ {
		isHigh, isLow := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if c[j].High >= c[i].High {
				isHigh = false
			}
			if c[j].Low <= c[i].Low {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, swing{index: i, price: c[i].High, high: true})
		}
		if isLow {
			out = append(out, swing{index: i, price: c[i].Low, high: false})
		}
	}
	return out
}

func classifyTrend(swings []swing) (trend string, lean domain.Lean) {
	var highs, lows []float64
	for _, s := range swings {
		if s.high {
			highs = append(highs, s.price)
		} else {
			lows = append(lows, s.price)
		}
	}
	higherHigh := increasing(highs)
	higherLow := increasing(lows)
	lowerHigh := decreasing(highs)
	lowerLow := decreasing(lows)

	switch {
	case higherHigh && higherLow:
		return "bullish-impulse", domain.LeanBullish
	case lowerHigh && lowerLow:
		return "bearish-impulse", domain.LeanBearish
	case higherLow && !lowerHigh:
		return "correction-up", domain.LeanBullish
	case lowerHigh && !higherLow:
		return "correction-down", domain.LeanBearish
	default:
		return "consolidation", domain.LeanNeutral
	}
}

func increasing(v []float64) bool {
	if len(v) < 2 {
		return false
	}
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}

func decreasing(v []float64) bool {
	if len(v) < 2 {
		return false
	}
	for i := 1; i < len(v); i++ {
		if v[i] >= v[i-1] {
			return false
		}
	}
	return true
}

type breakOfStructure struct {
	Type  string `json:"type"`
	Price float64
	Time  int64
}

func findBreakOfStructure(candles []domain.Candle, swings []swing) (breakOfStructure, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		s := swings[i]
		for j := s.index + 1; j < len(candles); j++ {
			if s.high && candles[j].Close > s.price {
				return breakOfStructure{Type: "bullish", Price: s.price, Time: candles[j].OpenTimeMs}, true
			}
			if !s.high && candles[j].Close < s.price {
				return breakOfStructure{Type: "bearish", Price: s.price, Time: candles[j].OpenTimeMs}, true
			}
		}
	}
	return breakOfStructure{}, false
}

// countRespectedLevels counts swing levels that price later approached
// within 0.5% then closed away from by at least 0.5%, within the last 20 bars.
func countRespectedLevels(candles []domain.Candle, swings []swing) int {
	window := 20
	start := len(candles) - window
	if start < 0 {
		start = 0
	}
	count := 0
	for _, s := range swings {
		for j := s.index + 1; j < len(candles) && j >= start; j++ {
			dist := (candles[j].Close - s.price) / s.price
			if dist < 0 {
				dist = -dist
			}
			if dist <= 0.005 {
				// touched; check subsequent close moves away by >=0.5%
				if j+1 < len(candles) {
					away := (candles[j+1].Close - s.price) / s.price
					if away < 0 {
						away = -away
					}
					if away >= 0.005 {
						count++
						break
					}
				}
			}
		}
	}
	return count
}
