package indicators

import (
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

var retracementRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1.0}
var extensionRatios = []float64{1.272, 1.618, 2.618}

const goldenZoneLow = 0.618
const goldenZoneHigh = 0.786

// FibonacciEngine computes retracement/extension levels from the two most
// recent confirmed swing points and flags respected levels and signals.
type FibonacciEngine struct{}

func (FibonacciEngine) Name() domain.EngineName { return domain.EngineFibonacci }

func (FibonacciEngine) Compute(snap gateway.Snapshot) domain.IndicatorOutput {
	name := domain.EngineFibonacci
	candles := snap.Candles
	if len(candles) < 20 {
		return unavailable(name)
	}

	swings := findSwings(candles)
	if len(swings) < 2 {
		return unavailable(name)
	}
	a, b := swings[len(swings)-2], swings[len(swings)-1]

	levels := retracementLevels(a.price, b.price)
	extensions := extensionLevels(a.price, b.price)

	respected := respectedLevelCount(candles, levels)
	respectRate := 0.0
	if len(levels) > 0 {
		respectRate = float64(respected) / float64(len(levels))
	}

	last := candles[len(candles)-1].Close
	inGoldenZone := false
	for ratio, price := range levels {
		if ratio >= goldenZoneLow && ratio <= goldenZoneHigh {
			dist := (last - price) / price
			if dist < 0 {
				dist = -dist
			}
			if dist <= 0.02 {
				inGoldenZone = true
			}
		}
	}

	signal, lean := fibSignal(last, levels, extensions, b.price > a.price)

	score := 50.0
	if respectRate >= 0.6 {
		score += 15
	}
	if inGoldenZone {
		score += 15
	}
	score = clamp(score, 0, 100)
	if signal == "none" {
		lean = domain.LeanNeutral
	}

	return domain.IndicatorOutput{
		Engine: name,
		Score:  score,
		Lean:   lean,
		Payload: map[string]interface{}{
			"levels":         levels,
			"extensions":     extensions,
			"respect_rate":   respectRate,
			"in_golden_zone": inGoldenZone,
			"signal":         signal,
		},
	}
}

func retracementLevels(a, b float64) map[float64]float64 {
	levels := make(map[float64]float64, len(retracementRatios))
	diff := b - a
	for _, r := range retracementRatios {
		levels[r] = b - diff*r
	}
	return levels
}

func extensionLevels(a, b float64) map[float64]float64 {
	levels := make(map[float64]float64, len(extensionRatios))
	diff := b - a
	for _, r := range extensionRatios {
		levels[r] = b + diff*(r-1)
	}
	return levels
}

func respectedLevelCount(candles []domain.Candle, levels map[float64]float64) int {
	window := 20
	start := len(candles) - window
	if start < 0 {
		start = 0
	}
	recent := candles[start:]
	count := 0
	for _, price := range levels {
		touches, held := 0, 0
		for i, c := range recent {
			dist := (c.Close - price) / price
			if dist < 0 {
				dist = -dist
			}
			if dist <= 0.005 {
				touches++
				if i+1 < len(recent) {
					away := (recent[i+1].Close - price) / price
					if away < 0 {
						away = -away
					}
					if away >= 0.005 {
						held++
					}
				}
			}
		}
		if touches > 0 && float64(held)/float64(touches) >= 0.6 {
			count++
		}
	}
	return count
}

func fibSignal(last float64, retr, ext map[float64]float64, uptrend bool) (string, domain.Lean) {
	for _, price := range retr {
		dist := (last - price) / price
		if dist < 0 {
			dist = -dist
		}
		if dist <= 0.02 && uptrend {
			return "bounce-support", domain.LeanBullish
		}
		if dist <= 0.01 && !uptrend {
			return "break-resistance", domain.LeanBearish
		}
	}
	for _, price := range ext {
		dist := (last - price) / price
		if dist < 0 {
			dist = -dist
		}
		if dist <= 0.05 {
			if uptrend {
				return "extension-target", domain.LeanBullish
			}
			return "extension-target", domain.LeanBearish
		}
	}
	return "none", domain.LeanNeutral
}
