package indicators

import (
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

// OrderFlowEngine reads order-book depth and recent trades to infer
// absorption, icebergs, and an overall accumulation/distribution trend.
type OrderFlowEngine struct{}

func (OrderFlowEngine) Name() domain.EngineName { return domain.EngineInstitutional }

func (OrderFlowEngine) Compute(snap gateway.Snapshot) domain.IndicatorOutput {
	name := domain.EngineInstitutional
	if snap.MissingBook || (len(snap.OrderBook.Bids) == 0 && len(snap.OrderBook.Asks) == 0) {
		return unavailable(name)
	}

	bidDepth := depthOf(snap.OrderBook.Bids)
	askDepth := depthOf(snap.OrderBook.Asks)

	absorption := detectAbsorption(snap.Trades, bidDepth, askDepth)
	iceberg := detectIceberg(snap.Trades)
	trend, lean := flowTrend(snap.Candles, bidDepth, askDepth)

	imbalance := 0.5
	total := bidDepth + askDepth
	if total > 0 {
		imbalance = bidDepth / total
	}
	score := clamp(50+(imbalance-0.5)*100, 0, 100)

	return domain.IndicatorOutput{
		Engine: name,
		Score:  score,
		Lean:   lean,
		Payload: map[string]interface{}{
			"flow_trend":        trend,
			"absorption_event":  absorption,
			"iceberg_inferred":  iceberg,
			"book_imbalance":    imbalance,
		},
	}
}

func depthOf(levels []domain.PriceLevel) float64 {
	total := 0.0
	for _, l := range levels {
		total += l.Size
	}
	return total
}

func detectAbsorption(trades []domain.Trade, bidDepth, askDepth float64) bool {
	if len(trades) == 0 {
		return false
	}
	var buyVol, sellVol float64
	for _, t := range trades {
		if t.Side == domain.SideBuy {
			buyVol += t.Size
		} else {
			sellVol += t.Size
		}
	}
	// Large buy volume absorbed into an ask level that didn't move, or
	// the symmetric bid-side case.
	return (buyVol > 2*sellVol && askDepth > 0) || (sellVol > 2*buyVol && bidDepth > 0)
}

func detectIceberg(trades []domain.Trade) bool {
	if len(trades) < 5 {
		return false
	}
	counts := map[float64]int{}
	for _, t := range trades {
		counts[t.Price]++
	}
	for _, c := range counts {
		if c >= 4 {
			return true
		}
	}
	return false
}

func flowTrend(candles []domain.Candle, bidDepth, askDepth float64) (string, domain.Lean) {
	if len(candles) < 4 {
		return "neutral", domain.LeanNeutral
	}
	recent := candles[len(candles)-4:]
	upBars, downBars := 0, 0
	for _, c := range recent {
		if c.Close > c.Open {
			upBars++
		} else if c.Close < c.Open {
			downBars++
		}
	}

	// Manipulation: consecutive bars alternate extreme dominance with
	// price reversion (neither a clean up- nor down-run).
	if upBars == 2 && downBars == 2 {
		return "manipulation", domain.LeanNeutral
	}
	if bidDepth > askDepth*1.2 && upBars >= downBars {
		return "accumulation", domain.LeanBullish
	}
	if askDepth > bidDepth*1.2 && downBars >= upBars {
		return "distribution", domain.LeanBearish
	}
	return "neutral", domain.LeanNeutral
}
