package indicators

import (
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

var liquidationLeverages = []float64{2, 3, 5, 10, 20, 25, 50, 100}

// OpenInterestEngine reads current and historical OI to classify
// institutional presence and project liquidation clusters.
type OpenInterestEngine struct{}

func (OpenInterestEngine) Name() domain.EngineName { return domain.EngineOpenInterest }

func (OpenInterestEngine) Compute(snap gateway.Snapshot) domain.IndicatorOutput {
	name := domain.EngineOpenInterest
	if snap.MissingOI || snap.OI.OIUSD == 0 {
		return unavailable(name)
	}

	avg24h := averageOIUSD(snap.OIHist)
	oiChange24h := 0.0
	if avg24h > 0 {
		oiChange24h = (snap.OI.OIUSD - avg24h) / avg24h * 100
	}
	volume24h := snap.Ticker.Volume24h
	oiTurnover := 0.0
	if snap.OI.OIBase > 0 {
		oiTurnover = volume24h / snap.OI.OIBase
	}
	oiPressure := 0.0
	if avg24h > 0 {
		oiPressure = (snap.OI.OIUSD - avg24h) / avg24h * 100
	}

	presence := institutionalPresence(snap.OI.OIUSD)

	mark := snap.Ticker.Price
	clusters := liquidationClusters(mark, snap.OI.OIBase)

	lean := domain.LeanNeutral
	if oiChange24h > 2 {
		lean = domain.LeanBullish
	} else if oiChange24h < -2 {
		lean = domain.LeanBearish
	}
	score := clamp(50+oiChange24h*2, 0, 100)

	return domain.IndicatorOutput{
		Engine: name,
		Score:  score,
		Lean:   lean,
		Payload: map[string]interface{}{
			"oi_change_24h_pct":        oiChange24h,
			"oi_turnover":              oiTurnover,
			"oi_pressure_ratio":        oiPressure,
			"institutional_presence":   presence,
			"liquidation_clusters":     clusters,
		},
	}
}

func averageOIUSD(hist []domain.OpenInterest) float64 {
	if len(hist) == 0 {
		return 0
	}
	total := 0.0
	for _, h := range hist {
		total += h.OIUSD
	}
	return total / float64(len(hist))
}

func institutionalPresence(oiUSD float64) string {
	switch {
	case oiUSD < 200_000_000:
		return "light"
	case oiUSD < 500_000_000:
		return "moderate"
	case oiUSD < 1_000_000_000:
		return "significant"
	default:
		return "dominant"
	}
}

// LiquidationCluster is one projected leverage tier's long/short liquidation
// price band and the notional at risk there.
type LiquidationCluster struct {
	Leverage     float64
	LongPrice    float64
	ShortPrice   float64
	RiskTier     string
}

func liquidationClusters(mark, oiBase float64) []LiquidationCluster {
	out := make([]LiquidationCluster, 0, len(liquidationLeverages))
	for _, lev := range liquidationLeverages {
		longPrice := mark * (1 - 0.95/lev)
		shortPrice := mark * (1 + 0.95/lev)
		notional := oiBase * mark / lev
		out = append(out, LiquidationCluster{
			Leverage:   lev,
			LongPrice:  longPrice,
			ShortPrice: shortPrice,
			RiskTier:   riskTier(notional),
		})
	}
	return out
}

func riskTier(notionalUSD float64) string {
	switch {
	case notionalUSD >= 100_000:
		return "critical"
	case notionalUSD >= 50_000:
		return "major"
	default:
		return "minor"
	}
}
