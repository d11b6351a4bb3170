package indicators

import (
	"math"

	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

const extremeFundingThreshold = 0.0003

// FundingRegimeEngine reads current funding plus recent history and maps
// crowded-long/crowded-short regimes to a reversal bias.
type FundingRegimeEngine struct{}

func (FundingRegimeEngine) Name() domain.EngineName { return domain.EngineFunding }

func (FundingRegimeEngine) Compute(snap gateway.Snapshot) domain.IndicatorOutput {
	name := domain.EngineFunding
	if snap.MissingFunding {
		return unavailable(name)
	}

	rate := snap.Funding.CurrentRate
	extreme := rate > extremeFundingThreshold || rate < -extremeFundingThreshold

	lean := domain.LeanNeutral
	if extreme && rate > 0 {
		lean = domain.LeanBearish // crowded longs -> short reversal bias
	} else if extreme && rate < 0 {
		lean = domain.LeanBullish // crowded shorts -> long reversal bias
	}

	magnitude := rate
	if magnitude < 0 {
		magnitude = -magnitude
	}
	score := clamp(50+magnitude/extremeFundingThreshold*25, 0, 100)
	if !extreme {
		score = 50
	}

	correlation := fundingOICorrelation(snap.FundingHist, snap.OIHist)

	return domain.IndicatorOutput{
		Engine: name,
		Score:  score,
		Lean:   lean,
		Payload: map[string]interface{}{
			"current_rate":              rate,
			"extreme":                   extreme,
			"funding_oi_correlation":    correlation,
		},
	}
}

// fundingOICorrelation computes the Pearson correlation between aligned
// funding-rate and open-interest series, NaN-safe (zero denominator -> 0).
func fundingOICorrelation(funding []domain.FundingRate, oi []domain.OpenInterest) float64 {
	n := len(funding)
	if len(oi) < n {
		n = len(oi)
	}
	if n < 2 {
		return 0
	}
	fr := make([]float64, n)
	oiv := make([]float64, n)
	for i := 0; i < n; i++ {
		fr[i] = funding[i].CurrentRate
		oiv[i] = oi[i].OIUSD
	}
	return pearson(fr, oiv)
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 {
		return 0
	}
	meanA, meanB := sum(a)/float64(n), sum(b)/float64(n)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	denom := varA * varB
	if denom <= 0 {
		return 0
	}
	r := cov / math.Sqrt(denom)
	return sanitize(r)
}
