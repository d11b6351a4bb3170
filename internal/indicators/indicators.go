// Package indicators implements the eight independent per-pair indicator
// engines. Each is a pure function over the subset of gateway.Snapshot it
// needs; engines share no mutable state and may run concurrently.
package indicators

import (
	"math"

	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

// Engine computes one IndicatorOutput from a pair's data snapshot.
type Engine interface {
	Name() domain.EngineName
	Compute(snap gateway.Snapshot) domain.IndicatorOutput
}

// All returns the eight engines in base-weight-vector order, matching
// domain.AllEngines.
func All() []Engine {
	return []Engine{
		MarketStructureEngine{},
		CVDEngine{},
		TechnicalEngine{},
		OpenInterestEngine{},
		FundingRegimeEngine{},
		OrderFlowEngine{},
		FibonacciEngine{},
		VolatilityEngine{},
	}
}

func unavailable(name domain.EngineName) domain.IndicatorOutput {
	return domain.IndicatorOutput{Engine: name, Unavailable: true, Payload: map[string]interface{}{}}
}

// sanitize replaces non-finite numbers with 0, matching the source's
// pre-stats sanitize step.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
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
