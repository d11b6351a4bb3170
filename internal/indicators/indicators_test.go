package indicators

import (
	"testing"

	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

func syntheticCandles(n int, drift float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		close := price + drift
		high := open
		low := close
		if close > high {
			high = close
		}
		if open < low {
			low = open
		}
		out[i] = domain.Candle{OpenTimeMs: int64(i) * 3_600_000, Open: open, High: high + 0.5, Low: low - 0.5, Close: close, Volume: 1000}
		price = close
	}
	return out
}

func TestAllReturnsEightEnginesMatchingDomainOrder(t *testing.T) {
	engines := All()
	if len(engines) != len(domain.AllEngines) {
		t.Fatalf("All() returned %d engines, want %d", len(engines), len(domain.AllEngines))
	}
	for i, e := range engines {
		if e.Name() != domain.AllEngines[i] {
			t.Errorf("engine at index %d is %s, want %s", i, e.Name(), domain.AllEngines[i])
		}
	}
}

func TestCVDEngineUnavailableBelowMinimumHistory(t *testing.T) {
	out := CVDEngine{}.Compute(gateway.Snapshot{Candles: syntheticCandles(5, 1)})
	if !out.Unavailable {
		t.Error("expected CVDEngine to report unavailable with fewer than 20 candles")
	}
}

func TestCVDEngineBullishOnSustainedUptrend(t *testing.T) {
	snap := gateway.Snapshot{Candles: syntheticCandles(40, 0.5)}
	out := CVDEngine{}.Compute(snap)
	if out.Unavailable {
		t.Fatal("expected CVDEngine to produce a result with 40 candles")
	}
	if out.Score < 0 || out.Score > 100 {
		t.Errorf("score %v out of [0,100] bound", out.Score)
	}
}

func TestTechnicalEngineUnavailableBelowMinimumHistory(t *testing.T) {
	out := TechnicalEngine{}.Compute(gateway.Snapshot{Candles: syntheticCandles(10, 1)})
	if !out.Unavailable {
		t.Error("expected TechnicalEngine to report unavailable with fewer than 50 candles")
	}
}

func TestMarketStructureUnavailableBelowMinimumHistory(t *testing.T) {
	out := MarketStructureEngine{}.Compute(gateway.Snapshot{Candles: syntheticCandles(3, 1)})
	if !out.Unavailable {
		t.Error("expected MarketStructureEngine to report unavailable with fewer than 2*lookback+1 candles")
	}
}

func TestOpenInterestEngineUnavailableWhenMissing(t *testing.T) {
	out := OpenInterestEngine{}.Compute(gateway.Snapshot{MissingOI: true})
	if !out.Unavailable {
		t.Error("expected OpenInterestEngine to report unavailable when OI data is missing")
	}
}

func TestFundingEngineUnavailableWhenMissing(t *testing.T) {
	out := FundingRegimeEngine{}.Compute(gateway.Snapshot{MissingFunding: true})
	if !out.Unavailable {
		t.Error("expected FundingRegimeEngine to report unavailable when funding data is missing")
	}
}

func TestOrderFlowEngineUnavailableWhenBookMissing(t *testing.T) {
	out := OrderFlowEngine{}.Compute(gateway.Snapshot{MissingBook: true})
	if !out.Unavailable {
		t.Error("expected OrderFlowEngine to report unavailable when book data is missing")
	}
}

func TestFibonacciEngineUnavailableBelowMinimumHistory(t *testing.T) {
	out := FibonacciEngine{}.Compute(gateway.Snapshot{Candles: syntheticCandles(10, 1)})
	if !out.Unavailable {
		t.Error("expected FibonacciEngine to report unavailable with fewer than 20 candles")
	}
}

func TestVolatilityEngineUnavailableBelowMinimumHistory(t *testing.T) {
	out := VolatilityEngine{}.Compute(gateway.Snapshot{Candles: syntheticCandles(10, 1)})
	if !out.Unavailable {
		t.Error("expected VolatilityEngine to report unavailable with fewer than 15 candles")
	}
}

func TestWilderRSIBoundedZeroToHundred(t *testing.T) {
	closes := make([]float64, 30)
	price := 100.0
	for i := range closes {
		price += 1
		closes[i] = price
	}
	rsi := wilderRSI(closes, 14)
	if rsi < 0 || rsi > 100 {
		t.Errorf("RSI %v out of [0,100] bound", rsi)
	}
	if rsi < 90 {
		t.Errorf("expected RSI near 100 for a strictly increasing series, got %v", rsi)
	}
}
