package signal

import (
	"testing"
	"time"

	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
)

func bullishResult() domain.ConfluenceResult {
	return domain.ConfluenceResult{
		OverallScore: 65,
		Signal:       domain.ClassBuy,
		Timeframe:    domain.TF1h,
		PerLayerScores: map[domain.EngineName]float64{
			domain.EngineCVD:           60,
			domain.EngineMomentum:      40,
			domain.EngineInstitutional: 20,
		},
	}
}

func TestEnrichZeroPriceMarksIncomplete(t *testing.T) {
	e := NewEnricher(config.Default())
	sig := e.Enrich("BTC", domain.TF1h, bullishResult(), PriceQuote{Price: 0}, nil, time.Now())
	if !sig.Incomplete {
		t.Error("expected Incomplete=true when quote price is unavailable")
	}
	if sig.RecommendedSizeFraction != 0 {
		t.Errorf("expected zero recommended size for an incomplete signal, got %v", sig.RecommendedSizeFraction)
	}
}

func TestEnrichIlliquidTierForcesNeutral(t *testing.T) {
	e := NewEnricher(config.Default())
	result := bullishResult()
	result.LiquidityTier = "illiquid"
	sig := e.Enrich("BTC", domain.TF1h, result, PriceQuote{Price: 50000, BookImbalance: 0.5}, nil, time.Now())
	if sig.Bias != domain.BiasNeutral {
		t.Errorf("expected illiquid tier to force a neutral bias, got %s", sig.Bias)
	}
}

func TestEnrichLongBiasSetsStopBelowEntryAndAscendingTakeProfits(t *testing.T) {
	e := NewEnricher(config.Default())
	sig := e.Enrich("BTC", domain.TF1h, bullishResult(), PriceQuote{Price: 50000, BookImbalance: 0.5}, nil, time.Now())
	if sig.Bias != domain.BiasLong {
		t.Fatalf("expected a long bias, got %s", sig.Bias)
	}
	if sig.StopLoss >= sig.Entry {
		t.Errorf("expected stop loss (%v) below entry (%v) for a long signal", sig.StopLoss, sig.Entry)
	}
	if len(sig.TakeProfits) != 3 {
		t.Fatalf("expected 3 take-profit levels, got %d", len(sig.TakeProfits))
	}
	for i := 1; i < len(sig.TakeProfits); i++ {
		if sig.TakeProfits[i] <= sig.TakeProfits[i-1] {
			t.Errorf("expected ascending take-profit levels for a long signal, got %v", sig.TakeProfits)
		}
	}
}

func TestEnrichShortBiasSetsStopAboveEntryAndDescendingTakeProfits(t *testing.T) {
	e := NewEnricher(config.Default())
	result := bullishResult()
	result.OverallScore = -65
	result.Signal = domain.ClassSell
	sig := e.Enrich("BTC", domain.TF1h, result, PriceQuote{Price: 50000, BookImbalance: 0.5}, nil, time.Now())
	if sig.Bias != domain.BiasShort {
		t.Fatalf("expected a short bias, got %s", sig.Bias)
	}
	if sig.StopLoss <= sig.Entry {
		t.Errorf("expected stop loss (%v) above entry (%v) for a short signal", sig.StopLoss, sig.Entry)
	}
	for i := 1; i < len(sig.TakeProfits); i++ {
		if sig.TakeProfits[i] >= sig.TakeProfits[i-1] {
			t.Errorf("expected descending take-profit levels for a short signal, got %v", sig.TakeProfits)
		}
	}
}

func TestEnrichRecommendedSizeFractionIsBounded(t *testing.T) {
	e := NewEnricher(config.Default())
	result := bullishResult()
	result.OverallScore = 100
	sig := e.Enrich("BTC", domain.TF1h, result, PriceQuote{Price: 50000, BookImbalance: 0.5}, nil, time.Now())
	if sig.RecommendedSizeFraction < 0 || sig.RecommendedSizeFraction > 0.3 {
		t.Errorf("expected recommended size fraction within [0, 0.3], got %v", sig.RecommendedSizeFraction)
	}
}

func TestEnrichSizeCoinsMatchesRiskBudgetOverStopDistance(t *testing.T) {
	cfg := config.Default()
	cfg.AccountEquity = 20000
	cfg.RiskPerTradePercent = 2.0
	e := NewEnricher(cfg)
	sig := e.Enrich("BTC", domain.TF1h, bullishResult(), PriceQuote{Price: 50000, BookImbalance: 0.5}, nil, time.Now())

	stopDist := sig.Entry - sig.StopLoss
	if stopDist <= 0 {
		t.Fatalf("expected a positive stop distance, got %v", stopDist)
	}
	wantCoins := (cfg.AccountEquity * (cfg.RiskPerTradePercent / 100)) / stopDist
	if diff := sig.SizeCoins - wantCoins; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SizeCoins = %v, want %v", sig.SizeCoins, wantCoins)
	}
}

func TestRealityCheckOverridesLongAgainstThinBidSideImbalance(t *testing.T) {
	e := NewEnricher(config.Default())
	sig := e.Enrich("BTC", domain.TF1h, bullishResult(), PriceQuote{Price: 50000, BookImbalance: 0.1}, nil, time.Now())
	if sig.Bias != domain.BiasNeutral {
		t.Errorf("expected the reality check to flip a long bias to neutral against a thin bid book, got %s", sig.Bias)
	}
	if sig.StopLoss != 0 || sig.TakeProfits != nil || sig.RecommendedSizeFraction != 0 || sig.SizeCoins != 0 {
		t.Error("expected the reality check to clear stop/take-profit/size when it overrides the bias")
	}
	if sig.Confidence > 60 {
		t.Errorf("expected confidence capped at 60 after a reality-check override, got %v", sig.Confidence)
	}
}

func TestRealityCheckOverridesShortAgainstThickBidSideImbalance(t *testing.T) {
	e := NewEnricher(config.Default())
	result := bullishResult()
	result.OverallScore = -65
	result.Signal = domain.ClassSell
	sig := e.Enrich("BTC", domain.TF1h, result, PriceQuote{Price: 50000, BookImbalance: 0.9}, nil, time.Now())
	if sig.Bias != domain.BiasNeutral {
		t.Errorf("expected the reality check to flip a short bias to neutral against a thick bid book, got %s", sig.Bias)
	}
}

func TestBuildReasoningKeepsOnlyFactorsWithSupportingEvidence(t *testing.T) {
	e := NewEnricher(config.Default())
	result := bullishResult()
	evidence := map[string]string{string(domain.EngineCVD): "CVD rising for 6 consecutive candles"}
	sig := e.Enrich("BTC", domain.TF1h, result, PriceQuote{Price: 50000, BookImbalance: 0.5}, evidence, time.Now())

	for _, p := range sig.Reasoning.PrimaryFactors {
		if p != string(domain.EngineCVD) {
			t.Errorf("expected only engines with supporting evidence among primary factors, found %s", p)
		}
	}
	if _, ok := sig.Reasoning.SupportingEvidence[string(domain.EngineCVD)]; !ok {
		t.Error("expected CVD's supporting evidence to survive into the reasoning")
	}
}

func TestBuildReasoningSurfacesDegradedLayersAsRiskFactors(t *testing.T) {
	e := NewEnricher(config.Default())
	result := bullishResult()
	result.DegradedLayers = []domain.EngineName{domain.EngineFunding}
	sig := e.Enrich("BTC", domain.TF1h, result, PriceQuote{Price: 0}, nil, time.Now())

	found := false
	for _, rf := range sig.Reasoning.RiskFactors {
		if rf == "funding degraded" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a degraded funding layer to surface as a risk factor, got %v", sig.Reasoning.RiskFactors)
	}
}
