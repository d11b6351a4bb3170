package domain

import "testing"

func TestNormalizeTimeframeLowercasesAndValidates(t *testing.T) {
	tf, ok := NormalizeTimeframe("1H")
	if !ok || tf != TF1h {
		t.Errorf("expected 1H to normalize to TF1h, got %v ok=%v", tf, ok)
	}
}

func TestNormalizeTimeframeRejectsUnknown(t *testing.T) {
	if _, ok := NormalizeTimeframe("3w"); ok {
		t.Error("expected an unrecognized timeframe to be rejected")
	}
}

func TestIntervalMillisForEveryTimeframe(t *testing.T) {
	cases := map[Timeframe]int64{
		TF1m:  60_000,
		TF5m:  300_000,
		TF15m: 900_000,
		TF30m: 1_800_000,
		TF1h:  3_600_000,
		TF4h:  14_400_000,
		TF1d:  86_400_000,
	}
	for tf, want := range cases {
		if got := tf.IntervalMillis(); got != want {
			t.Errorf("%s.IntervalMillis() = %d, want %d", tf, got, want)
		}
	}
}

func TestSignedScoreAppliesLean(t *testing.T) {
	cases := []struct {
		lean Lean
		want float64
	}{
		{LeanBullish, 70},
		{LeanBearish, -70},
		{LeanNeutral, 0},
	}
	for _, c := range cases {
		out := IndicatorOutput{Score: 70, Lean: c.lean}
		if got := out.SignedScore(); got != c.want {
			t.Errorf("SignedScore() with lean %s = %v, want %v", c.lean, got, c.want)
		}
	}
}

func TestErrorKindTripsBreaker(t *testing.T) {
	cases := map[ErrorKind]bool{
		KindValidation:         false,
		KindTooManySymbols:     false,
		KindTimeout:            true,
		KindServiceUnavailable: true,
		KindRateLimit:          true,
		KindInternal:           true,
	}
	for kind, want := range cases {
		if got := kind.TripsBreaker(); got != want {
			t.Errorf("%s.TripsBreaker() = %v, want %v", kind, got, want)
		}
	}
}

func TestIsValidationCoversBothNonTrippingKinds(t *testing.T) {
	if !IsValidation(NewError(KindValidation, "BTC", "bad input", nil)) {
		t.Error("expected IsValidation to be true for KindValidation")
	}
	if !IsValidation(NewError(KindTooManySymbols, "", "too many", nil)) {
		t.Error("expected IsValidation to be true for KindTooManySymbols")
	}
	if IsValidation(NewError(KindTimeout, "BTC", "slow", nil)) {
		t.Error("expected IsValidation to be false for KindTimeout")
	}
}
