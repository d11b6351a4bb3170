package indicators

import (
	"math"

	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/gateway"
)

// TechnicalEngine combines RSI, EMA, MACD, and Bollinger Bands into a
// majority-vote directional bias.
type TechnicalEngine struct{}

func (TechnicalEngine) Name() domain.EngineName { return domain.EngineMomentum }

func (TechnicalEngine) Compute(snap gateway.Snapshot) domain.IndicatorOutput {
	name := domain.EngineMomentum
	closes := closesOf(snap.Candles)
	if len(closes) < 50 {
		return unavailable(name)
	}

	rsi := wilderRSI(closes, 14)
	ema12 := ema(closes, 12)
	ema26 := ema(closes, 26)
	ema50 := ema(closes, 50)
	macdLine, signalLine, hist := macd(closes, 12, 26, 9)
	upper, lower, mid := bollinger(closes, 20, 2)

	votes := 0
	last := closes[len(closes)-1]

	if rsi > 55 {
		votes++
	} else if rsi < 45 {
		votes--
	}
	if ema12[len(ema12)-1] > ema26[len(ema26)-1] {
		votes++
	} else {
		votes--
	}
	if ema26[len(ema26)-1] > ema50[len(ema50)-1] {
		votes++
	} else {
		votes--
	}
	if hist > 0 {
		votes++
	} else if hist < 0 {
		votes--
	}
	if last > upper {
		votes--
	} else if last < lower {
		votes++
	}

	lean := domain.LeanNeutral
	if votes > 0 {
		lean = domain.LeanBullish
	} else if votes < 0 {
		lean = domain.LeanBearish
	}

	score := clamp(50+float64(votes)*10, 0, 100)

	return domain.IndicatorOutput{
		Engine: name,
		Score:  score,
		Lean:   lean,
		Payload: map[string]interface{}{
			"rsi14":       rsi,
			"ema12":       ema12[len(ema12)-1],
			"ema26":       ema26[len(ema26)-1],
			"ema50":       ema50[len(ema50)-1],
			"macd":        macdLine,
			"macd_signal": signalLine,
			"macd_hist":   hist,
			"bb_upper":    upper,
			"bb_lower":    lower,
			"bb_mid":      mid,
		},
	}
}

func wilderRSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}
	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss < 1e-9 {
		return 100
	}
	rs := avgGain / avgLoss
	return sanitize(100 - 100/(1+rs))
}

func ema(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

func macd(closes []float64, fast, slow, signalPeriod int) (macdLine, signalLine, hist float64) {
	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)
	macdSeries := make([]float64, len(closes))
	for i := range closes {
		macdSeries[i] = emaFast[i] - emaSlow[i]
	}
	signalSeries := ema(macdSeries, signalPeriod)
	macdLine = macdSeries[len(macdSeries)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	hist = macdLine - signalLine
	return
}

func bollinger(closes []float64, period int, sigma float64) (upper, lower, mid float64) {
	if len(closes) < period {
		period = len(closes)
	}
	window := closes[len(closes)-period:]
	mean := sum(window) / float64(period)
	var variance float64
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(period)
	stddev := math.Sqrt(variance)
	return mean + sigma*stddev, mean - sigma*stddev, mean
}
