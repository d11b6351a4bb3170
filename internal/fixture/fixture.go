// Package fixture provides a deterministic, in-process implementation of
// gateway.MarketDataGateway for local CLI use and tests. It generates
// synthetic but internally consistent candles/trades/book/funding/OI data
// seeded by symbol, so repeated calls for the same pair are stable. It is
// not an exchange connector: real venue wiring is out of scope.
package fixture

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/marketintel/engine/internal/domain"
)

// Gateway implements gateway.MarketDataGateway over synthetic data.
type Gateway struct {
	Now func() time.Time
}

// New builds a fixture Gateway using time.Now for timestamps.
func New() *Gateway {
	return &Gateway{Now: time.Now}
}

func seedFor(pair string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pair))
	return h.Sum64()
}

// lcg is a tiny deterministic pseudo-random generator so fixture data does
// not depend on math/rand's global state or time-seeded behavior.
type lcg struct{ state uint64 }

func (r *lcg) next() float64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return float64(r.state>>11) / float64(1<<53)
}

func basePrice(pair string) float64 {
	seed := seedFor(pair)
	return 1 + float64(seed%500000)/100.0
}

func (g *Gateway) Candles(_ context.Context, pair string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	r := &lcg{state: seedFor(pair)}
	price := basePrice(pair)
	intervalMs := tf.IntervalMillis()
	if intervalMs == 0 {
		intervalMs = domain.TF1h.IntervalMillis()
	}
	now := g.Now().UnixMilli()
	start := now - int64(limit)*intervalMs

	out := make([]domain.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		drift := (r.next() - 0.5) * price * 0.01
		open := price
		close := price + drift
		high := math.Max(open, close) + r.next()*price*0.002
		low := math.Min(open, close) - r.next()*price*0.002
		vol := 1000 + r.next()*9000
		out = append(out, domain.Candle{
			OpenTimeMs: start + int64(i)*intervalMs,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     vol,
		})
		price = close
	}
	return out, nil
}

func (g *Gateway) Trades(_ context.Context, pair string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 200
	}
	r := &lcg{state: seedFor(pair) ^ 0x70A1}
	price := basePrice(pair)
	now := g.Now().UnixMilli()
	out := make([]domain.Trade, 0, limit)
	for i := 0; i < limit; i++ {
		side := domain.SideBuy
		if r.next() < 0.5 {
			side = domain.SideSell
		}
		price += (r.next() - 0.5) * price * 0.0005
		out = append(out, domain.Trade{
			TimeMs: now - int64(limit-i)*1000,
			Price:  price,
			Size:   1 + r.next()*50,
			Side:   side,
		})
	}
	return out, nil
}

func (g *Gateway) OrderBook(_ context.Context, pair string) (domain.OrderBook, error) {
	r := &lcg{state: seedFor(pair) ^ 0x0B00}
	mid := basePrice(pair)
	book := domain.OrderBook{}
	for i := 0; i < 10; i++ {
		step := mid * 0.0005 * float64(i+1)
		book.Bids = append(book.Bids, domain.PriceLevel{Price: mid - step, Size: 1 + r.next()*20})
		book.Asks = append(book.Asks, domain.PriceLevel{Price: mid + step, Size: 1 + r.next()*20})
	}
	return book, nil
}

func (g *Gateway) Ticker(_ context.Context, pair string) (domain.Ticker, error) {
	r := &lcg{state: seedFor(pair) ^ 0x71C3}
	price := basePrice(pair) * (1 + (r.next()-0.5)*0.02)
	return domain.Ticker{
		Price:     price,
		Volume24h: 1_000_000 + r.next()*50_000_000,
		Change24h: (r.next() - 0.5) * 0.1,
	}, nil
}

func (g *Gateway) FundingRate(_ context.Context, pair string) (domain.FundingRate, error) {
	r := &lcg{state: seedFor(pair) ^ 0xF0D1}
	rate := (r.next() - 0.5) * 0.002
	return domain.FundingRate{
		CurrentRate:  rate,
		NextRate:     rate * 0.9,
		NextTimeMs:   g.Now().Add(4 * time.Hour).UnixMilli(),
		Premium:      rate * 0.5,
		InterestRate: 0.0001,
		SettleState:  domain.SettleProcessing,
	}, nil
}

func (g *Gateway) FundingHistory(_ context.Context, pair string, limit int) ([]domain.FundingRate, error) {
	if limit <= 0 {
		limit = 30
	}
	r := &lcg{state: seedFor(pair) ^ 0xF1B7}
	out := make([]domain.FundingRate, 0, limit)
	for i := 0; i < limit; i++ {
		rate := (r.next() - 0.5) * 0.002
		out = append(out, domain.FundingRate{CurrentRate: rate, SettleState: domain.SettleSettled})
	}
	return out, nil
}

func (g *Gateway) OpenInterest(_ context.Context, pair string) (domain.OpenInterest, error) {
	r := &lcg{state: seedFor(pair) ^ 0x01E0}
	base := 1_000 + r.next()*900_000
	return domain.OpenInterest{
		OIBase: base,
		OIUSD:  base * basePrice(pair),
		TimeMs: g.Now().UnixMilli(),
	}, nil
}

func (g *Gateway) OpenInterestHistory(_ context.Context, pair string, limit int) ([]domain.OpenInterest, error) {
	if limit <= 0 {
		limit = 24
	}
	r := &lcg{state: seedFor(pair) ^ 0x01E1}
	out := make([]domain.OpenInterest, 0, limit)
	for i := 0; i < limit; i++ {
		base := 1_000 + r.next()*900_000
		out = append(out, domain.OpenInterest{OIBase: base, OIUSD: base * basePrice(pair)})
	}
	return out, nil
}

func (g *Gateway) MultiExchangeTicker(_ context.Context, baseAsset string) (domain.MultiExchangeTicker, error) {
	t, err := g.Ticker(context.Background(), baseAsset)
	if err != nil {
		return domain.MultiExchangeTicker{}, err
	}
	return domain.MultiExchangeTicker{
		Tickers:     []domain.Ticker{t},
		Degradation: domain.Degradation{HealthStatus: "ok"},
	}, nil
}
