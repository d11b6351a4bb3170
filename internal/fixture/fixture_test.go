package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/marketintel/engine/internal/domain"
)

func fixedClock() *Gateway {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Gateway{Now: func() time.Time { return t }}
}

func TestCandlesAreDeterministicForTheSamePair(t *testing.T) {
	g := fixedClock()
	a, err := g.Candles(context.Background(), "BTC", domain.TF1h, 50)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	b, err := g.Candles(context.Background(), "BTC", domain.TF1h, 50)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected identical candle counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("candle %d differs between repeated calls: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCandlesDifferAcrossPairs(t *testing.T) {
	g := fixedClock()
	btc, _ := g.Candles(context.Background(), "BTC", domain.TF1h, 10)
	eth, _ := g.Candles(context.Background(), "ETH", domain.TF1h, 10)
	if btc[0].Close == eth[0].Close {
		t.Error("expected two different pairs to seed distinct synthetic price series")
	}
}

func TestCandlesRequestedLimitIsRespected(t *testing.T) {
	g := fixedClock()
	out, err := g.Candles(context.Background(), "BTC", domain.TF1h, 37)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(out) != 37 {
		t.Errorf("expected 37 candles, got %d", len(out))
	}
}

func TestCandlesDefaultLimitWhenNonPositive(t *testing.T) {
	g := fixedClock()
	out, err := g.Candles(context.Background(), "BTC", domain.TF1h, 0)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(out) != 100 {
		t.Errorf("expected the default limit of 100 candles, got %d", len(out))
	}
}

func TestTickerPriceIsPositiveAndDeterministic(t *testing.T) {
	g := fixedClock()
	a, err := g.Ticker(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Ticker failed: %v", err)
	}
	b, _ := g.Ticker(context.Background(), "BTC")
	if a.Price <= 0 {
		t.Errorf("expected a positive synthetic price, got %v", a.Price)
	}
	if a != b {
		t.Errorf("expected repeated Ticker calls for the same pair to be identical, got %+v vs %+v", a, b)
	}
}

func TestOrderBookBidsBelowAsksAbove(t *testing.T) {
	g := fixedClock()
	book, err := g.OrderBook(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("OrderBook failed: %v", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		t.Fatal("expected a non-empty synthetic order book")
	}
	for _, lvl := range book.Bids {
		if lvl.Price >= book.Asks[0].Price {
			t.Errorf("expected every bid below every ask, got bid %v vs best ask %v", lvl.Price, book.Asks[0].Price)
		}
	}
}

func TestMultiExchangeTickerWrapsTicker(t *testing.T) {
	g := fixedClock()
	met, err := g.MultiExchangeTicker(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("MultiExchangeTicker failed: %v", err)
	}
	if len(met.Tickers) != 1 {
		t.Fatalf("expected exactly one wrapped ticker, got %d", len(met.Tickers))
	}
	if met.Degradation.HealthStatus != "ok" {
		t.Errorf("expected health_status=ok, got %s", met.Degradation.HealthStatus)
	}
}
