// Package gateway defines the contract the analytical core consumes for raw
// market data. No implementation lives in this module: providers, their
// retries, auth, and websocket reconnection are external collaborators.
package gateway

import (
	"context"

	"github.com/marketintel/engine/internal/domain"
)

// MarketDataGateway is the read-only data surface the core depends on.
// Every method carries the caller's deadline via ctx; a provider timeout
// surfaces as a *domain.Error with Kind == domain.KindTimeout.
type MarketDataGateway interface {
	Candles(ctx context.Context, pair string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
	Trades(ctx context.Context, pair string, limit int) ([]domain.Trade, error)
	OrderBook(ctx context.Context, pair string) (domain.OrderBook, error)
	Ticker(ctx context.Context, pair string) (domain.Ticker, error)
	FundingRate(ctx context.Context, pair string) (domain.FundingRate, error)
	FundingHistory(ctx context.Context, pair string, limit int) ([]domain.FundingRate, error)
	OpenInterest(ctx context.Context, pair string) (domain.OpenInterest, error)
	OpenInterestHistory(ctx context.Context, pair string, limit int) ([]domain.OpenInterest, error)
	MultiExchangeTicker(ctx context.Context, baseAsset string) (domain.MultiExchangeTicker, error)
}

// Snapshot is the full set of inputs PerPairAnalyzer gathers concurrently
// for one (pair, timeframe) before running the indicator engines.
type Snapshot struct {
	Pair         string
	Timeframe    domain.Timeframe
	Candles      []domain.Candle
	Trades       []domain.Trade
	OrderBook    domain.OrderBook
	Ticker       domain.Ticker
	Funding      domain.FundingRate
	FundingHist  []domain.FundingRate
	OI           domain.OpenInterest
	OIHist       []domain.OpenInterest

	// Missing* flags record which soft-optional inputs could not be
	// fetched, so engines can degrade rather than fail outright.
	MissingTrades  bool
	MissingBook    bool
	MissingFunding bool
	MissingOI      bool
}
