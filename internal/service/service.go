// Package service exposes the core's request/response facade: Analyze,
// Screen, RecordFeedback, GetFeedbackStats, and GetWeeklyReport. It is
// transport-agnostic; HTTP routing and serialization live outside this
// module.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marketintel/engine/internal/analyzer"
	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/learn"
	"github.com/marketintel/engine/internal/persistence"
	"github.com/marketintel/engine/internal/screener"
)

// ErrorCode is the external error-response code enum.
type ErrorCode string

const (
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	CodeTooManySymbols     ErrorCode = "TOO_MANY_SYMBOLS"
	CodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeInternal           ErrorCode = "INTERNAL"
)

// ErrorResponse is the external error shape returned for any failed request.
type ErrorResponse struct {
	Success           bool
	Error             ErrorCode
	Message           string
	ProcessingTimeMs  int64
	Timestamp         time.Time
}

func errorCodeFor(kind domain.ErrorKind) ErrorCode {
	switch kind {
	case domain.KindValidation:
		return CodeValidationFailed
	case domain.KindTooManySymbols:
		return CodeTooManySymbols
	case domain.KindTimeout:
		return CodeTimeout
	case domain.KindServiceUnavailable:
		return CodeServiceUnavailable
	case domain.KindRateLimit:
		return CodeRateLimit
	default:
		return CodeInternal
	}
}

// AnalyzeRequest is the input to a single-pair confluence run.
type AnalyzeRequest struct {
	Pair           string
	Timeframe      string
	Limit          int
	IncludeDetails bool
	EnabledLayers  map[domain.EngineName]bool
}

// ScreenRequest is the input to a multi-symbol screening run.
type ScreenRequest struct {
	Symbols        []string
	Timeframe      string
	IncludeDetails bool
	EnabledLayers  map[domain.EngineName]bool
	Regime         bool
}

// ScreenMeta is the top-level meta envelope returned alongside Screen data.
type ScreenMeta struct {
	ProcessingTimeMs int64
	Timestamp        time.Time
	APIVersion       string
	BatchingEnabled  bool
	BatchSize        int
}

// FeedbackRequest is the input to RecordFeedback.
type FeedbackRequest struct {
	RefID          string
	Rating         domain.Rating
	PatternNames   []string
	ResponseTimeS  float64
}

// FeedbackStatsReport aggregates GetFeedbackStats(days).
type FeedbackStatsReport struct {
	WindowDays int
	Patterns   []domain.PatternWeight
}

// WeeklyReport aggregates GetWeeklyReport(): one entry per tracked pattern
// with its current sentiment and most recent adjustment.
type WeeklyReport struct {
	GeneratedAt time.Time
	Patterns    []PatternSummary
}

// PatternSummary is one pattern's weekly rollup.
type PatternSummary struct {
	Name             string
	CurrentWeight    float64
	MinConfidence    float64
	NetSentiment     float64
	TotalFeedback    int
	LastAdjustment   *domain.WeightAdjustment
}

// Service wires the full pipeline behind the external request surface.
type Service struct {
	analyzer *analyzer.Analyzer
	screener *screener.Screener
	learner  *learn.Learner
	patterns *learn.Store
	repo     *persistence.Repository
	cfg      *config.Config
}

// New builds a Service.
func New(a *analyzer.Analyzer, sc *screener.Screener, learner *learn.Learner, patterns *learn.Store, repo *persistence.Repository, cfg *config.Config) *Service {
	return &Service{analyzer: a, screener: sc, learner: learner, patterns: patterns, repo: repo, cfg: cfg}
}

// Analyze runs PerPairAnalyzer for one pair and persists the emitted signal.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (analyzer.Result, *ErrorResponse) {
	start := time.Now()
	result, err := s.analyzer.Analyze(ctx, req.Pair, req.Timeframe, analyzer.Options{
		Limit:          req.Limit,
		IncludeDetails: req.IncludeDetails,
		EnabledLayers:  req.EnabledLayers,
	})
	if err != nil {
		return analyzer.Result{}, toErrorResponse(err, start)
	}
	if s.repo != nil && s.repo.Signals != nil {
		if upsertErr := s.repo.Signals.Upsert(ctx, result.Signal); upsertErr != nil {
			log.Warn().Err(upsertErr).Str("signal_id", result.Signal.SignalID).Msg("failed to persist signal")
		}
	}
	return result, nil
}

// Screen runs the multi-symbol screener.
func (s *Service) Screen(ctx context.Context, req ScreenRequest) (screener.Response, ScreenMeta, *ErrorResponse) {
	start := time.Now()
	resp, err := s.screener.Screen(ctx, screener.Request{
		Symbols:        req.Symbols,
		Timeframe:      req.Timeframe,
		IncludeDetails: req.IncludeDetails,
		EnabledLayers:  req.EnabledLayers,
		Regime:         req.Regime,
	})
	if err != nil {
		return screener.Response{}, ScreenMeta{}, toErrorResponse(err, start)
	}
	meta := ScreenMeta{
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Timestamp:        time.Now(),
		APIVersion:       "v1",
		BatchingEnabled:  resp.Stats.BatchingUsed,
		BatchSize:        s.cfg.BatchSizeScreener,
	}
	if s.repo != nil && s.repo.Signals != nil {
		for _, r := range resp.Results {
			if r.OK && r.Analysis != nil {
				if upsertErr := s.repo.Signals.Upsert(ctx, r.Analysis.Signal); upsertErr != nil {
					log.Warn().Err(upsertErr).Msg("failed to persist screened signal")
				}
			}
		}
	}
	return resp, meta, nil
}

// RecordFeedback ingests a user rating for a previously emitted signal.
func (s *Service) RecordFeedback(ctx context.Context, req FeedbackRequest) *ErrorResponse {
	start := time.Now()
	if req.RefID == "" {
		return toErrorResponse(domain.NewError(domain.KindValidation, "", "ref_id is required", nil), start)
	}
	if req.Rating != domain.RatingPositive && req.Rating != domain.RatingNegative {
		return toErrorResponse(domain.NewError(domain.KindValidation, "", "rating must be +1 or -1", nil), start)
	}
	if _, err := uuid.Parse(req.RefID); err != nil {
		return toErrorResponse(domain.NewError(domain.KindValidation, "", "ref_id must be a signal UUID", nil), start)
	}

	rec := domain.FeedbackRecord{
		RefID:             req.RefID,
		Rating:            req.Rating,
		ResponseLatencyMs: int64(req.ResponseTimeS * 1000),
		PatternNamesUsed:  req.PatternNames,
		RecordedAtMs:      time.Now().UnixMilli(),
	}
	s.learner.RecordFeedback(rec)

	if s.repo != nil && s.repo.Feedback != nil {
		if err := s.repo.Feedback.Append(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("failed to persist feedback record")
		}
	}
	if s.repo != nil && s.repo.Signals != nil {
		if err := s.repo.Signals.UpdateRating(ctx, req.RefID, req.Rating); err != nil {
			log.Warn().Err(err).Msg("failed to update signal rating")
		}
	}
	return nil
}

// GetFeedbackStats reports per-pattern feedback aggregation over the
// trailing `days` window (default 7).
func (s *Service) GetFeedbackStats(days int) FeedbackStatsReport {
	if days <= 0 {
		days = 7
	}
	return FeedbackStatsReport{WindowDays: days, Patterns: s.patterns.All()}
}

// GetWeeklyReport aggregates every tracked pattern's sentiment and most
// recent adjustment, the per-pattern detail GetFeedbackStats summarizes.
func (s *Service) GetWeeklyReport() WeeklyReport {
	all := s.patterns.All()
	out := make([]PatternSummary, 0, len(all))
	for _, pw := range all {
		var last *domain.WeightAdjustment
		if n := len(pw.AdjustmentHistory); n > 0 {
			adj := pw.AdjustmentHistory[n-1]
			last = &adj
		}
		out = append(out, PatternSummary{
			Name:           pw.Name,
			CurrentWeight:  pw.CurrentWeight,
			MinConfidence:  pw.MinConfidence,
			NetSentiment:   pw.FeedbackStats.NetSentiment,
			TotalFeedback:  pw.FeedbackStats.Total,
			LastAdjustment: last,
		})
	}
	return WeeklyReport{GeneratedAt: time.Now(), Patterns: out}
}

func toErrorResponse(err error, start time.Time) *ErrorResponse {
	kind := domain.KindInternal
	if de, ok := err.(*domain.Error); ok {
		kind = de.Kind
	}
	return &ErrorResponse{
		Success:          false,
		Error:            errorCodeFor(kind),
		Message:          err.Error(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Timestamp:        time.Now(),
	}
}
