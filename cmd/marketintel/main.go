package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketintel/engine/internal/analyzer"
	"github.com/marketintel/engine/internal/breaker"
	"github.com/marketintel/engine/internal/config"
	"github.com/marketintel/engine/internal/confluence"
	"github.com/marketintel/engine/internal/domain"
	"github.com/marketintel/engine/internal/fixture"
	"github.com/marketintel/engine/internal/gateway"
	"github.com/marketintel/engine/internal/learn"
	"github.com/marketintel/engine/internal/progress"
	"github.com/marketintel/engine/internal/screener"
	"github.com/marketintel/engine/internal/service"
	"github.com/marketintel/engine/internal/signal"
	"github.com/marketintel/engine/internal/universe"
)

const (
	appName = "marketintel"
	version = "v1.0.0"
)

// deps bundles the constructed pipeline; every subcommand's RunE closes
// over a freshly built deps rather than sharing package-level state.
type deps struct {
	svc *service.Service
	cfg *config.Config
}

func buildDeps(gw gateway.MarketDataGateway) *deps {
	cfg := config.Default()
	if path := os.Getenv("MARKETINTEL_CONFIG"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("falling back to default config")
		} else {
			cfg = loaded
		}
	}

	patterns := learn.NewStore(cfg)
	for _, eng := range domain.AllEngines {
		patterns.Register(string(eng), 1.0)
	}
	learner := learn.NewLearner(patterns, cfg)

	scorer := confluence.NewScorer(patterns)
	enricher := signal.NewEnricher(cfg)
	breakers := breaker.NewManager(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown())
	breakers.AttachRecovery(breaker.NewRecoveryQueue(2, time.Second))
	validator := universe.NewValidator(universe.DefaultPairs)

	az := analyzer.New(gw, scorer, enricher, breakers, validator, cfg)
	scr := screener.New(az, validator, breakers, cfg)

	svc := service.New(az, scr, learner, patterns, nil, cfg)
	return &deps{svc: svc, cfg: cfg}
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, continuing with process environment")
	}

	root := &cobra.Command{
		Use:     appName,
		Short:   "Real-time crypto perpetual-swap confluence engine",
		Version: version,
		Long: `marketintel runs the multi-layer confluence pipeline over perpetual-swap
pairs: per-pair indicator engines, weighted scoring, multi-symbol screening,
and signal enrichment with feedback-driven pattern weighting.

Market data in this build comes from the built-in deterministic fixture
generator; wiring a real exchange gateway is left to the embedding service.`,
	}

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newScreenCmd())
	root.AddCommand(newFeedbackCmd())
	root.AddCommand(newReportCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func newAnalyzeCmd() *cobra.Command {
	var timeframe string
	var limit int
	var details bool

	cmd := &cobra.Command{
		Use:   "analyze <pair>",
		Short: "Run the full confluence pipeline for one pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := buildDeps(fixture.New())
			ctx, cancel := context.WithTimeout(cmd.Context(), d.cfg.RequestTimeout())
			defer cancel()

			steps := progress.NewStepLogger([]string{"analyze"})
			steps.StartStep("analyze")
			result, errResp := d.svc.Analyze(ctx, service.AnalyzeRequest{
				Pair:           args[0],
				Timeframe:      timeframe,
				Limit:          limit,
				IncludeDetails: details,
			})
			timings := steps.Finish()
			log.Debug().Dur("analyze", timings["analyze"]).Msg("pipeline step timing")

			if errResp != nil {
				return printJSON(errResp)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "1h", "candle timeframe (1m,5m,15m,30m,1h,4h,1d)")
	cmd.Flags().IntVar(&limit, "limit", 100, "candle history depth")
	cmd.Flags().BoolVar(&details, "details", false, "include per-layer scoring detail")
	return cmd
}

func newScreenCmd() *cobra.Command {
	var symbols string
	var timeframe string
	var regime bool

	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Run the multi-symbol screener with automatic batching",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := buildDeps(fixture.New())
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			var syms []string
			for _, s := range strings.Split(symbols, ",") {
				if s = strings.TrimSpace(s); s != "" {
					syms = append(syms, s)
				}
			}

			resp, meta, errResp := d.svc.Screen(ctx, service.ScreenRequest{
				Symbols:   syms,
				Timeframe: timeframe,
				Regime:    regime,
			})
			if errResp != nil {
				return printJSON(errResp)
			}

			bi := progress.NewBatchIndicator("screen", resp.Stats.BatchCount)
			for i := range resp.Stats.BatchSummaries {
				bi.Update(i + 1)
			}
			bi.Finish()

			return printJSON(struct {
				Meta service.ScreenMeta `json:"meta"`
				Data screener.Response  `json:"data"`
			}{meta, resp})
		},
	}
	cmd.Flags().StringVar(&symbols, "symbols", "BTC,ETH,SOL", "comma-separated symbol list")
	cmd.Flags().StringVar(&timeframe, "timeframe", "1h", "candle timeframe")
	cmd.Flags().BoolVar(&regime, "regime", false, "use the regime batch size instead of the screener batch size")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var refID string
	var rating int
	var patterns string
	var responseTimeS float64

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record a rating against a previously emitted signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := buildDeps(fixture.New())
			var names []string
			for _, p := range strings.Split(patterns, ",") {
				if p = strings.TrimSpace(p); p != "" {
					names = append(names, p)
				}
			}
			errResp := d.svc.RecordFeedback(cmd.Context(), service.FeedbackRequest{
				RefID:         refID,
				Rating:        domain.Rating(rating),
				PatternNames:  names,
				ResponseTimeS: responseTimeS,
			})
			if errResp != nil {
				return printJSON(errResp)
			}
			fmt.Println("feedback recorded")
			return nil
		},
	}
	cmd.Flags().StringVar(&refID, "ref-id", "", "signal_id being rated (required)")
	cmd.Flags().IntVar(&rating, "rating", 1, "rating: 1 (positive) or -1 (negative)")
	cmd.Flags().StringVar(&patterns, "patterns", "", "comma-separated engine/pattern names credited")
	cmd.Flags().Float64Var(&responseTimeS, "response-time", 0, "seconds between signal emission and feedback")
	_ = cmd.MarkFlagRequired("ref-id")
	return cmd
}

func newReportCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print feedback-learning reports",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Per-pattern feedback statistics over a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := buildDeps(fixture.New())
			return printJSON(d.svc.GetFeedbackStats(days))
		},
	}
	statsCmd.Flags().IntVar(&days, "days", 7, "trailing window in days")

	weeklyCmd := &cobra.Command{
		Use:   "weekly",
		Short: "Weekly pattern-weight rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := buildDeps(fixture.New())
			return printJSON(d.svc.GetWeeklyReport())
		},
	}

	cmd.AddCommand(statsCmd)
	cmd.AddCommand(weeklyCmd)
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
