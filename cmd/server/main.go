package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/api"
	"github.com/fxviews/fx-views-go/internal/cache"
	"github.com/fxviews/fx-views-go/internal/config"
	"github.com/fxviews/fx-views-go/internal/database"
	"github.com/fxviews/fx-views-go/internal/decision"
	"github.com/fxviews/fx-views-go/internal/features"
	"github.com/fxviews/fx-views-go/internal/handlers"
	"github.com/fxviews/fx-views-go/internal/logging"
	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/positioning"
	"github.com/fxviews/fx-views-go/internal/pressure"
	"github.com/fxviews/fx-views-go/internal/provider"
	"github.com/fxviews/fx-views-go/internal/services"
	"github.com/fxviews/fx-views-go/internal/technical"
	"github.com/fxviews/fx-views-go/internal/valuation"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to apply database schema: %v", err)
	}

	repo := database.NewSignalRepository(db.Pool)
	decisionCache := cache.NewDecisionCache(redis.Client, logger)

	technicalScorer, err := technical.NewScorer(nil, logger)
	if err != nil {
		log.Fatalf("Invalid posture table: %v", err)
	}
	fuser, err := decision.NewFuser(nil, logger)
	if err != nil {
		log.Fatalf("Invalid stance table: %v", err)
	}

	fillPolicies := features.PoliciesFromDays(cfg.Data.ForwardFillSeries)

	registry := services.NewModelRegistry()
	pipeline := services.NewPipelineService(
		registry,
		features.NewEngine(models.FrequencyMonthly, fillPolicies, logger),
		features.NewEngine(models.FrequencyWeekly, fillPolicies, logger),
		valuation.New(valuationConfig(cfg), logger),
		pressure.New(pressureConfig(cfg), logger),
		technicalScorer,
		positioning.NewScorer(logger),
		fuser,
		repo,
		decisionCache,
		logger,
	)

	indicators := services.NewIndicatorService()

	if err := bootstrap(context.Background(), cfg, logger, pipeline, registry, indicators); err != nil {
		logger.WithError(err).Error("Bootstrap incomplete; serving signal-unavailable until models are fitted")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, redis,
		handlers.NewSignalHandler(repo, decisionCache, logger),
		handlers.NewIndicatorHandler(indicators))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// bootstrap loads all input series, fits both layers and runs the first
// evaluation. A failure leaves the server up with no active signal rather
// than publishing a partial state.
func bootstrap(ctx context.Context, cfg *config.Config, logger *logrus.Logger, pipeline *services.PipelineService, registry *services.ModelRegistry, indicators *services.IndicatorService) error {
	loader := provider.NewLoader(cfg.Data.Dir, logger)

	bars, err := loader.LoadBars(cfg.Data.SpotFile)
	if err != nil {
		return fmt.Errorf("failed to load spot bars: %w", err)
	}
	spotMonthly := provider.MonthlyCloses("eurusd", bars)
	spotWeekly := provider.WeeklyCloses("eurusd", bars)

	inverted := make(map[string]bool, len(cfg.Data.InvertedSeries))
	for _, name := range cfg.Data.InvertedSeries {
		inverted[name] = true
	}

	dashboard := make(map[string]bool, len(cfg.Data.IndicatorSeries))
	for _, name := range cfg.Data.IndicatorSeries {
		dashboard[name] = true
	}

	monthly := make(map[string]models.Series, len(cfg.Data.MonthlySeries))
	for name, file := range cfg.Data.MonthlySeries {
		series, err := loader.LoadSeries(file, name, models.FrequencyMonthly, inverted[name])
		if err != nil {
			return fmt.Errorf("failed to load monthly series %s: %w", name, err)
		}
		monthly[name] = series
		if len(dashboard) == 0 || dashboard[name] {
			indicators.Update(series)
		}
	}

	weekly := make(map[string]models.Series, len(cfg.Data.WeeklySeries))
	for name, file := range cfg.Data.WeeklySeries {
		series, err := loader.LoadSeries(file, name, models.FrequencyWeekly, inverted[name])
		if err != nil {
			return fmt.Errorf("failed to load weekly series %s: %w", name, err)
		}
		weekly[name] = series
	}

	observations, err := loader.LoadPositioning(cfg.Data.PositioningFile)
	if err != nil {
		return fmt.Errorf("failed to load positioning series: %w", err)
	}
	if n := len(observations); n > 0 {
		latest := observations[n-1]
		expectedLag := time.Duration(cfg.Positioning.PublicationLagDays) * 24 * time.Hour
		if lag := latest.PublishedAt.Sub(latest.AsOf); lag > expectedLag {
			logger.WithFields(logrus.Fields{
				"as_of":        latest.AsOf.Format("2006-01-02"),
				"published_at": latest.PublishedAt.Format("2006-01-02"),
			}).Warn("Positioning publication lag exceeds configured expectation")
		}
	}

	if err := pipeline.FitValuation(ctx, monthly, spotMonthly); err != nil {
		return err
	}

	calendar := make([]time.Time, len(spotMonthly.Points))
	for i, p := range spotMonthly.Points {
		calendar[i] = p.Timestamp
	}
	monthlyEngine := features.NewEngine(models.FrequencyMonthly, features.PoliciesFromDays(cfg.Data.ForwardFillSeries), logger)
	monthlyRows, _, err := monthlyEngine.Matrix(monthly, calendar)
	if err != nil {
		return fmt.Errorf("failed to rebuild monthly rows for mispricing: %w", err)
	}
	mispricingZ, err := services.BuildMispricingZ(registry.Layer1(), monthlyRows, spotWeekly)
	if err != nil {
		return err
	}

	if err := pipeline.FitPressure(ctx, weekly, mispricingZ); err != nil {
		return err
	}

	record, err := pipeline.Evaluate(ctx, services.EvaluationInputs{
		AsOf:          time.Now().UTC(),
		MonthlySeries: monthly,
		SpotMonthly:   spotMonthly,
		WeeklySeries:  weekly,
		MispricingZ:   mispricingZ,
		Bars:          bars,
		Positioning:   observations,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"stance":     record.StanceTitle,
		"confidence": record.Confidence,
	}).Info("Initial evaluation complete")
	return nil
}

func valuationConfig(cfg *config.Config) valuation.Config {
	return valuation.Config{
		Alphas:              cfg.Valuation.Alphas,
		L1Ratios:            cfg.Valuation.L1Ratios,
		CVFolds:             cfg.Valuation.CVFolds,
		MinOOSR2:            cfg.Valuation.MinOOSR2,
		MaxRegimeDivergence: cfg.Valuation.MaxRegimeDivergence,
	}
}

func pressureConfig(cfg *config.Config) pressure.Config {
	return pressure.Config{
		GBDT: pressure.GBDTParams{
			Trees:        cfg.Pressure.Trees,
			LearningRate: cfg.Pressure.LearningRate,
			MaxDepth:     cfg.Pressure.MaxDepth,
			Subsample:    cfg.Pressure.Subsample,
			Lambda:       cfg.Pressure.Lambda,
			Alpha:        cfg.Pressure.Alpha,
			Seed:         cfg.Pressure.Seed,
			MinLeaf:      pressure.DefaultGBDTParams().MinLeaf,
		},
		HoldoutShare:   cfg.Pressure.HoldoutShare,
		AdoptionMargin: cfg.Pressure.AdoptionMargin,
		MinHitRate:     cfg.Pressure.MinHitRate,
		RidgeAlpha:     pressure.DefaultConfig().RidgeAlpha,
		NetAlpha:       pressure.DefaultConfig().NetAlpha,
		NetL1Ratio:     pressure.DefaultConfig().NetL1Ratio,
	}
}
