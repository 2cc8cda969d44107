package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seismostack/gmselect/internal/config"
	"github.com/seismostack/gmselect/internal/engine"
	"github.com/seismostack/gmselect/internal/gmpe"
	"github.com/seismostack/gmselect/internal/metrics"
	"github.com/seismostack/gmselect/internal/models"
	"github.com/seismostack/gmselect/internal/output"
	"github.com/seismostack/gmselect/internal/recorddb"
	"github.com/seismostack/gmselect/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting gmselect",
		slog.String("catalog", cfg.Database.Path),
		slog.Int("count", cfg.Selection.Count))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
			}
		}()
	}

	if err := run(ctx, cfg, logger); err != nil {
		metrics.ObserveRun(metrics.OutcomeError)
		logger.Error("selection failed", slog.Any("error", err))
		shutdownMetrics(metricsServer, logger)
		os.Exit(1)
	}
	metrics.ObserveRun(metrics.OutcomeSuccess)
	shutdownMetrics(metricsServer, logger)
	logger.Info("gmselect finished")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rup := models.RuptureScenario{
		Magnitude:          cfg.Scenario.Magnitude,
		DistanceKm:         cfg.Scenario.DistanceKm,
		Vs30:               cfg.Scenario.Vs30,
		BasinDepthKm:       cfg.Scenario.BasinDepthKm,
		Mechanism:          models.Mechanism(cfg.Scenario.Mechanism),
		Region:             models.Region(cfg.Scenario.Region),
		ConditioningPeriod: cfg.Selection.ConditioningPeriod,
		Epsilon:            cfg.Selection.Epsilon,
	}

	// The pool must be resampled onto the exact grid the target will use,
	// conditioning period included.
	grid := engine.PeriodGrid(cfg.Periods(), rup.ConditioningPeriod, cfg.Selection.Conditional)

	pool, err := loadPool(ctx, cfg, grid)
	if err != nil {
		return err
	}
	logger.Info("candidate pool loaded",
		slog.Int("records", pool.Size()),
		slog.Int("periods", len(grid)))

	pipeline := engine.NewPipeline(logger, gmpe.NewReferenceModel(), nil, engine.Options{
		Periods:          grid,
		SelectionCount:   cfg.Selection.Count,
		Conditional:      cfg.Selection.Conditional,
		VarianceEnabled:  cfg.Selection.VarianceEnabled,
		Trials:           cfg.Selection.Trials,
		Seed:             cfg.Selection.Seed,
		Sampling:         models.Sampling(cfg.Selection.Sampling),
		ScalingEnabled:   cfg.Selection.ScalingEnabled,
		MaxScale:         cfg.Selection.MaxScaleFactor,
		Passes:           cfg.Selection.Passes,
		Metric:           models.Metric(cfg.Selection.Metric),
		PenaltyWeight:    cfg.Selection.PenaltyWeight,
		TolerancePercent: cfg.Selection.TolerancePercent,
		Weights: models.Weights{
			Mean:  cfg.Selection.Weights.Mean,
			Stdev: cfg.Selection.Weights.Stdev,
		},
		Parallel: cfg.Selection.Parallel,
	})

	result, err := pipeline.Run(ctx, rup, pool)
	if err != nil {
		return err
	}

	if err := output.WriteFile(cfg.Output.Path, result, rune(cfg.Output.Delimiter[0])); err != nil {
		return err
	}
	logger.Info("selection written",
		slog.String("path", cfg.Output.Path),
		slog.Int("records", len(result.Records)),
		slog.Bool("converged", result.Converged))
	return nil
}

func loadPool(ctx context.Context, cfg *config.Config, grid []float64) (*models.CandidatePool, error) {
	filters := recorddb.Filters{
		MinMagnitude:          cfg.Database.Filters.MinMagnitude,
		MaxMagnitude:          cfg.Database.Filters.MaxMagnitude,
		MinDistanceKm:         cfg.Database.Filters.MinDistanceKm,
		MaxDistanceKm:         cfg.Database.Filters.MaxDistanceKm,
		MinVs30:               cfg.Database.Filters.MinVs30,
		MaxVs30:               cfg.Database.Filters.MaxVs30,
		MaxUsablePeriodFactor: cfg.Database.Filters.MaxUsablePeriodFactor,
	}
	if cfg.Database.Driver == "csv" {
		return recorddb.LoadCSV(cfg.Database.Path, grid, filters)
	}
	store, err := recorddb.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	return store.LoadPool(ctx, grid, filters)
}

func shutdownMetrics(server *http.Server, logger *slog.Logger) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
