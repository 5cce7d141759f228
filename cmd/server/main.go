package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/franckalain/foodrescue/internal/config"
	"github.com/franckalain/foodrescue/internal/impact"
	"github.com/franckalain/foodrescue/internal/inventory"
	"github.com/franckalain/foodrescue/internal/metrics"
	"github.com/franckalain/foodrescue/internal/ml"
	"github.com/franckalain/foodrescue/internal/server"
	"github.com/franckalain/foodrescue/internal/verification"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal("failed to load configuration", err)
	}

	level := slog.LevelInfo
	if cfg.Server.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize inventory
	store, err := inventory.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		fatal("failed to open inventory", err)
	}
	defer store.Close()

	// Initialize ML service
	model, err := ml.NewModel(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		fatal("failed to create ML model", err)
	}
	if err := model.Load(ctx); err != nil {
		fatal("failed to load ML model", err)
	}
	defer model.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	analyzer := ml.NewAnalyzer(model,
		ml.WithTimeout(cfg.AnalyzerTimeout()),
		ml.WithRateLimit(cfg.Analyzer.RatePerMinute, cfg.Analyzer.Burst),
		ml.WithMetrics(m),
		ml.WithLogger(logger),
	)

	table, err := cfg.CategoryTable()
	if err != nil {
		fatal("invalid scoring table", err)
	}
	aggregator := verification.NewAggregator(
		verification.WithEngine(impact.NewEngine(table)),
		verification.WithThreshold(cfg.Scoring.PublishThreshold),
	)
	pipeline := verification.NewPipeline(analyzer, aggregator)

	// Initialize and start server
	srv := server.New(pipeline, store,
		server.WithMetrics(m, prometheus.DefaultGatherer),
		server.WithLogger(logger),
	)
	if err := srv.Start(ctx, cfg.Server.Port, cfg.Server.StaticDir); err != nil {
		fatal("server stopped", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
