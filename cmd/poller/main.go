package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/ghevents/internal/config"
	"github.com/user/ghevents/internal/github"
	"github.com/user/ghevents/internal/pipeline"
	"github.com/user/ghevents/internal/storage"
	"github.com/user/ghevents/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Try to initialize basic logger for error output
		logger.Init("debug", "")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logger.Info().Str("feed", cfg.GitHub.URL).Msg("Starting events poller")

	db, err := storage.NewDatabase(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	store := storage.NewEventStore(db)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("Database initialized")

	client := github.NewClient(cfg.GitHub)
	policy := github.Policy{
		BaseInterval: time.Duration(cfg.Poller.RateLimitBase) * time.Second,
		HardLimit:    time.Duration(cfg.Poller.RateLimitHard) * time.Second,
	}

	queue := pipeline.NewQueue(cfg.Poller.QueueSize)
	poller := github.NewPoller(client, policy, queue)

	pipe := pipeline.New(queue, poller, store, cfg.Poller.WorkersCount)
	pipe.Start()

	logger.Info().
		Int("queue_size", cfg.Poller.QueueSize).
		Int("workers", cfg.Poller.WorkersCount).
		Msg("Pipeline running")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down...")

	// Drain before the database goes away (deferred Close runs last).
	pipe.Stop()

	logger.Info().Msg("Shutdown complete")
}
