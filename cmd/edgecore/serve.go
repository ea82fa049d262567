package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantmesh/edgecore/internal/adapters/feed"
	"github.com/quantmesh/edgecore/internal/application"
	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/execution"
	httpiface "github.com/quantmesh/edgecore/internal/interfaces/http"
	"github.com/quantmesh/edgecore/internal/market"
	"github.com/quantmesh/edgecore/internal/persistence"
	"github.com/quantmesh/edgecore/internal/persistence/postgres"
	"github.com/quantmesh/edgecore/internal/risk"
	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
	"github.com/quantmesh/edgecore/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the feed consumer and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := application.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.Logging)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg application.Config) error {
	store := market.NewStore()
	metrics := telemetry.New()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	engine, err := conviction.NewEngine(cfg.Weights)
	if err != nil {
		return err
	}
	convictionSvc := conviction.NewService(
		store,
		regime.NewClassifier(cfg.Signals.Regime),
		volatility.NewDetector(cfg.Signals.Volatility),
		footprint.NewDetector(cfg.Signals.Footprint),
		liquidation.NewProjector(cfg.Signals.Liquidation, liquidation.NewRedisSource(redisClient)),
		engine,
		metrics,
	)

	tracker := execution.NewTracker(cfg.Signals.TrackerDir)
	defer tracker.Close()
	planner := execution.NewPlanner(cfg.Execution, tracker, metrics)

	var plans persistence.PlanRepo
	if cfg.Database.DSN != "" {
		db, err := postgres.Connect(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		defer db.Close()
		plans = postgres.NewPlanRepo(db, 5*time.Second)
	} else {
		log.Warn().Msg("no database DSN, decisions will not be persisted")
	}

	pipeline := application.NewPipeline(store, convictionSvc, risk.NewService(cfg.Risk), planner, plans)

	if cfg.Feed.URL != "" {
		adapter := feed.NewAdapter(feed.Config{
			URL:          cfg.Feed.URL,
			Symbols:      cfg.Feed.Symbols,
			RatePerSec:   cfg.Feed.RatePerSec,
			RateBurst:    cfg.Feed.RateBurst,
			Reconnect:    time.Duration(cfg.Feed.ReconnectSec) * time.Second,
			PingInterval: time.Duration(cfg.Feed.PingIntervalSec) * time.Second,
		}, store)
		go func() {
			if err := adapter.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("feed adapter stopped")
			}
		}()
	} else {
		log.Warn().Msg("no feed URL, state updates must arrive out of band")
	}

	server := httpiface.NewServer(httpiface.Config{
		ListenAddr:   cfg.Server.ListenAddr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		Staleness:    time.Duration(cfg.Server.StalenessMs) * time.Millisecond,
	}, pipeline, metrics)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
