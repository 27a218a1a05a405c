package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/stable-yield/internal/catalog"
	"github.com/web3-frozen/stable-yield/internal/config"
	"github.com/web3-frozen/stable-yield/internal/dedup"
	"github.com/web3-frozen/stable-yield/internal/engine"
	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/handler"
	"github.com/web3-frozen/stable-yield/internal/middleware"
	"github.com/web3-frozen/stable-yield/internal/monitor"
	"github.com/web3-frozen/stable-yield/internal/mover"
	"github.com/web3-frozen/stable-yield/internal/oracle"
	"github.com/web3-frozen/stable-yield/internal/positions"
	"github.com/web3-frozen/stable-yield/internal/session"
	"github.com/web3-frozen/stable-yield/internal/store"
	"github.com/web3-frozen/stable-yield/internal/telegram"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	// Redis for alert dedup and the catalog snapshot (retry up to 30s for ExternalSecret to sync)
	var dd *dedup.Deduplicator
	for i := 0; i < 6; i++ {
		dd, err = dedup.New(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.Error("failed to connect to redis after retries", "error", err)
		os.Exit(1)
	}
	defer dd.Close()
	logger.Info("redis connected")

	defaults, err := guardrails.LoadFile(cfg.GuardrailsFile)
	if err != nil {
		logger.Error("failed to load guardrails", "file", cfg.GuardrailsFile, "error", err)
		os.Exit(1)
	}

	// Feeds
	cat := catalog.New(catalog.NewLlamaClient(cfg.YieldsAPIURL), catalog.NewRedisSnapshot(dd.Client()), logger)
	cat.SetTTL(cfg.CatalogTTL)

	rpcs := make(map[yield.Chain]oracle.GasPricer, len(cfg.RPCURLs))
	for chain, urls := range cfg.RPCURLs {
		rpcs[chain] = oracle.NewRPCClient(urls...)
	}
	gas := oracle.New(rpcs, oracle.NewPriceClient(cfg.PriceAPIURL), logger)
	logger.Info("gas oracle configured", "rpc_chains", len(rpcs))

	// Wallet source and mover
	var (
		source positions.Source
		mv     mover.Mover
	)
	if cfg.UseMockData {
		sim := mover.NewSimulator(mover.NewLedgerBook(mover.DemoSeed, nil), logger)
		sim.SetLatency(cfg.SimulatedTxTime)
		source, mv = sim, sim
		logger.Info("using simulated wallets")
	} else {
		source, mv = positions.NewHTTPSource(cfg.PositionsAPIURL), mover.ReadOnly{}
		logger.Info("using live wallet provider; execution disabled", "url", cfg.PositionsAPIURL)
	}

	executor := mover.NewExecutor(mv, source, cfg.SettleDelay, logger)
	executor.OnStatus(func(e mover.Execution) {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer saveCancel()
		if err := db.SaveExecution(saveCtx, e); err != nil {
			logger.Error("failed to save execution", "execution_id", e.ID, "error", err)
		}
	})

	coord := session.NewCoordinator(engine.NewAnalyzer(cat, gas, logger), source, executor, db, defaults, logger)
	coord.SetProposalTimeout(cfg.ProposalTimeout)

	// Telegram bot and wallet monitor
	if cfg.TelegramToken != "" {
		bot := telegram.NewBot(cfg.TelegramToken, db, dd, coord, logger)
		mon := monitor.NewEngine(db, coord, cat, dd, bot.SendMessage, logger)
		mon.SetSchedule(cfg.PollInterval, cfg.DigestCron)

		go bot.Run(ctx)
		go func() {
			if err := mon.Run(ctx); err != nil {
				logger.Error("monitor stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set; alerts disabled")
	}

	// HTTP routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(cat, map[string]handler.Pinger{"postgres": db, "redis": dd}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/opportunities", handler.ListOpportunities(cat, logger))
		r.Get("/positions", handler.ListPositions(coord, logger))
		r.Get("/balances", handler.ListBalances(coord, logger))
		r.Post("/analyze", handler.Analyze(coord, logger))
		r.Get("/analyses", handler.ListAnalyses(db, logger))

		r.Get("/guardrails", handler.GetGuardrails(coord, logger))
		r.Put("/guardrails", handler.UpdateGuardrails(coord, db, logger))
		r.Post("/guardrails/preset", handler.ApplyPreset(coord, db, logger))
		r.Post("/guardrails/reset", handler.ResetGuardrails(coord, db, logger))

		r.Post("/proposals", handler.CreateProposal(coord, logger))
		r.Get("/proposals/{id}", handler.GetProposal(coord, logger))
		r.Post("/proposals/{id}/decision", handler.DecideProposal(coord, logger))

		r.Get("/executions", handler.ListExecutions(db, logger))
		r.Post("/watch", handler.Watch(db, logger))
		r.Delete("/watch", handler.Unwatch(db, dd, logger))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "mock_data", cfg.UseMockData)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
