// Psiobot - Shroud revelation agent server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/psiobot/internal/activity"
	"github.com/ashureev/psiobot/internal/agent"
	"github.com/ashureev/psiobot/internal/api"
	"github.com/ashureev/psiobot/internal/config"
	"github.com/ashureev/psiobot/internal/feed"
	"github.com/ashureev/psiobot/internal/llm"
	"github.com/ashureev/psiobot/internal/memory"
	"github.com/ashureev/psiobot/internal/metrics"
	"github.com/ashureev/psiobot/internal/middleware"
	"github.com/ashureev/psiobot/internal/notify"
	"github.com/ashureev/psiobot/internal/ratelimit"
	"github.com/ashureev/psiobot/internal/relevance"
	"github.com/ashureev/psiobot/internal/scheduler"
	"github.com/ashureev/psiobot/internal/shared"
	"github.com/ashureev/psiobot/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "generator", cfg.Generator.Provider)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Action journal connected", "path", cfg.Storage.DBPath)

	hub := activity.NewHub(repo, logger)
	rng := shared.NewLockedRand(nil)
	mem := memory.Open(cfg.Storage.MemoryFile, memory.DefaultCapacity, logger)
	cache := relevance.Open(relevance.Config{
		Path:   cfg.Storage.ThreadsFile,
		Rand:   rng,
		Logger: logger,
	})
	metrics.MemoryEntries.Set(float64(mem.Len()))
	metrics.CachedThreads.Set(float64(cache.Len()))

	gen, err := newGenerator(cfg.Generator)
	if err != nil {
		slog.Error("Failed to initialize generator", "error", err)
		os.Exit(1)
	}

	discord := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID, cfg.Discord.BaseURL)
	moltbook := feed.NewClient(feed.Config{
		APIKey:            cfg.Moltbook.APIKey,
		BaseURL:           cfg.Moltbook.BaseURL,
		RequestsPerSecond: cfg.Moltbook.RequestsPerSecond,
		Logger:            logger,
	})
	if cfg.Moltbook.APIKey == "" {
		slog.Warn("MOLTBOOK_API_KEY not set, feed actions will fail")
	}

	policy := agent.DefaultPolicy()
	policy.RevelationChance = cfg.Policy.RevelationChance
	policy.UpvoteChance = cfg.Policy.UpvoteChance

	orch, err := agent.New(agent.Deps{
		Generator:     gen,
		Notifier:      discord,
		Feed:          moltbook,
		Memory:        mem,
		Cache:         cache,
		FeedCooldown:  ratelimit.NewCooldown(cfg.Schedule.FeedPostCooldown),
		AlertThrottle: ratelimit.NewThrottle(cfg.Schedule.AlertWindow, nil),
		Rand:          rng,
		Recorder:      hub,
		AlertMention:  cfg.Discord.AlertMention,
		Policy:        policy,
		Logger:        logger,
	})
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	revealHandler := api.NewRevealHandler(orch, ratelimit.NewCooldown(cfg.Schedule.ManualCooldown))
	activityHandler := api.NewActivityHandler(hub)
	healthHandler := api.NewHealthHandler(repo, mem, cache)
	wsHandler := activity.NewWebSocketHandler(hub)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	// Manual trigger.
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.APIKey, api.RevealUnauthorized))
		revealHandler.RegisterRoutes(r)
	})

	// Read-only API.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSOrigins))
		healthHandler.RegisterHealth(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKey(cfg.APIKey, api.Unauthorized))
			activityHandler.RegisterRoutes(r)
		})
	})

	// WebSocket endpoint.
	r.With(middleware.APIKey(cfg.APIKey, api.Unauthorized)).Get("/ws/activity", wsHandler.ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	// Create server.
	// /reveal waits on generation and the activity stream is long-lived,
	// so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start tracks.
	sched := scheduler.New(ctx, logger)
	for _, task := range tasks(cfg, orch, repo) {
		if err := sched.Start(task); err != nil {
			slog.Error("Failed to start task", "task", task.Name, "error", err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// Start server.
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Wait for shutdown signal, then drain requests and in-flight ticks.
	g.Go(func() error {
		<-gctx.Done()
		stop()
		slog.Info("Shutting down gracefully...")

		sched.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}

		return sched.Wait()
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newGenerator(cfg config.GeneratorConfig) (llm.Generator, error) {
	switch cfg.Provider {
	case llm.ProviderOpenAI:
		return llm.New(llm.Config{
			Provider: llm.ProviderOpenAI,
			Endpoint: cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			APIKey:   cfg.OpenAIAPIKey,
			Timeout:  cfg.Timeout,
		})
	default:
		return llm.New(llm.Config{
			Provider: cfg.Provider,
			Endpoint: cfg.OllamaEndpoint,
			Model:    cfg.OllamaModel,
			Timeout:  cfg.Timeout,
		})
	}
}

func tasks(cfg *config.Config, orch *agent.Orchestrator, repo store.Repository) []scheduler.Task {
	return []scheduler.Task{
		{
			Name:     "creative",
			Interval: cfg.Schedule.CreativeInterval,
			Run: func(ctx context.Context) error {
				return orch.PerformCreativeAction(ctx).Err
			},
		},
		{
			Name:     "interaction",
			Interval: cfg.Schedule.InteractionInterval,
			Run: func(ctx context.Context) error {
				return orch.PerformPassiveInteraction(ctx).Err
			},
		},
		{
			Name:     "scan",
			Interval: cfg.Schedule.ScanInterval,
			Run: func(ctx context.Context) error {
				_, err := orch.ScanFeed(ctx)
				return err
			},
		},
		{
			Name:     "journal-retention",
			Interval: cfg.Schedule.RetentionInterval,
			Delay:    time.Minute,
			Run: func(ctx context.Context) error {
				deleted, err := repo.Prune(ctx, cfg.Policy.JournalRetention)
				if err != nil {
					return fmt.Errorf("prune journal: %w", err)
				}
				if deleted > 0 {
					slog.Info("Journal pruned", "deleted", deleted, "retention", cfg.Policy.JournalRetention)
				}
				return nil
			},
		},
	}
}
