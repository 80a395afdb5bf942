package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"son1k-dispatch/internal/config"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"
	promptAdapters "son1k-dispatch/internal/infra/adapters/prompt"
	sunoAdapters "son1k-dispatch/internal/infra/adapters/suno"
	pg "son1k-dispatch/internal/infra/db/postgres"
	"son1k-dispatch/internal/infra/logging"
	"son1k-dispatch/internal/infra/metrics"
	red "son1k-dispatch/internal/infra/redis"
	"son1k-dispatch/internal/infra/sched"
	"son1k-dispatch/internal/infra/web"
	"son1k-dispatch/internal/infra/worker"
	"son1k-dispatch/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop adapters, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	accountRepo := pg.NewPostgresAccountRepo(pool)
	jobRepo := pg.NewPostgresJobRepo(pool, tm)

	// ---- Account store + use cases ----
	policy := usecase.CooldownPolicy{
		FailureThreshold:  cfg.Cooldown.FailureThreshold,
		FailureWindow:     cfg.Cooldown.FailureWindow,
		FailureCooldown:   cfg.Cooldown.FailureCooldown,
		RateLimitCooldown: cfg.Cooldown.RateLimitCooldown,
	}
	store, err := usecase.LoadAccountStore(ctx, accountRepo, policy, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("account store")
	}

	// ---- Worker adapter ----
	var musicWorker adapter.MusicWorkerAdapter
	if cfg.Worker.BaseURL == "" || cfg.Runtime.Dev {
		musicWorker = sunoAdapters.NewNoopWorkerAdapter()
		logger.Warn().Msg("worker adapter: noop (no base_url or dev mode)")
	} else {
		musicWorker, err = sunoAdapters.NewHTTPWorkerAdapter(&cfg.Worker, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker adapter")
		}
		logger.Info().Str("base_url", cfg.Worker.BaseURL).Msg("worker adapter: http")
	}

	// ---- Prompt enhancer ----
	var enhancer adapter.PromptEnhancer
	if cfg.Enhancer.APIKey != "" {
		enhancer, err = promptAdapters.NewOpenAIEnhancer(&cfg.Enhancer)
		if err != nil {
			logger.Fatal().Err(err).Msg("enhancer")
		}
		logger.Info().Str("model", cfg.Enhancer.Model).Msg("prompt enhancer: openai")
	} else {
		enhancer = promptAdapters.NewNoopEnhancer()
	}

	planFloors := make(map[model.Plan]int, len(cfg.Dispatch.PlanFloors))
	for name, floor := range cfg.Dispatch.PlanFloors {
		plan, perr := model.ParsePlan(name)
		if perr != nil {
			logger.Fatal().Str("plan", name).Msg("unknown plan in dispatch.plan_floors")
		}
		planFloors[plan] = floor
	}

	dispatchUC := usecase.NewDispatchUseCase(store, musicWorker, cfg.Dispatch.MaxAttempts, cfg.Worker.Timeout, planFloors, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, logger)
	capacityUC := usecase.NewCapacityUseCase(store)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, !cfg.Runtime.Dev, "", cfg.Server.SessionTTL)
	srv := web.NewServer(jobUC, capacityUC, store, auth, rateLimiter, cfg.Server.APIKey,
		cfg.Server.SubmitLimit, cfg.Server.SubmitWindow, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}

	// ---- Background workers ----
	workerPool := worker.NewPool(cfg.Worker.PoolSize, logger)
	processor := worker.NewJobProcessor(jobRepo, dispatchUC, enhancer, cfg.Worker.PollInterval, logger)
	resetWorker := sched.NewDailyResetWorker(cfg.Sched.DailyResetInterval, store, locker, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		workerPool.Start(gctx)
		processor.Start(gctx, workerPool)
		workerPool.Stop()
		return nil
	})
	g.Go(func() error {
		err := resetWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}
