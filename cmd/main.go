package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breederchat/internal/config"
	"breederchat/internal/core/archive"
	"breederchat/internal/core/cache"
	"breederchat/internal/core/chat"
	"breederchat/internal/core/fetch"
	"breederchat/internal/core/scrape"
	"breederchat/internal/core/session"
	"breederchat/internal/health"
	"breederchat/internal/logger"
	"breederchat/internal/metrics"
	"breederchat/internal/platform/eino"
	rds "breederchat/internal/platform/redis"
	supaplatform "breederchat/internal/platform/supabase"
	tasks "breederchat/internal/platform/tasks"
	"breederchat/internal/server"
	"breederchat/internal/worker"
	"breederchat/prompts"

	supa "github.com/antoineross/supabase-go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("[breederchat] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// Redis backs the redis cache and the write-behind queue.
	var redisSvc *rds.Service
	if cfg.NeedsRedis() {
		redisSvc, err = rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			logr.LogWarnf("redis unavailable, durable cache and write-behind disabled: %v", err)
			redisSvc = nil
		} else {
			defer redisSvc.Close()
		}
	}

	var supaClient *supa.Client
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		supaClient, err = supaplatform.New(supaplatform.Options{URL: cfg.SupabaseURL, ServiceKey: cfg.SupabaseServiceKey})
		if err != nil {
			log.Fatal(err)
		}
	}

	// Durable cache
	durable := cache.Select(cfg.CacheBackend, redisSvc, supaClient, cfg.SupabaseCacheTable, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	mux := worker.NewMux()
	var workerSrv *worker.Server
	if cfg.CacheWriteBehind && cfg.CacheBackend != "none" && redisSvc != nil {
		taskClient := tasks.New(redisSvc)
		defer taskClient.Close()
		queued := cache.NewQueued(durable, taskClient, cfg.TaskMaxRetries)
		mux.HandleFunc(tasks.TaskTypeCacheUpsert, queued.HandleTask)
		durable = queued
		workerSrv = worker.NewServer(redisSvc, mux, 4)
	}

	var pageArchive archive.Archiver = archive.Noop{}
	if supaClient != nil && cfg.SupabaseArchiveBucket != "" {
		pageArchive = archive.NewSupabase(supaClient, cfg.SupabaseArchiveBucket)
	}

	// Page fetcher, spaced per host across all sessions.
	fetcher, closeFetcher, err := fetch.NewBackend(fetch.BackendOptions{
		Name:          cfg.FetchBackend,
		Timeout:       cfg.FetchTimeout,
		HeaderProfile: cfg.FetchHeaderProfile,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := closeFetcher(); err != nil {
			logr.LogWarnf("close fetcher: %v", err)
		}
	}()
	fetcher = fetch.Throttled(fetcher, fetch.NewHostLimiter(cfg.HostSpacing))

	sessions := session.NewStore(cfg.SessionIdleTTL)
	sessions.OnSize = m.SetSessions
	go sessions.Run(ctx, cfg.SessionSweepInterval)

	scrapeSvc := scrape.NewService(scrape.Deps{
		Fetcher:  fetcher,
		Cache:    durable,
		Archive:  pageArchive,
		Sessions: sessions,
		Metrics:  m,
	}, scrape.Options{
		PageDelay:     cfg.PageDelay,
		FetchTimeout:  cfg.FetchTimeout,
		MaxRangePages: cfg.MaxRangePages,
		PreviewLimit:  scrape.DefaultOptions().PreviewLimit,
	})

	// Conversational responder: the LLM when a key is configured, otherwise
	// the deterministic summary.
	var (
		responder chat.Responder = chat.SummaryResponder{}
		criteria  chat.CriteriaExtractor
	)
	if cfg.GeminiAPIKey != "" {
		einoSvc, err := eino.NewService(ctx, eino.Config{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.DefaultLLMModel,
		})
		if err != nil {
			log.Fatalf("failed to initialize Eino service: %v", err)
		}
		llm := chat.NewLLMResponder(einoSvc, prompts.NewSystemPrompts())
		responder, criteria = llm, llm
	} else {
		logr.LogWarnf("GEMINI_API_KEY not set; chat replies use the built-in summary")
	}
	chatSvc := chat.NewService(scrapeSvc, responder, criteria, m, chat.Options{HistoryWindow: cfg.ChatHistoryWindow})

	if workerSrv != nil {
		if err := workerSrv.Start(); err != nil {
			log.Fatalf("worker start: %v", err)
		}
	}

	app := server.NewApp()
	checks := map[string]health.CheckFunc{}
	if redisSvc != nil {
		checks["redis"] = redisSvc.HealthCheck
	}
	healthHandler := server.RegisterRoutes(app, server.Dependencies{
		Scrape:    scrapeSvc,
		Chat:      chatSvc,
		Metrics:   m,
		Checks:    checks,
		RateLimit: 120,
	})
	healthHandler.SetReady()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		cancel()
		if workerSrv != nil {
			workerSrv.Shutdown()
		}
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logr.LogFatal("server listen", err)
	}
}
