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

	"nexus-crypto-desk/internal/agent"
	"nexus-crypto-desk/internal/bot"
	"nexus-crypto-desk/internal/cache"
	"nexus-crypto-desk/internal/config"
	"nexus-crypto-desk/internal/db"
	"nexus-crypto-desk/internal/domain"
	"nexus-crypto-desk/internal/handler"
	"nexus-crypto-desk/internal/job"
	"nexus-crypto-desk/internal/provider"
	"nexus-crypto-desk/internal/repository"
	"nexus-crypto-desk/internal/service"
	"nexus-crypto-desk/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "nexus-crypto-desk/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	startTelegramBotFunc   = bot.StartTelegramBot
	startPollerFunc        = func(p *job.PricePoller, ctx context.Context) { go p.Start(ctx) }
	startPlanSyncFunc      = func(j *job.PlanSyncJob, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Nexus Crypto Desk API
// @version         1.0
// @description     Crypto trading dashboard backend with a multi-agent analysis pipeline.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories exist only when Postgres is configured; the desk
	// degrades to cache-only operation without it.
	var (
		candleRepo *repository.CandleRepository
		runRepo    *repository.RunRepository
		planRepo   *repository.PlanRepository
	)
	if db.Pool != nil {
		candleRepo = repository.NewCandleRepository(db.Pool, tracer)
		runRepo = repository.NewRunRepository(db.Pool, tracer)
		planRepo = repository.NewPlanRepository(db.Pool, tracer)
	}

	// Market data providers and services
	binanceProvider := provider.NewBinanceProvider(tracer)
	geckoProvider := provider.NewCoinGeckoProvider(tracer)

	defaults := domain.Settings{
		TargetPct:   cfg.DefaultTargetPct,
		StopPct:     cfg.DefaultStopPct,
		RiskProfile: cfg.DefaultRiskProfile,
		DataSource:  cfg.DataSource,
	}
	settingsService := service.NewSettingsService(tracer, cache.Client, defaults)

	var candleStore service.CandleRepository
	if candleRepo != nil {
		candleStore = candleRepo
	}
	marketService := service.NewMarketService(
		tracer, binanceProvider, geckoProvider,
		candleStore, cache.Client, settingsService, cfg.CandleTailBars,
	)

	activityLog := service.NewActivityLog(0)
	stateStore := agent.NewRunStateStore()

	// Telegram bot doubles as the plan alert channel
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	deskBot := startTelegramBotFunc(marketService, stateStore, cfg.TelegramChatID)

	// Trade plans and background sync
	var planService *service.PlanService
	if planRepo != nil {
		var notifier service.PlanNotifier
		if deskBot != nil {
			notifier = deskBot
		}
		planService = service.NewPlanService(tracer, planRepo, marketService, notifier, activityLog)
		planSync := job.NewPlanSyncJob(tracer, planService, cfg.PlanSyncSecs)
		startPlanSyncFunc(planSync, ctx)
	}

	// Price poller
	poller := job.NewPricePoller(tracer, marketService, activityLog, cfg.QuotePollSecs)
	startPollerFunc(poller, ctx)

	// Analysis pipeline
	var orchestrator *agent.Orchestrator
	if cfg.OpenAIAPIKey != "" {
		invoker := agent.NewInvoker(tracer, agent.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
		var recorder agent.RunRecorder
		if runRepo != nil {
			recorder = runRepo
		}
		orchestrator = agent.NewOrchestrator(
			tracer, invoker, marketService, settingsService,
			recorder, activityLog, stateStore,
		)
	}

	// Handlers and routes
	var (
		runner handler.AnalysisRunner
		runs   handler.RunHistory
		plans  handler.PlanManager
	)
	if orchestrator != nil {
		runner = orchestrator
	}
	if runRepo != nil {
		runs = runRepo
	}
	if planService != nil {
		plans = planService
	}
	h := handler.New(tracer, marketService, runner, stateStore, runs, settingsService, plans, activityLog)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("nexus-crypto-desk"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Let in-flight run persistence finish before exiting
	if orchestrator != nil {
		orchestrator.DrainPersistence()
	}

	log.Println("Server exiting")
}
