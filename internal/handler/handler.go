package handler

import (
	"context"

	"nexus-crypto-desk/internal/agent"
	"nexus-crypto-desk/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// MarketData is the market surface the handlers read from.
type MarketData interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
	GetCurrentPrices(ctx context.Context) ([]*domain.PriceSnapshot, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
	Freshness(ctx context.Context, symbol string) (*domain.DataFreshness, error)
}

// AnalysisRunner starts runs and reports run-in-flight status.
type AnalysisRunner interface {
	Run(ctx context.Context, symbol, mode string) error
	Busy() bool
}

// RunHistory reads persisted run records.
type RunHistory interface {
	RecentRuns(ctx context.Context, symbol string, limit int) ([]*domain.RunRecord, error)
}

// SettingsStore reads and writes desk settings.
type SettingsStore interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, settings domain.Settings) error
}

// PlanManager manages trade plans.
type PlanManager interface {
	Create(ctx context.Context, plan *domain.TradePlan) error
	List(ctx context.Context, statuses []string) ([]*domain.TradePlan, error)
	Cancel(ctx context.Context, id int64) error
}

// LogReader reads the desk activity log.
type LogReader interface {
	Recent(limit int) []domain.LogEntry
}

type Handler struct {
	tracer   trace.Tracer
	market   MarketData
	runner   AnalysisRunner
	state    *agent.RunStateStore
	runs     RunHistory
	settings SettingsStore
	plans    PlanManager
	logs     LogReader
}

func New(
	tracer trace.Tracer,
	market MarketData,
	runner AnalysisRunner,
	state *agent.RunStateStore,
	runs RunHistory,
	settings SettingsStore,
	plans PlanManager,
	logs LogReader,
) *Handler {
	return &Handler{
		tracer:   tracer,
		market:   market,
		runner:   runner,
		state:    state,
		runs:     runs,
		settings: settings,
		plans:    plans,
		logs:     logs,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/prices", h.GetAllPrices)
	api.GET("/prices/:symbol", h.GetPrice)
	api.GET("/candles/:symbol", h.GetCandles)
	api.GET("/freshness/:symbol", h.GetFreshness)

	api.POST("/analysis/:symbol", h.StartAnalysis)
	api.GET("/analysis/:symbol", h.GetAnalysisState)
	api.GET("/runs", h.GetRuns)

	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.UpdateSettings)

	api.POST("/plans", h.CreatePlan)
	api.GET("/plans", h.ListPlans)
	api.DELETE("/plans/:id", h.CancelPlan)

	api.GET("/logs", h.GetLogs)
}
