package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"nexus-crypto-desk/internal/agent"
	"nexus-crypto-desk/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var handlerTracer = trace.NewNoopTracerProvider().Tracer("handler-test")

type stubMarket struct {
	price     *domain.PriceSnapshot
	prices    []*domain.PriceSnapshot
	candles   []*domain.Candle
	freshness *domain.DataFreshness
	err       error
}

func (s *stubMarket) GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	return s.price, s.err
}

func (s *stubMarket) GetCurrentPrices(ctx context.Context) ([]*domain.PriceSnapshot, error) {
	return s.prices, s.err
}

func (s *stubMarket) Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	return s.candles, s.err
}

func (s *stubMarket) Freshness(ctx context.Context, symbol string) (*domain.DataFreshness, error) {
	return s.freshness, s.err
}

type stubRunner struct {
	mu     sync.Mutex
	busy   bool
	err    error
	calls  []string
	called chan struct{}
}

func (s *stubRunner) Run(ctx context.Context, symbol, mode string) error {
	s.mu.Lock()
	s.calls = append(s.calls, symbol+"/"+mode)
	s.mu.Unlock()
	if s.called != nil {
		close(s.called)
	}
	return s.err
}

func (s *stubRunner) Busy() bool { return s.busy }

type stubRuns struct {
	runs       []*domain.RunRecord
	err        error
	lastSymbol string
	lastLimit  int
}

func (s *stubRuns) RecentRuns(ctx context.Context, symbol string, limit int) ([]*domain.RunRecord, error) {
	s.lastSymbol = symbol
	s.lastLimit = limit
	return s.runs, s.err
}

type stubSettings struct {
	settings domain.Settings
	getErr   error
	updated  *domain.Settings
	updErr   error
}

func (s *stubSettings) Get(ctx context.Context) (domain.Settings, error) {
	return s.settings, s.getErr
}

func (s *stubSettings) Update(ctx context.Context, settings domain.Settings) error {
	if s.updErr != nil {
		return s.updErr
	}
	s.updated = &settings
	return nil
}

type stubPlans struct {
	created      *domain.TradePlan
	createErr    error
	plans        []*domain.TradePlan
	listErr      error
	lastStatuses []string
	cancelled    []int64
	cancelErr    error
}

func (s *stubPlans) Create(ctx context.Context, plan *domain.TradePlan) error {
	if s.createErr != nil {
		return s.createErr
	}
	plan.ID = 7
	plan.Status = domain.PlanActive
	s.created = plan
	return nil
}

func (s *stubPlans) List(ctx context.Context, statuses []string) ([]*domain.TradePlan, error) {
	s.lastStatuses = statuses
	return s.plans, s.listErr
}

func (s *stubPlans) Cancel(ctx context.Context, id int64) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)
	return nil
}

type stubLogs struct {
	entries   []domain.LogEntry
	lastLimit int
}

func (s *stubLogs) Recent(limit int) []domain.LogEntry {
	s.lastLimit = limit
	return s.entries
}

type handlerDeps struct {
	market   *stubMarket
	runner   *stubRunner
	state    *agent.RunStateStore
	runs     *stubRuns
	settings *stubSettings
	plans    *stubPlans
	logs     *stubLogs
}

func newTestRouter(t *testing.T, apiKey string) (*gin.Engine, *handlerDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &handlerDeps{
		market:   &stubMarket{},
		runner:   &stubRunner{},
		state:    agent.NewRunStateStore(),
		runs:     &stubRuns{},
		settings: &stubSettings{settings: domain.Settings{TargetPct: 5, StopPct: 2, RiskProfile: domain.RiskBalanced, DataSource: domain.SourceBinance}},
		plans:    &stubPlans{},
		logs:     &stubLogs{},
	}

	h := New(handlerTracer, deps.market, deps.runner, deps.state, deps.runs, deps.settings, deps.plans, deps.logs)
	r := gin.New()
	h.RegisterRoutes(r, apiKey)
	return r, deps
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	r, _ := newTestRouter(t, "secret")

	w := doJSON(t, r, http.MethodGet, "/api/prices", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no key: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/prices", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("bad key: expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/prices", nil)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("good key: expected 200, got %d", w.Code)
	}
}

func TestHealthBypassesAuth(t *testing.T) {
	r, _ := newTestRouter(t, "secret")
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetPrice(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.market.price = &domain.PriceSnapshot{Symbol: "BTC", PriceUSD: 60000}

	w := doJSON(t, r, http.MethodGet, "/api/prices/btc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap domain.PriceSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if snap.Symbol != "BTC" || snap.PriceUSD != 60000 {
		t.Errorf("unexpected payload: %+v", snap)
	}
}

func TestGetPriceRejectsUnknownSymbol(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w := doJSON(t, r, http.MethodGet, "/api/prices/SHIB", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetCandlesRejectsUnknownInterval(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w := doJSON(t, r, http.MethodGet, "/api/candles/BTC?interval=3m", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartAnalysisAccepted(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.runner.called = make(chan struct{})

	w := doJSON(t, r, http.MethodPost, "/api/analysis/BTC?mode=deep", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	select {
	case <-deps.runner.called:
	case <-time.After(time.Second):
		t.Fatal("runner was not invoked")
	}
	deps.runner.mu.Lock()
	defer deps.runner.mu.Unlock()
	if len(deps.runner.calls) != 1 || deps.runner.calls[0] != "BTC/deep" {
		t.Errorf("unexpected runner calls: %v", deps.runner.calls)
	}
}

func TestStartAnalysisDefaultsToScan(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.runner.called = make(chan struct{})

	w := doJSON(t, r, http.MethodPost, "/api/analysis/ETH", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	<-deps.runner.called
	deps.runner.mu.Lock()
	defer deps.runner.mu.Unlock()
	if deps.runner.calls[0] != "ETH/scan" {
		t.Errorf("expected scan mode, got %v", deps.runner.calls)
	}
}

func TestStartAnalysisConflictWhenBusy(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.runner.busy = true

	w := doJSON(t, r, http.MethodPost, "/api/analysis/BTC", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if len(deps.runner.calls) != 0 {
		t.Errorf("runner should not be invoked while busy")
	}
}

func TestStartAnalysisRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, "")

	if w := doJSON(t, r, http.MethodPost, "/api/analysis/SHIB", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown symbol: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/analysis/BTC?mode=turbo", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: expected 400, got %d", w.Code)
	}
}

func TestGetAnalysisState(t *testing.T) {
	r, deps := newTestRouter(t, "")

	w := doJSON(t, r, http.MethodGet, "/api/analysis/BTC", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("no run yet: expected 404, got %d", w.Code)
	}

	deps.state.BeginRun("BTC", domain.ModeScan)
	deps.state.SetCurrentRole("BTC", agent.RoleTrend)

	w = doJSON(t, r, http.MethodGet, "/api/analysis/BTC", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var state agent.RunState
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if state.Symbol != "BTC" || state.Mode != domain.ModeScan {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestGetRuns(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.runs.runs = []*domain.RunRecord{{Symbol: "BTC", Mode: domain.ModeScan}}

	w := doJSON(t, r, http.MethodGet, "/api/runs?symbol=btc&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if deps.runs.lastSymbol != "BTC" || deps.runs.lastLimit != 5 {
		t.Errorf("unexpected query passed through: %s/%d", deps.runs.lastSymbol, deps.runs.lastLimit)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	r, deps := newTestRouter(t, "")

	w := doJSON(t, r, http.MethodGet, "/api/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var got domain.Settings
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if got.TargetPct != 5 || got.RiskProfile != domain.RiskBalanced {
		t.Errorf("unexpected settings: %+v", got)
	}

	next := domain.Settings{TargetPct: 8, StopPct: 3, RiskProfile: domain.RiskAggressive, DataSource: domain.SourceCoinGecko}
	w = doJSON(t, r, http.MethodPut, "/api/settings", next)
	if w.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d", w.Code)
	}
	if deps.settings.updated == nil || deps.settings.updated.TargetPct != 8 {
		t.Errorf("update not applied: %+v", deps.settings.updated)
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.settings.updErr = errors.New("target_pct must be between 0 and 100")

	w := doJSON(t, r, http.MethodPut, "/api/settings", domain.Settings{TargetPct: -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreatePlan(t *testing.T) {
	r, deps := newTestRouter(t, "")

	req := createPlanRequest{
		Symbol:      "btc",
		Side:        "LONG",
		EntryPrice:  60000,
		TargetPrice: 63000,
		StopPrice:   58800,
	}
	w := doJSON(t, r, http.MethodPost, "/api/plans", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if deps.plans.created == nil {
		t.Fatal("plan was not passed to the service")
	}
	if deps.plans.created.Symbol != "BTC" || deps.plans.created.Side != domain.SideLong {
		t.Errorf("symbol/side not normalized: %+v", deps.plans.created)
	}
}

func TestCreatePlanRejectsMissingFields(t *testing.T) {
	r, _ := newTestRouter(t, "")
	w := doJSON(t, r, http.MethodPost, "/api/plans", map[string]any{"symbol": "BTC"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCancelPlan(t *testing.T) {
	r, deps := newTestRouter(t, "")

	w := doJSON(t, r, http.MethodDelete, "/api/plans/12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(deps.plans.cancelled) != 1 || deps.plans.cancelled[0] != 12 {
		t.Errorf("unexpected cancel calls: %v", deps.plans.cancelled)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/plans/notanumber", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetLogs(t *testing.T) {
	r, deps := newTestRouter(t, "")
	deps.logs.entries = []domain.LogEntry{{ID: 2, Kind: domain.LogSystem, Message: "started"}}

	w := doJSON(t, r, http.MethodGet, "/api/logs?limit=50", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if deps.logs.lastLimit != 50 {
		t.Errorf("limit not passed through, got %d", deps.logs.lastLimit)
	}

	w = doJSON(t, r, http.MethodGet, "/api/logs?limit=zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}
}
