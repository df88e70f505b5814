package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"nexus-crypto-desk/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator start refusals.
var (
	ErrRunActive    = errors.New("an analysis run is already active")
	ErrGateRejected = errors.New("gating rejected the run")
)

// Timeframes the gate evaluates: micro-range volatility on the short one,
// range amplitude on the long one.
const (
	gateShortInterval = "5m"
	gateLongInterval  = "1h"
)

// AgentCaller is the invocation surface the orchestrator drives. One
// implementation wraps OpenAI; tests substitute stubs.
type AgentCaller interface {
	InvokeAgent(ctx context.Context, role Role, symbol string, snapshotJSON []byte, runningContext string) (*domain.AgentOutput, error)
	InvokeSynthesis(ctx context.Context, symbol string, snapshotJSON []byte, outputs []*domain.AgentOutput, directive string) (*domain.MasterPlan, error)
	InvokeValidation(ctx context.Context, symbol string, snapshotJSON []byte, outputs []*domain.AgentOutput, plan *domain.MasterPlan) (*domain.ValidationResult, error)
}

// SnapshotSource supplies freshness, candles and the frozen per-run snapshot.
type SnapshotSource interface {
	Freshness(ctx context.Context, symbol string) (*domain.DataFreshness, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
	BuildSnapshot(ctx context.Context, symbol string, fresh domain.DataFreshness, indicators domain.SnapshotIndicators) (*domain.MarketSnapshot, error)
}

// SettingsSource provides the desk settings, read once at run start.
type SettingsSource interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// RunRecorder persists completed run artifacts and audit events. Both are
// best-effort sinks: failures are logged and never surfaced to the run.
type RunRecorder interface {
	RecordRun(ctx context.Context, record *domain.RunRecord) error
	RecordAuditEvent(ctx context.Context, action, status string, metadata map[string]any) error
}

// LogSink receives desk activity log entries.
type LogSink interface {
	Add(kind, message, details string)
}

// Orchestrator sequences agent invocations into the analysis pipeline.
// A single process-wide run flag serializes runs: starting a second run
// while one is in flight is rejected, even for a different asset. This is
// a known serialization, not a per-asset lock.
type Orchestrator struct {
	tracer   trace.Tracer
	caller   AgentCaller
	market   SnapshotSource
	settings SettingsSource
	recorder RunRecorder
	logs     LogSink
	state    *RunStateStore

	mu      sync.Mutex
	running bool

	// persistWG tracks fire-and-forget recorder writes so shutdown and
	// tests can drain them.
	persistWG sync.WaitGroup
}

func NewOrchestrator(
	tracer trace.Tracer,
	caller AgentCaller,
	market SnapshotSource,
	settings SettingsSource,
	recorder RunRecorder,
	logs LogSink,
	state *RunStateStore,
) *Orchestrator {
	return &Orchestrator{
		tracer:   tracer,
		caller:   caller,
		market:   market,
		settings: settings,
		recorder: recorder,
		logs:     logs,
		state:    state,
	}
}

// Busy reports whether a run is currently in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Run executes one full analysis run for the asset: entry guard, gating,
// the role sequence, synthesis and validation (deep mode), the bounded
// correction loop, and finalization. It is synchronous; callers that need
// fire-and-forget semantics run it in a goroutine.
func (o *Orchestrator) Run(ctx context.Context, symbol, mode string) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("mode", mode),
	)

	if !domain.IsSupportedSymbol(symbol) {
		return fmt.Errorf("unsupported symbol: %s", symbol)
	}
	if mode != domain.ModeScan && mode != domain.ModeDeep {
		return fmt.Errorf("unsupported mode: %s", mode)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrRunActive
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
		o.state.FinishRun(symbol)
	}()

	gate, fresh := o.evaluateGate(ctx, symbol)
	if !gate.MayRun {
		o.logs.Add(domain.LogError, fmt.Sprintf("analysis for %s blocked by gate", symbol), gate.Reason)
		return fmt.Errorf("%w: %s", ErrGateRejected, gate.Reason)
	}

	snapshot, err := o.market.BuildSnapshot(ctx, symbol, fresh, domain.SnapshotIndicators{
		AvgRangePct:    gate.AvgRangePct,
		HighVolatility: gate.HighVolatility,
		AmplitudePct:   gate.AmplitudePct,
		RangeBound:     gate.RangeBound,
	})
	if err != nil {
		o.logs.Add(domain.LogError, fmt.Sprintf("snapshot build failed for %s", symbol), err.Error())
		return fmt.Errorf("build snapshot: %w", err)
	}

	settings, err := o.settings.Get(ctx)
	if err != nil {
		o.logs.Add(domain.LogError, fmt.Sprintf("settings read failed for %s", symbol), err.Error())
		return fmt.Errorf("read settings: %w", err)
	}

	o.state.BeginRun(symbol, mode)
	startedAt := time.Now().UTC()

	record, runErr := o.execute(ctx, snapshot, settings, mode)
	if runErr != nil {
		o.logs.Add(domain.LogError, fmt.Sprintf("analysis run for %s aborted", symbol), runErr.Error())
		o.audit(ctx, "analysis_run", "failed", map[string]any{
			"symbol": symbol,
			"mode":   mode,
			"error":  runErr.Error(),
		})
		return runErr
	}

	record.Symbol = symbol
	record.Mode = mode
	record.Snapshot = snapshot
	record.Freshness = snapshot.Freshness
	record.StartedAt = startedAt
	record.FinishedAt = time.Now().UTC()

	// Persistence is fire-and-forget: the run returns to idle without
	// waiting on durable storage. A nil recorder means the desk runs
	// without Postgres.
	if o.recorder != nil {
		o.persistWG.Add(1)
		go func() {
			defer o.persistWG.Done()
			if err := o.recorder.RecordRun(context.Background(), record); err != nil {
				log.Printf("record run for %s: %v", symbol, err)
			}
		}()
	}

	o.audit(ctx, "analysis_run", "completed", map[string]any{
		"symbol": symbol,
		"mode":   mode,
		"status": record.Validation.Status,
	})
	o.logs.Add(domain.LogAnalysis,
		fmt.Sprintf("%s analysis for %s complete", mode, symbol),
		fmt.Sprintf("validation status: %s", record.Validation.Status))

	return nil
}

// DrainPersistence blocks until pending recorder writes complete.
func (o *Orchestrator) DrainPersistence() {
	o.persistWG.Wait()
}

func (o *Orchestrator) evaluateGate(ctx context.Context, symbol string) (GateResult, domain.DataFreshness) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.gate")
	defer span.End()

	fresh, err := o.market.Freshness(ctx, symbol)
	if err != nil {
		// Treat an unreadable freshness record as absent; the gate blocks.
		log.Printf("freshness read for %s: %v", symbol, err)
		fresh = nil
	}

	shortBars, err := o.market.Candles(ctx, symbol, gateShortInterval, volatilityWindow)
	if err != nil {
		log.Printf("short candles for %s: %v", symbol, err)
	}
	longBars, err := o.market.Candles(ctx, symbol, gateLongInterval, amplitudeWindow)
	if err != nil {
		log.Printf("long candles for %s: %v", symbol, err)
	}

	gate := EvaluateGate(fresh, shortBars, longBars)
	var freshValue domain.DataFreshness
	if fresh != nil {
		freshValue = *fresh
	}
	return gate, freshValue
}

// execute drives the role sequence, synthesis, validation, and the
// one-shot correction loop. It returns a partially filled run record; the
// caller stamps identity and timing.
func (o *Orchestrator) execute(ctx context.Context, snapshot *domain.MarketSnapshot, settings domain.Settings, mode string) (*domain.RunRecord, error) {
	symbol := snapshot.Symbol

	miniJSON, err := json.Marshal(snapshot.Mini())
	if err != nil {
		return nil, fmt.Errorf("marshal mini snapshot: %w", err)
	}
	fullJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	var outputs []*domain.AgentOutput
	runningContext := ""

	for _, role := range SequenceFor(mode) {
		o.state.SetCurrentRole(symbol, role)

		snapJSON := miniJSON
		if role == fullSnapshotRole {
			snapJSON = fullJSON
		}

		output, err := o.caller.InvokeAgent(ctx, role, symbol, snapJSON, runningContext)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", role, err)
		}

		outputs = append(outputs, output)
		o.state.AppendOutput(symbol, output)
		runningContext = AppendContext(runningContext, role, output.Thesis)
	}

	var plan *domain.MasterPlan
	if mode == domain.ModeDeep {
		o.state.SetCurrentRole(symbol, RoleStrategist)
		plan, err = o.caller.InvokeSynthesis(ctx, symbol, miniJSON, outputs, "")
		if err != nil {
			return nil, fmt.Errorf("synthesis: %w", err)
		}
		applyTargets(plan, settings)
		o.state.SetPlan(symbol, plan)
	}

	o.state.SetCurrentRole(symbol, RoleAuditor)
	validation, err := o.caller.InvokeValidation(ctx, symbol, miniJSON, outputs, plan)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	o.state.SetValidation(symbol, validation)

	if mode == domain.ModeDeep && validation.Status == domain.ValidationFailed {
		plan, validation, err = o.correct(ctx, symbol, miniJSON, outputs, settings, validation)
		if err != nil {
			return nil, err
		}
	}

	return &domain.RunRecord{
		Outputs:    outputs,
		Plan:       plan,
		Validation: validation,
	}, nil
}

// correct performs the bounded self-correction pass: one synthesis retry
// with the failed validation's issues embedded verbatim, then one
// revalidation. A second failure downgrades to partial; the run is never
// discarded once a synthesis exists.
func (o *Orchestrator) correct(
	ctx context.Context,
	symbol string,
	miniJSON []byte,
	outputs []*domain.AgentOutput,
	settings domain.Settings,
	failed *domain.ValidationResult,
) (*domain.MasterPlan, *domain.ValidationResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.correction")
	defer span.End()

	o.logs.Add(domain.LogAnalysis,
		fmt.Sprintf("validation failed for %s, entering correction pass", symbol),
		fmt.Sprintf("%d critical issues", len(failed.CriticalIssues)))

	directive := CorrectionDirective(failed.CriticalIssues)

	o.state.SetCurrentRole(symbol, RoleStrategist)
	plan, err := o.caller.InvokeSynthesis(ctx, symbol, miniJSON, outputs, directive)
	if err != nil {
		return nil, nil, fmt.Errorf("correction synthesis: %w", err)
	}
	applyTargets(plan, settings)
	o.state.SetPlan(symbol, plan)

	o.state.SetCurrentRole(symbol, RoleAuditor)
	validation, err := o.caller.InvokeValidation(ctx, symbol, miniJSON, outputs, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("revalidation: %w", err)
	}

	if validation.Status == domain.ValidationFailed {
		// No further retries; downgrade so the run completes and records.
		validation.Status = domain.ValidationPartial
		o.logs.Add(domain.LogAnalysis,
			fmt.Sprintf("correction for %s still failing, downgraded to partial", symbol), "")
	} else {
		o.logs.Add(domain.LogAnalysis,
			fmt.Sprintf("correction for %s resolved", symbol),
			fmt.Sprintf("validation status: %s", validation.Status))
	}
	o.state.SetValidation(symbol, validation)

	return plan, validation, nil
}

// applyTargets derives absolute take-profit and stop prices from the
// configured percentages. Prices stay null whenever the posture is WAIT or
// no entry price was established.
func applyTargets(plan *domain.MasterPlan, settings domain.Settings) {
	plan.Targets.ProfitTargetPct = settings.TargetPct
	plan.Targets.StopLossPct = settings.StopPct
	plan.Targets.TakeProfitPrice = nil
	plan.Targets.StopPrice = nil

	if plan.Posture == domain.PostureWait || plan.Entry.EntryPrice == nil {
		return
	}

	entry := *plan.Entry.EntryPrice
	takeProfit := entry * (1 + settings.TargetPct/100)
	stop := entry * (1 - settings.StopPct/100)
	plan.Targets.TakeProfitPrice = &takeProfit
	plan.Targets.StopPrice = &stop
}

func (o *Orchestrator) audit(ctx context.Context, action, status string, metadata map[string]any) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordAuditEvent(ctx, action, status, metadata); err != nil {
		log.Printf("audit event %s/%s: %v", action, status, err)
	}
}
