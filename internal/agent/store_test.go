package agent

import (
	"testing"

	"nexus-crypto-desk/internal/domain"
)

func TestRunStateStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewRunStateStore()
	if store.State("BTC") != nil {
		t.Fatal("unknown asset should have nil state")
	}

	store.BeginRun("BTC", domain.ModeScan)
	state := store.State("BTC")
	if state == nil || !state.Running || state.Mode != domain.ModeScan {
		t.Fatalf("unexpected state after begin: %+v", state)
	}
	if state.StartedAt.IsZero() {
		t.Fatal("started_at should be stamped")
	}

	store.SetCurrentRole("BTC", RoleTrend)
	store.AppendOutput("BTC", &domain.AgentOutput{Agent: string(RoleTrend)})
	state = store.State("BTC")
	if state.CurrentRole != string(RoleTrend) || len(state.Outputs) != 1 {
		t.Fatalf("unexpected mid-run state: %+v", state)
	}

	store.FinishRun("BTC")
	state = store.State("BTC")
	if state.Running || state.CurrentRole != "" || state.FinishedAt.IsZero() {
		t.Fatalf("unexpected state after finish: %+v", state)
	}
	// Outputs of the finished run remain visible until the next run starts.
	if len(state.Outputs) != 1 {
		t.Fatal("finished run outputs should remain visible")
	}
}

func TestRunStateStoreBeginReplacesOutputs(t *testing.T) {
	t.Parallel()

	store := NewRunStateStore()
	store.BeginRun("BTC", domain.ModeScan)
	store.AppendOutput("BTC", &domain.AgentOutput{Agent: "trend"})
	store.FinishRun("BTC")

	store.BeginRun("BTC", domain.ModeDeep)
	state := store.State("BTC")
	if len(state.Outputs) != 0 {
		t.Fatal("a new run must replace, not append to, prior outputs")
	}
	if state.Mode != domain.ModeDeep {
		t.Fatalf("expected deep mode, got %s", state.Mode)
	}
}

func TestRunStateStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewRunStateStore()
	store.BeginRun("BTC", domain.ModeScan)
	store.AppendOutput("BTC", &domain.AgentOutput{Agent: "trend"})

	first := store.State("BTC")
	store.AppendOutput("BTC", &domain.AgentOutput{Agent: "momentum"})
	if len(first.Outputs) != 1 {
		t.Fatal("a returned state must not observe later appends")
	}
}

func TestRunStateStoreIndependentAssets(t *testing.T) {
	t.Parallel()

	store := NewRunStateStore()
	store.BeginRun("BTC", domain.ModeScan)
	store.BeginRun("ETH", domain.ModeDeep)
	store.SetPlan("ETH", &domain.MasterPlan{Symbol: "ETH"})

	if store.State("BTC").Plan != nil {
		t.Fatal("plan on one asset must not leak to another")
	}
	if store.State("ETH").Plan == nil {
		t.Fatal("expected plan on ETH")
	}
}
