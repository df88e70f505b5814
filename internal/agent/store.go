package agent

import (
	"sync"
	"time"

	"nexus-crypto-desk/internal/domain"
)

// RunState is the UI-visible state of the latest analysis run for one asset.
type RunState struct {
	Symbol      string                   `json:"symbol"`
	Mode        string                   `json:"mode"`
	Running     bool                     `json:"running"`
	CurrentRole string                   `json:"current_role,omitempty"`
	Outputs     []*domain.AgentOutput    `json:"outputs"`
	Plan        *domain.MasterPlan       `json:"plan,omitempty"`
	Validation  *domain.ValidationResult `json:"validation,omitempty"`
	StartedAt   time.Time                `json:"started_at,omitempty"`
	FinishedAt  time.Time                `json:"finished_at,omitempty"`
}

// RunStateStore holds per-asset run state. The orchestrator is the only
// writer; handlers and the bot read through State, which returns a copy.
type RunStateStore struct {
	mu     sync.RWMutex
	states map[string]*RunState
}

func NewRunStateStore() *RunStateStore {
	return &RunStateStore{states: make(map[string]*RunState)}
}

// BeginRun resets the asset's state for a new run, replacing (not
// appending to) any outputs from previous runs.
func (s *RunStateStore) BeginRun(symbol, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[symbol] = &RunState{
		Symbol:    symbol,
		Mode:      mode,
		Running:   true,
		StartedAt: time.Now().UTC(),
	}
}

// SetCurrentRole marks the role currently executing, for UI display.
func (s *RunStateStore) SetCurrentRole(symbol string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[symbol]; ok {
		state.CurrentRole = string(role)
	}
}

// AppendOutput makes a completed stage's output visible immediately.
func (s *RunStateStore) AppendOutput(symbol string, output *domain.AgentOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[symbol]; ok {
		state.Outputs = append(state.Outputs, output)
	}
}

// SetPlan replaces the asset's master plan wholesale.
func (s *RunStateStore) SetPlan(symbol string, plan *domain.MasterPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[symbol]; ok {
		state.Plan = plan
	}
}

// SetValidation replaces the asset's validation result.
func (s *RunStateStore) SetValidation(symbol string, result *domain.ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[symbol]; ok {
		state.Validation = result
	}
}

// FinishRun clears the running flag and executing role, success or not.
func (s *RunStateStore) FinishRun(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[symbol]; ok {
		state.Running = false
		state.CurrentRole = ""
		state.FinishedAt = time.Now().UTC()
	}
}

// State returns a copy of the asset's run state, or nil when the asset has
// never been analyzed. The outputs slice is copied so readers never observe
// an append in flight.
func (s *RunStateStore) State(symbol string) *RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[symbol]
	if !ok {
		return nil
	}
	copied := *state
	copied.Outputs = make([]*domain.AgentOutput, len(state.Outputs))
	copy(copied.Outputs, state.Outputs)
	return &copied
}
