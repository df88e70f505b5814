package domain

import "time"

// Confidence levels emitted by agent stages.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// IsValidConfidence reports whether v is one of the allowed confidence levels.
func IsValidConfidence(v string) bool {
	return v == ConfidenceLow || v == ConfidenceMedium || v == ConfidenceHigh
}

// Posture values a synthesis or triage stage may recommend.
const (
	PostureWait       = "WAIT"
	PostureSeekEntry  = "SEEK_ENTRY"
	PostureReduceRisk = "REDUCE_RISK"
)

// IsValidPosture reports whether v is one of the allowed postures.
func IsValidPosture(v string) bool {
	return v == PostureWait || v == PostureSeekEntry || v == PostureReduceRisk
}

// Assertion is a claim tied to the snapshot fields that support it.
type Assertion struct {
	Claim    string   `json:"claim"`
	Evidence []string `json:"evidence"`
}

// Citation references a numeric snapshot field an agent used.
type Citation struct {
	Field string  `json:"field"`
	Value float64 `json:"value"`
}

// AgentOutput is the structured result of one analytical pipeline stage.
// Owned by the run that created it and never mutated after creation.
type AgentOutput struct {
	Agent       string      `json:"agent"`
	Symbol      string      `json:"asset"`
	Thesis      []string    `json:"thesis"`
	Alerts      []string    `json:"alerts"`
	Assertions  []Assertion `json:"assertions"`
	NumbersUsed []Citation  `json:"numbers_used"`
	DataNeeded  []string    `json:"data_needed"`
	Confidence  string      `json:"confidence"`
	Disclaimer  string      `json:"disclaimer"`

	// Triage-only fields.
	SetupScore  *float64 `json:"setup_score,omitempty"`
	Posture     string   `json:"posture,omitempty"`
	AllowDeep   *bool    `json:"allow_deep,omitempty"`
	Reason      string   `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EntrySpec describes the entry side of a master plan.
type EntrySpec struct {
	EntryPrice   *float64 `json:"entry_price"`
	Conditions   []string `json:"conditions"`
	Invalidation []string `json:"invalidation"`
}

// TargetSpec describes profit target and stop, in percent and (when an entry
// price exists) as computed absolute prices.
type TargetSpec struct {
	ProfitTargetPct float64  `json:"profit_target_pct"`
	StopLossPct     float64  `json:"stop_loss_pct"`
	TakeProfitPrice *float64 `json:"take_profit_price"`
	StopPrice       *float64 `json:"stop_price"`
}

// MasterPlan is the single synthesis result of a deep run. Replaced
// wholesale on each synthesis or correction pass, never merged.
type MasterPlan struct {
	Symbol            string     `json:"asset"`
	Scenario          string     `json:"scenario"`
	Posture           string     `json:"posture"`
	Entry             EntrySpec  `json:"entry"`
	Targets           TargetSpec `json:"targets"`
	ExecutionNotes    []string   `json:"execution_notes"`
	ConflictsResolved []string   `json:"conflicts_resolved"`
	TopRisks          []string   `json:"top_risks"`
	NumbersUsed       []Citation `json:"numbers_used"`
	DataNeeded        []string   `json:"data_needed"`
	Confidence        string     `json:"confidence"`
	Disclaimer        string     `json:"disclaimer"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Validation statuses.
const (
	ValidationValidated = "validated"
	ValidationPartial   = "partial"
	ValidationFailed    = "failed"
)

// Critical issue kinds the auditor may report.
const (
	IssueUnsupportedClaim = "unsupported-claim"
	IssueContradiction    = "contradiction"
	IssueOutOfSnapshot    = "out-of-snapshot"
	IssueMathError        = "math-error"
)

// CriticalIssue is one validation finding serious enough to fail a run.
type CriticalIssue struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

// ValidationResult is the auditor's verdict on a run's outputs.
type ValidationResult struct {
	Status         string          `json:"status"`
	CriticalIssues []CriticalIssue `json:"critical_issues"`
	DataNeeded     []string        `json:"data_needed"`
	Confidence     string          `json:"confidence"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Analysis run modes.
const (
	ModeScan = "scan"
	ModeDeep = "deep"
)

// RunRecord is the durable artifact of one completed analysis run.
// Written once, never updated in place.
type RunRecord struct {
	ID         int64             `json:"id,omitempty"`
	Symbol     string            `json:"symbol"`
	Mode       string            `json:"mode"`
	Snapshot   *MarketSnapshot   `json:"snapshot"`
	Outputs    []*AgentOutput    `json:"outputs"`
	Plan       *MasterPlan       `json:"plan,omitempty"`
	Validation *ValidationResult `json:"validation"`
	Freshness  DataFreshness     `json:"freshness"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// AuditEvent records an orchestrator action for the audit trail.
type AuditEvent struct {
	ID        int64          `json:"id,omitempty"`
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
