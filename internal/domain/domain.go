package domain

import "time"

// Risk profiles a user may select in settings.
const (
	RiskConservative = "conservative"
	RiskBalanced     = "balanced"
	RiskAggressive   = "aggressive"
)

// IsValidRiskProfile reports whether v is one of the allowed risk profiles.
func IsValidRiskProfile(v string) bool {
	return v == RiskConservative || v == RiskBalanced || v == RiskAggressive
}

// Data source modes for market data.
const (
	SourceBinance   = "binance"
	SourceCoinGecko = "coingecko"
)

// Settings holds the user-configured desk parameters. A run reads settings
// once at start and is not re-parameterized mid-flight.
type Settings struct {
	TargetPct   float64 `json:"target_pct"`
	StopPct     float64 `json:"stop_pct"`
	RiskProfile string  `json:"risk_profile"`
	DataSource  string  `json:"data_source"`
}

// Log entry kinds for the desk activity log.
const (
	LogRefresh  = "REFRESH"
	LogAnalysis = "ANALYSIS"
	LogSystem   = "SYSTEM"
	LogError    = "ERROR"
)

// LogEntry is one line in the desk activity log shown on the dashboard.
type LogEntry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
