package domain

import "time"

// FreshnessStatus classifies how usable the latest market data is.
type FreshnessStatus string

const (
	FreshnessOK      FreshnessStatus = "OK"
	FreshnessPartial FreshnessStatus = "PARTIAL"
	FreshnessStale   FreshnessStatus = "STALE"
	FreshnessOffline FreshnessStatus = "OFFLINE"
)

// QuoteStaleAfter is the display staleness threshold for quotes. Analysis
// applies a stricter bound (see agent gating).
const QuoteStaleAfter = 30 * time.Second

// DataFreshness describes the age and health of the data behind a snapshot.
type DataFreshness struct {
	Source          string          `json:"source"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	PriceTimestamp  time.Time       `json:"price_timestamp"`
	AgeSeconds      float64         `json:"age_seconds"`
	LatencyMs       int64           `json:"latency_ms"`
	Status          FreshnessStatus `json:"status"`
}

// SnapshotIndicators holds indicators derived at snapshot build time.
// The volatility and range flags come from the gate evaluation; the
// per-timeframe summaries come from internal/ta.
type SnapshotIndicators struct {
	AvgRangePct    float64 `json:"avg_range_pct"`
	HighVolatility bool    `json:"high_volatility"`
	AmplitudePct   float64 `json:"amplitude_pct"`
	RangeBound     bool    `json:"range_bound"`
}

// TimeframeSummary is the compact per-timeframe view given to most agents
// instead of raw candle arrays.
type TimeframeSummary struct {
	Interval   string  `json:"interval"`
	Bars       int     `json:"bars"`
	FirstClose float64 `json:"first_close"`
	LastClose  float64 `json:"last_close"`
	ChangePct  float64 `json:"change_pct"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	RSI14      float64 `json:"rsi14"`
	MACDHist   float64 `json:"macd_hist"`
	VolumeSum  float64 `json:"volume_sum"`
}

// MarketSnapshot is the frozen bundle of market data handed to every agent
// call within a single analysis run. Built once per run, never mutated.
type MarketSnapshot struct {
	Symbol     string             `json:"symbol"`
	CapturedAt time.Time          `json:"captured_at"`
	Freshness  DataFreshness      `json:"freshness"`
	Price      PriceSnapshot      `json:"price"`
	Timeframes map[string][]*Candle `json:"timeframes"`
	Summaries  []TimeframeSummary `json:"summaries"`
	Indicators SnapshotIndicators `json:"indicators"`
}

// MiniSnapshot is the compact, candle-free form sent to most agent roles.
type MiniSnapshot struct {
	Symbol     string             `json:"symbol"`
	CapturedAt time.Time          `json:"captured_at"`
	Freshness  DataFreshness      `json:"freshness"`
	Price      PriceSnapshot      `json:"price"`
	Summaries  []TimeframeSummary `json:"summaries"`
	Indicators SnapshotIndicators `json:"indicators"`
}

// Mini returns the compact form of the snapshot.
func (s *MarketSnapshot) Mini() MiniSnapshot {
	return MiniSnapshot{
		Symbol:     s.Symbol,
		CapturedAt: s.CapturedAt,
		Freshness:  s.Freshness,
		Price:      s.Price,
		Summaries:  s.Summaries,
		Indicators: s.Indicators,
	}
}
