package agent

import (
	"fmt"
	"time"

	"nexus-crypto-desk/internal/domain"
	"nexus-crypto-desk/internal/ta"
)

// Gating thresholds. Analysis requires fresher data than display, so the
// freshness bound here is stricter than domain.QuoteStaleAfter.
const (
	AnalysisMaxAge = 15 * time.Second

	volatilityWindow  = 30
	highVolatilityPct = 1.2

	amplitudeWindow = 50
	rangeBoundPct   = 1.0
)

// GateResult is the outcome of the pre-run checks. Only the freshness gate
// blocks a run; the volatility and range flags attach to the snapshot to
// inform agent reasoning.
type GateResult struct {
	MayRun bool   `json:"may_run"`
	Reason string `json:"reason,omitempty"`

	AvgRangePct    float64 `json:"avg_range_pct"`
	HighVolatility bool    `json:"high_volatility"`
	AmplitudePct   float64 `json:"amplitude_pct"`
	RangeBound     bool    `json:"range_bound"`
}

// EvaluateGate runs the freshness gate and computes the volatility and
// range indicators. Pure: identical inputs always produce identical output.
// Candle slices are ordered most-recent-last.
func EvaluateGate(fresh *domain.DataFreshness, shortBars, longBars []*domain.Candle) GateResult {
	result := GateResult{}

	switch {
	case fresh == nil:
		result.Reason = "no freshness data for asset"
	case fresh.Status == domain.FreshnessStale:
		result.Reason = fmt.Sprintf("market data is stale (age %.0fs)", fresh.AgeSeconds)
	case fresh.Status == domain.FreshnessOffline:
		result.Reason = "market data source is offline"
	case fresh.AgeSeconds > AnalysisMaxAge.Seconds():
		result.Reason = fmt.Sprintf("data age %.0fs exceeds analysis bound of %.0fs",
			fresh.AgeSeconds, AnalysisMaxAge.Seconds())
	default:
		result.MayRun = true
	}

	result.AvgRangePct, result.HighVolatility = volatilityIndicator(shortBars)
	result.AmplitudePct, result.RangeBound = rangeIndicator(longBars)

	return result
}

// volatilityIndicator averages per-bar ((high-low)/open)*100 over the last
// volatilityWindow bars. Defaults to 0/false when not enough bars.
func volatilityIndicator(bars []*domain.Candle) (float64, bool) {
	if len(bars) < volatilityWindow {
		return 0, false
	}
	tail := bars[len(bars)-volatilityWindow:]

	ranges := make([]float64, 0, len(tail))
	for _, bar := range tail {
		if bar.Open == 0 {
			continue
		}
		ranges = append(ranges, (bar.High-bar.Low)/bar.Open*100)
	}
	if len(ranges) == 0 {
		return 0, false
	}

	avg, _ := ta.MeanStd(ranges)
	return avg, avg > highVolatilityPct
}

// rangeIndicator computes amplitude over the last amplitudeWindow bars:
// (max high - min low) / latest close * 100. Defaults to 0/false when not
// enough bars.
func rangeIndicator(bars []*domain.Candle) (float64, bool) {
	if len(bars) < amplitudeWindow {
		return 0, false
	}
	tail := bars[len(bars)-amplitudeWindow:]

	maxHigh := tail[0].High
	minLow := tail[0].Low
	for _, bar := range tail[1:] {
		if bar.High > maxHigh {
			maxHigh = bar.High
		}
		if bar.Low < minLow {
			minLow = bar.Low
		}
	}

	lastClose := tail[len(tail)-1].Close
	if lastClose == 0 {
		return 0, false
	}

	amplitude := (maxHigh - minLow) / lastClose * 100
	return amplitude, amplitude < rangeBoundPct
}
