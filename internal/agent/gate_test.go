package agent

import (
	"math"
	"testing"
	"time"

	"nexus-crypto-desk/internal/domain"
)

func barsWithRangePct(n int, open, rangePct float64) []*domain.Candle {
	bars := make([]*domain.Candle, n)
	spread := open * rangePct / 100
	for i := range bars {
		bars[i] = &domain.Candle{
			Symbol:   "BTC",
			Interval: "5m",
			OpenTime: time.Unix(int64(i*300), 0).UTC(),
			Open:     open,
			High:     open + spread,
			Low:      open,
			Close:    open,
			Volume:   1,
		}
	}
	return bars
}

func freshOK(age float64) *domain.DataFreshness {
	return &domain.DataFreshness{
		Source:     "binance",
		AgeSeconds: age,
		Status:     domain.FreshnessOK,
	}
}

func TestEvaluateGateHighVolatility(t *testing.T) {
	t.Parallel()

	// avg (high-low)/open*100 = 1.5 over the last 30 bars
	short := barsWithRangePct(30, 60000, 1.5)

	result := EvaluateGate(freshOK(5), short, nil)
	if !result.MayRun {
		t.Fatalf("expected may-run with fresh data, got blocked: %s", result.Reason)
	}
	if !result.HighVolatility {
		t.Fatal("expected high volatility flag at 1.5% average range")
	}
	if math.Abs(result.AvgRangePct-1.5) > 1e-9 {
		t.Fatalf("expected avg range 1.5, got %f", result.AvgRangePct)
	}
}

func TestEvaluateGateCalmMarket(t *testing.T) {
	t.Parallel()

	short := barsWithRangePct(30, 60000, 0.4)

	result := EvaluateGate(freshOK(5), short, nil)
	if result.HighVolatility {
		t.Fatal("0.4% average range should not flag high volatility")
	}
}

func TestEvaluateGateStaleBlocks(t *testing.T) {
	t.Parallel()

	fresh := &domain.DataFreshness{Status: domain.FreshnessStale, AgeSeconds: 40}
	result := EvaluateGate(fresh, barsWithRangePct(30, 100, 1), nil)
	if result.MayRun {
		t.Fatal("stale freshness must block the run")
	}
	if result.Reason == "" {
		t.Fatal("expected a gate rejection reason")
	}
}

func TestEvaluateGateOfflineBlocks(t *testing.T) {
	t.Parallel()

	fresh := &domain.DataFreshness{Status: domain.FreshnessOffline}
	if EvaluateGate(fresh, nil, nil).MayRun {
		t.Fatal("offline freshness must block the run")
	}
}

func TestEvaluateGateAgeBound(t *testing.T) {
	t.Parallel()

	// OK status but older than the 15s analysis bound
	if EvaluateGate(freshOK(20), nil, nil).MayRun {
		t.Fatal("age beyond 15s must block even with OK status")
	}
	if !EvaluateGate(freshOK(15), nil, nil).MayRun {
		t.Fatal("age of exactly 15s should pass")
	}
}

func TestEvaluateGateNilFreshness(t *testing.T) {
	t.Parallel()

	if EvaluateGate(nil, nil, nil).MayRun {
		t.Fatal("missing freshness must block the run")
	}
}

func TestEvaluateGateTooFewBarsDefaults(t *testing.T) {
	t.Parallel()

	result := EvaluateGate(freshOK(1), barsWithRangePct(29, 100, 5), barsWithRangePct(49, 100, 5))
	if !result.MayRun {
		t.Fatal("short candle series must not block the run")
	}
	if result.AvgRangePct != 0 || result.HighVolatility {
		t.Fatal("volatility indicator should default to 0/false under 30 bars")
	}
	if result.AmplitudePct != 0 || result.RangeBound {
		t.Fatal("range indicator should default to 0/false under 50 bars")
	}
}

func TestEvaluateGateRangeBound(t *testing.T) {
	t.Parallel()

	// 50 bars whose total amplitude is 0.5% of the latest close
	long := barsWithRangePct(50, 60000, 0.5)

	result := EvaluateGate(freshOK(1), nil, long)
	if !result.RangeBound {
		t.Fatalf("expected range-bound at 0.5%% amplitude, got %f", result.AmplitudePct)
	}

	wide := barsWithRangePct(50, 60000, 3)
	if EvaluateGate(freshOK(1), nil, wide).RangeBound {
		t.Fatal("3% amplitude should not be range-bound")
	}
}

func TestEvaluateGateIdempotent(t *testing.T) {
	t.Parallel()

	fresh := freshOK(5)
	short := barsWithRangePct(30, 60000, 1.5)
	long := barsWithRangePct(50, 60000, 0.5)

	first := EvaluateGate(fresh, short, long)
	second := EvaluateGate(fresh, short, long)
	if first != second {
		t.Fatalf("gate is not idempotent: %+v vs %+v", first, second)
	}
}
