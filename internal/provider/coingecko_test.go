package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestBucketMarketChart(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := [][]float64{
		{float64(base.UnixMilli()), 10},
		{float64(base.Add(2 * time.Minute).UnixMilli()), 12},
		{float64(base.Add(6 * time.Minute).UnixMilli()), 8},
		{float64(base.Add(8 * time.Minute).UnixMilli()), 9},
	}
	volumes := [][]float64{
		{float64(base.Add(5 * time.Minute).UnixMilli()), 100},
		{float64(base.Add(10 * time.Minute).UnixMilli()), 200},
	}

	candles := bucketMarketChart("BTC", "5m", prices, volumes)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	first := candles[0]
	if first.Open != 10 || first.High != 12 || first.Low != 10 || first.Close != 12 {
		t.Fatalf("unexpected first candle: %+v", first)
	}
	if first.Volume != 100 {
		t.Fatalf("expected volume 100, got %f", first.Volume)
	}

	second := candles[1]
	if !second.OpenTime.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("unexpected open time: %v", second.OpenTime)
	}
	if second.Open != 8 || second.Close != 9 {
		t.Fatalf("unexpected second candle: %+v", second)
	}
}

func TestNearestVolume(t *testing.T) {
	t.Parallel()

	volumes := [][]float64{{1000, 1}, {1500, 5}, {2000, 10}}
	if vol := nearestVolume(volumes, 1600); vol != 5 {
		t.Fatalf("expected volume 5, got %f", vol)
	}
	if vol := nearestVolume(nil, 1600); vol != 0 {
		t.Fatalf("expected 0 with no volume points, got %f", vol)
	}
}

func TestIntervalDuration(t *testing.T) {
	t.Parallel()

	tests := map[string]time.Duration{
		"5m":  5 * time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"bad": 0,
	}
	for interval, expected := range tests {
		if got := intervalDuration(interval); got != expected {
			t.Fatalf("%s expected %v, got %v", interval, expected, got)
		}
	}
}

func TestCoinGeckoProviderFetchPrices(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.baseURL = "http://example"
	provider.limiter = NewRateLimiter(10, time.Millisecond)
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/simple/price") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			return jsonResponse(t, map[string]map[string]float64{
				"bitcoin": {"usd": 100, "usd_24h_vol": 10, "usd_24h_change": 1.5},
			}), nil
		}),
	}

	result, err := provider.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, ok := result["BTC"]
	if !ok || snap.PriceUSD != 100 {
		t.Fatalf("expected BTC snapshot, got %+v", snap)
	}
	if snap.Volume24h != 10 || snap.Change24hPct != 1.5 {
		t.Fatalf("unexpected snapshot values: %+v", snap)
	}
}

func TestCoinGeckoProviderFetchMarketChart(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.baseURL = "http://example"
	provider.limiter = NewRateLimiter(10, time.Millisecond)
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/coins/bitcoin/market_chart") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			return jsonResponse(t, map[string]any{
				"prices": [][]float64{
					{float64(time.Now().Add(-10 * time.Minute).UnixMilli()), 10},
					{float64(time.Now().UnixMilli()), 12},
				},
				"total_volumes": [][]float64{
					{float64(time.Now().UnixMilli()), 100},
				},
			}), nil
		}),
	}

	candles, err := provider.FetchMarketChart(context.Background(), "BTC", 1, []string{"5m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) == 0 {
		t.Fatal("expected candles, got none")
	}
	if candles[0].Symbol != "BTC" || candles[0].Interval != "5m" {
		t.Fatalf("unexpected candle identity: %+v", candles[0])
	}
}
