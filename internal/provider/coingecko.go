package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"nexus-crypto-desk/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider fetches quotes and market-chart data from the CoinGecko
// free API. It is the desk's fallback data source: no 24h high/low and
// candles reconstructed from sampled price points rather than true OHLC.
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewCoinGeckoProvider creates a new provider with built-in rate limiting.
// The free tier tolerates roughly 8 requests per minute.
func NewCoinGeckoProvider(tracer trace.Tracer) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(8, 7500*time.Millisecond),
	}
}

// FetchPrices fetches current prices for all supported assets in one call.
func (p *CoinGeckoProvider) FetchPrices(ctx context.Context) (map[string]*domain.PriceSnapshot, error) {
	_, span := p.tracer.Start(ctx, "coingecko.fetch-prices")
	defer span.End()

	ids := make([]string, 0, len(domain.CoinGeckoID))
	for _, id := range domain.CoinGeckoID {
		ids = append(ids, id)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true",
		p.baseURL, strings.Join(ids, ","))

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	// {"bitcoin": {"usd": 97000, "usd_24h_vol": ..., "usd_24h_change": ...}, ...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}

	now := time.Now().Unix()
	result := make(map[string]*domain.PriceSnapshot, len(raw))
	for cgID, data := range raw {
		symbol, ok := domain.CoinGeckoIDToSymbol[cgID]
		if !ok {
			continue
		}
		result[symbol] = &domain.PriceSnapshot{
			Symbol:          symbol,
			PriceUSD:        data["usd"],
			Volume24h:       data["usd_24h_vol"],
			Change24hPct:    data["usd_24h_change"],
			LastUpdatedUnix: now,
		}
	}

	return result, nil
}

// FetchMarketChart fetches market_chart data for one symbol and buckets the
// sampled prices into candles for the given intervals. days=1 yields ~5min
// sample granularity (enough for 5m/15m/1h candles); days=30 yields ~1h
// granularity (for 4h/1d candles).
func (p *CoinGeckoProvider) FetchMarketChart(ctx context.Context, symbol string, days int, intervals []string) ([]*domain.Candle, error) {
	_, span := p.tracer.Start(ctx, "coingecko.fetch-market-chart")
	defer span.End()

	cgID, ok := domain.CoinGeckoID[symbol]
	if !ok {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", p.baseURL, cgID, days)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch market chart for %s: %w", symbol, err)
	}

	var raw struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse market chart for %s: %w", symbol, err)
	}

	var all []*domain.Candle
	for _, interval := range intervals {
		all = append(all, bucketMarketChart(symbol, interval, raw.Prices, raw.TotalVolumes)...)
	}
	return all, nil
}

// FetchCandles satisfies the same fetch surface as the Binance provider.
// Short intervals come from a 1-day chart, long intervals from a 30-day
// chart; limit is ignored because market_chart granularity is fixed.
func (p *CoinGeckoProvider) FetchCandles(ctx context.Context, symbol string, intervals []string, limit int) ([]*domain.Candle, error) {
	var short, long []string
	for _, interval := range intervals {
		switch interval {
		case "4h", "1d":
			long = append(long, interval)
		default:
			short = append(short, interval)
		}
	}

	var all []*domain.Candle
	if len(short) > 0 {
		candles, err := p.FetchMarketChart(ctx, symbol, 1, short)
		if err != nil {
			return nil, err
		}
		all = append(all, candles...)
	}
	if len(long) > 0 {
		candles, err := p.FetchMarketChart(ctx, symbol, 30, long)
		if err != nil {
			return nil, err
		}
		all = append(all, candles...)
	}
	return all, nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// bucketMarketChart folds sampled price points into interval-aligned candles,
// ordered most-recent-last.
func bucketMarketChart(symbol, interval string, prices, volumes [][]float64) []*domain.Candle {
	if len(prices) == 0 {
		return nil
	}
	step := intervalDuration(interval)
	if step == 0 {
		return nil
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i][0] < prices[j][0] })

	type ohlc struct {
		open, high, low, close float64
	}
	buckets := make(map[int64]*ohlc)
	for _, pt := range prices {
		if len(pt) < 2 {
			continue
		}
		price := pt[1]
		key := time.UnixMilli(int64(pt[0])).Truncate(step).UnixMilli()
		b, ok := buckets[key]
		if !ok {
			buckets[key] = &ohlc{open: price, high: price, low: price, close: price}
			continue
		}
		b.high = math.Max(b.high, price)
		b.low = math.Min(b.low, price)
		b.close = price
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	candles := make([]*domain.Candle, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		candles = append(candles, &domain.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(key).UTC(),
			Open:     b.open,
			High:     b.high,
			Low:      b.low,
			Close:    b.close,
			Volume:   nearestVolume(volumes, key+step.Milliseconds()),
		})
	}
	return candles
}

// nearestVolume picks the sampled cumulative volume closest to the bucket's
// close time. Market-chart volumes are sparse, so exact alignment is rare.
func nearestVolume(volumes [][]float64, targetMs int64) float64 {
	best := 0.0
	bestDiff := int64(math.MaxInt64)
	for _, v := range volumes {
		if len(v) < 2 {
			continue
		}
		diff := int64(v[0]) - targetMs
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = v[1]
		}
	}
	return best
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}
