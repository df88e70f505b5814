package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nexus-crypto-desk/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const binanceBaseURL = "https://api.binance.com/api/v3"

// BinanceProvider fetches quotes and klines from the Binance public spot API.
// It is the desk's primary data source.
type BinanceProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewBinanceProvider creates a new provider with built-in rate limiting
// (10 requests per second, well under Binance's public endpoint weights).
func NewBinanceProvider(tracer trace.Tracer) *BinanceProvider {
	return &BinanceProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: binanceBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(10, 100*time.Millisecond),
	}
}

// FetchPrices fetches 24h ticker stats for all supported assets in one call.
func (p *BinanceProvider) FetchPrices(ctx context.Context) (map[string]*domain.PriceSnapshot, error) {
	_, span := p.tracer.Start(ctx, "binance.fetch-prices")
	defer span.End()

	pairs := make([]string, 0, len(domain.BinancePair))
	for _, pair := range domain.BinancePair {
		pairs = append(pairs, `"`+pair+`"`)
	}
	url := fmt.Sprintf("%s/ticker/24hr?symbols=[%s]", p.baseURL, strings.Join(pairs, ","))

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	var raw []struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		QuoteVolume        string `json:"quoteVolume"`
		CloseTime          int64  `json:"closeTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}

	pairToSymbol := make(map[string]string, len(domain.BinancePair))
	for symbol, pair := range domain.BinancePair {
		pairToSymbol[pair] = symbol
	}

	result := make(map[string]*domain.PriceSnapshot, len(raw))
	for _, t := range raw {
		symbol, ok := pairToSymbol[t.Symbol]
		if !ok {
			continue
		}
		result[symbol] = &domain.PriceSnapshot{
			Symbol:          symbol,
			PriceUSD:        parseFloat(t.LastPrice),
			Volume24h:       parseFloat(t.QuoteVolume),
			Change24hPct:    parseFloat(t.PriceChangePercent),
			High24h:         parseFloat(t.HighPrice),
			Low24h:          parseFloat(t.LowPrice),
			LastUpdatedUnix: t.CloseTime / 1000,
		}
	}

	return result, nil
}

// FetchKlines fetches up to limit closed candles for one symbol and interval.
// Binance returns klines oldest-first, which matches the desk's
// most-recent-last ordering.
func (p *BinanceProvider) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	_, span := p.tracer.Start(ctx, "binance.fetch-klines")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("interval", interval),
	)

	pair, ok := domain.BinancePair[symbol]
	if !ok {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}
	if !domain.IsSupportedInterval(interval) {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	url := fmt.Sprintf("%s/klines?symbol=%s&interval=%s&limit=%d", p.baseURL, pair, interval, limit)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch klines for %s %s: %w", symbol, interval, err)
	}

	// Each kline: [openTime, open, high, low, close, volume, closeTime, ...]
	// with OHLCV encoded as strings.
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines for %s %s: %w", symbol, interval, err)
	}

	candles := make([]*domain.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		var openTimeMs int64
		if err := json.Unmarshal(k[0], &openTimeMs); err != nil {
			continue
		}
		candles = append(candles, &domain.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(openTimeMs).UTC(),
			Open:     parseRawFloat(k[1]),
			High:     parseRawFloat(k[2]),
			Low:      parseRawFloat(k[3]),
			Close:    parseRawFloat(k[4]),
			Volume:   parseRawFloat(k[5]),
		})
	}

	return candles, nil
}

// FetchCandles fetches up to limit candles for each requested interval.
func (p *BinanceProvider) FetchCandles(ctx context.Context, symbol string, intervals []string, limit int) ([]*domain.Candle, error) {
	var all []*domain.Candle
	for _, interval := range intervals {
		candles, err := p.FetchKlines(ctx, symbol, interval, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, candles...)
	}
	return all, nil
}

func (p *BinanceProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
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
		return nil, fmt.Errorf("binance API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseRawFloat(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloat(s)
	}
	var f float64
	_ = json.Unmarshal(raw, &f)
	return f
}
