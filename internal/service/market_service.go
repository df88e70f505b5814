package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"nexus-crypto-desk/internal/domain"
	"nexus-crypto-desk/internal/ta"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const priceCacheTTL = 90 * time.Second

// minSnapshotBars is the 5m bar count below which freshness degrades to
// PARTIAL: quotes are live but candle history is too thin for indicators.
const minSnapshotBars = 30

// MarketProvider is the market data fetch surface. Binance and CoinGecko
// both implement it.
type MarketProvider interface {
	FetchPrices(ctx context.Context) (map[string]*domain.PriceSnapshot, error)
	FetchCandles(ctx context.Context, symbol string, intervals []string, limit int) ([]*domain.Candle, error)
}

type CandleRepository interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
	UpsertCandles(ctx context.Context, candles []*domain.Candle) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SettingsReader exposes the desk settings the market service needs to pick
// its data source.
type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// MarketService owns quotes, candles, freshness, and snapshot assembly.
// The configured source is tried first; the other provider is the fallback.
type MarketService struct {
	tracer   trace.Tracer
	binance  MarketProvider
	gecko    MarketProvider
	repo     CandleRepository
	redis    RedisClient
	settings SettingsReader
	tailBars int
}

func NewMarketService(
	tracer trace.Tracer,
	binance MarketProvider,
	gecko MarketProvider,
	repo CandleRepository,
	redisClient RedisClient,
	settings SettingsReader,
	tailBars int,
) *MarketService {
	if tailBars <= 0 {
		tailBars = 60
	}
	return &MarketService{
		tracer:   tracer,
		binance:  binance,
		gecko:    gecko,
		repo:     repo,
		redis:    redisClient,
		settings: settings,
		tailBars: tailBars,
	}
}

type namedProvider struct {
	name     string
	provider MarketProvider
}

// providerOrder returns the providers in preference order per settings.
func (s *MarketService) providerOrder(ctx context.Context) []namedProvider {
	source := domain.SourceBinance
	if s.settings != nil {
		if settings, err := s.settings.Get(ctx); err == nil && settings.DataSource != "" {
			source = settings.DataSource
		}
	}
	if source == domain.SourceCoinGecko {
		return []namedProvider{{domain.SourceCoinGecko, s.gecko}, {domain.SourceBinance, s.binance}}
	}
	return []namedProvider{{domain.SourceBinance, s.binance}, {domain.SourceCoinGecko, s.gecko}}
}

// GetCurrentPrice returns the latest cached quote for a symbol, falling
// back to a live fetch when the cache is empty or expired.
func (s *MarketService) GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	_, span := s.tracer.Start(ctx, "market-service.get-current-price")
	defer span.End()

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	if s.redis != nil {
		cached, err := s.getPriceCache(ctx, symbol)
		if err != nil {
			log.Printf("redis cache read error: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	prices, _, err := s.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}
	snap, ok := prices[symbol]
	if !ok {
		return nil, fmt.Errorf("price not available for %s", symbol)
	}
	return snap, nil
}

// GetCurrentPrices returns the latest quotes for all supported symbols.
func (s *MarketService) GetCurrentPrices(ctx context.Context) ([]*domain.PriceSnapshot, error) {
	_, span := s.tracer.Start(ctx, "market-service.get-current-prices")
	defer span.End()

	var snapshots []*domain.PriceSnapshot
	missing := false

	for _, symbol := range domain.SupportedSymbols {
		if s.redis != nil {
			cached, _ := s.getPriceCache(ctx, symbol)
			if cached != nil {
				snapshots = append(snapshots, cached)
				continue
			}
		}
		missing = true
	}

	if missing {
		prices, _, err := s.fetchPrices(ctx)
		if err != nil {
			return snapshots, err
		}
		snapshots = snapshots[:0]
		for _, symbol := range domain.SupportedSymbols {
			if snap, ok := prices[symbol]; ok {
				snapshots = append(snapshots, snap)
			}
		}
	}

	return snapshots, nil
}

// Candles returns stored candles, ordered most-recent-last.
func (s *MarketService) Candles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("candle storage requires Postgres")
	}
	return s.repo.GetCandles(ctx, symbol, interval, limit)
}

// RefreshPrices fetches latest quotes and caches them in Redis.
func (s *MarketService) RefreshPrices(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "market-service.refresh-prices")
	defer span.End()

	prices, source, err := s.fetchPrices(ctx)
	if err != nil {
		return err
	}
	log.Printf("Refreshed prices for %d assets from %s", len(prices), source)
	return nil
}

// RefreshCandles fetches and stores candles for every supported interval of
// one symbol.
func (s *MarketService) RefreshCandles(ctx context.Context, symbol string) error {
	_, span := s.tracer.Start(ctx, "market-service.refresh-candles")
	defer span.End()
	return s.refreshIntervals(ctx, symbol, domain.SupportedIntervals)
}

// RefreshShortCandles refreshes only the fast-moving intervals (5m, 15m, 1h).
func (s *MarketService) RefreshShortCandles(ctx context.Context, symbol string) error {
	_, span := s.tracer.Start(ctx, "market-service.refresh-short-candles")
	defer span.End()
	return s.refreshIntervals(ctx, symbol, domain.ShortIntervals)
}

// RefreshLongCandles refreshes only the slow intervals (4h, 1d).
func (s *MarketService) RefreshLongCandles(ctx context.Context, symbol string) error {
	_, span := s.tracer.Start(ctx, "market-service.refresh-long-candles")
	defer span.End()
	return s.refreshIntervals(ctx, symbol, domain.LongIntervals)
}

func (s *MarketService) refreshIntervals(ctx context.Context, symbol string, intervals []string) error {
	if s.repo == nil {
		return nil
	}
	var lastErr error
	for _, np := range s.providerOrder(ctx) {
		if np.provider == nil {
			continue
		}
		candles, err := np.provider.FetchCandles(ctx, symbol, intervals, s.tailBars)
		if err != nil {
			lastErr = err
			log.Printf("candle fetch from %s for %s: %v", np.name, symbol, err)
			continue
		}
		if err := s.repo.UpsertCandles(ctx, candles); err != nil {
			return fmt.Errorf("upsert candles for %s: %w", symbol, err)
		}
		log.Printf("Refreshed candles for %s (%d candles from %s)", symbol, len(candles), np.name)
		return nil
	}
	return fmt.Errorf("refresh candles for %s: %w", symbol, lastErr)
}

// Freshness classifies the symbol's data health: OFFLINE when no quote can
// be obtained, STALE past the display threshold, PARTIAL when candle
// history is too thin, OK otherwise.
func (s *MarketService) Freshness(ctx context.Context, symbol string) (*domain.DataFreshness, error) {
	_, span := s.tracer.Start(ctx, "market-service.freshness")
	defer span.End()

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	now := time.Now().UTC()
	fresh := &domain.DataFreshness{ServerTimestamp: now}

	var quote *domain.PriceSnapshot
	if s.redis != nil {
		quote, _ = s.getPriceCache(ctx, symbol)
		if quote != nil {
			fresh.Source, _ = s.getSourceCache(ctx)
		}
	}
	if quote == nil {
		started := time.Now()
		prices, source, err := s.fetchPrices(ctx)
		if err != nil {
			fresh.Status = domain.FreshnessOffline
			return fresh, nil
		}
		fresh.LatencyMs = time.Since(started).Milliseconds()
		fresh.Source = source
		quote = prices[symbol]
		if quote == nil {
			fresh.Status = domain.FreshnessOffline
			return fresh, nil
		}
	}

	fresh.PriceTimestamp = time.Unix(quote.LastUpdatedUnix, 0).UTC()
	fresh.AgeSeconds = now.Sub(fresh.PriceTimestamp).Seconds()
	if fresh.AgeSeconds < 0 {
		fresh.AgeSeconds = 0
	}

	switch {
	case fresh.AgeSeconds > domain.QuoteStaleAfter.Seconds():
		fresh.Status = domain.FreshnessStale
	case s.thinHistory(ctx, symbol):
		fresh.Status = domain.FreshnessPartial
	default:
		fresh.Status = domain.FreshnessOK
	}
	return fresh, nil
}

// BuildSnapshot assembles the frozen per-run market snapshot: the latest
// quote, candle tails for every interval, per-timeframe summaries, and the
// gate-derived indicators.
func (s *MarketService) BuildSnapshot(ctx context.Context, symbol string, fresh domain.DataFreshness, indicators domain.SnapshotIndicators) (*domain.MarketSnapshot, error) {
	_, span := s.tracer.Start(ctx, "market-service.build-snapshot")
	defer span.End()

	quote, err := s.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("quote for snapshot: %w", err)
	}

	timeframes := make(map[string][]*domain.Candle, len(domain.SupportedIntervals))
	summaries := make([]domain.TimeframeSummary, 0, len(domain.SupportedIntervals))
	for _, interval := range domain.SupportedIntervals {
		var candles []*domain.Candle
		if s.repo != nil {
			candles, err = s.repo.GetCandles(ctx, symbol, interval, s.tailBars)
			if err != nil {
				return nil, fmt.Errorf("candles %s for snapshot: %w", interval, err)
			}
		}
		timeframes[interval] = candles
		summaries = append(summaries, summarizeTimeframe(interval, candles))
	}

	return &domain.MarketSnapshot{
		Symbol:     symbol,
		CapturedAt: time.Now().UTC(),
		Freshness:  fresh,
		Price:      *quote,
		Timeframes: timeframes,
		Summaries:  summaries,
		Indicators: indicators,
	}, nil
}

// summarizeTimeframe condenses one candle tail into the numbers most agent
// roles reason over. Candles are ordered most-recent-last.
func summarizeTimeframe(interval string, candles []*domain.Candle) domain.TimeframeSummary {
	summary := domain.TimeframeSummary{Interval: interval, Bars: len(candles)}
	if len(candles) == 0 {
		return summary
	}

	closes := make([]float64, len(candles))
	summary.High = candles[0].High
	summary.Low = candles[0].Low
	for i, c := range candles {
		closes[i] = c.Close
		if c.High > summary.High {
			summary.High = c.High
		}
		if c.Low < summary.Low {
			summary.Low = c.Low
		}
		summary.VolumeSum += c.Volume
	}

	summary.FirstClose = closes[0]
	summary.LastClose = closes[len(closes)-1]
	if summary.FirstClose != 0 {
		summary.ChangePct = (summary.LastClose - summary.FirstClose) / summary.FirstClose * 100
	}
	summary.RSI14 = ta.LastRSI(closes, 14)
	summary.MACDHist = ta.LastMACDHist(closes)
	return summary
}

func (s *MarketService) thinHistory(ctx context.Context, symbol string) bool {
	if s.repo == nil {
		return true
	}
	candles, err := s.repo.GetCandles(ctx, symbol, "5m", minSnapshotBars)
	if err != nil {
		log.Printf("history check for %s: %v", symbol, err)
		return true
	}
	return len(candles) < minSnapshotBars
}

// fetchPrices tries the providers in preference order, caching quotes and
// the winning source name on success.
func (s *MarketService) fetchPrices(ctx context.Context) (map[string]*domain.PriceSnapshot, string, error) {
	var lastErr error
	for _, np := range s.providerOrder(ctx) {
		if np.provider == nil {
			continue
		}
		prices, err := np.provider.FetchPrices(ctx)
		if err != nil {
			lastErr = err
			log.Printf("price fetch from %s: %v", np.name, err)
			continue
		}
		for _, snap := range prices {
			if s.redis != nil {
				if err := s.setPriceCache(ctx, snap); err != nil {
					log.Printf("redis cache write error for %s: %v", snap.Symbol, err)
				}
			}
		}
		if s.redis != nil {
			_ = s.redis.Set(ctx, "price_source", np.name, priceCacheTTL).Err()
		}
		return prices, np.name, nil
	}
	return nil, "", fmt.Errorf("all providers failed: %w", lastErr)
}

func (s *MarketService) setPriceCache(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, "price:"+snapshot.Symbol, data, priceCacheTTL).Err()
}

func (s *MarketService) getPriceCache(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	data, err := s.redis.Get(ctx, "price:"+symbol).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot domain.PriceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *MarketService) getSourceCache(ctx context.Context) (string, error) {
	source, err := s.redis.Get(ctx, "price_source").Result()
	if err != nil {
		return domain.SourceBinance, err
	}
	return source, nil
}
