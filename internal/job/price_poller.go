package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"nexus-crypto-desk/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// PricePoller runs background goroutines that periodically fetch and store
// market data.
type PricePoller struct {
	tracer       trace.Tracer
	market       MarketRefresher
	activity     ActivitySink
	pollInterval time.Duration
}

type MarketRefresher interface {
	RefreshPrices(ctx context.Context) error
	RefreshShortCandles(ctx context.Context, symbol string) error
	RefreshLongCandles(ctx context.Context, symbol string) error
}

// ActivitySink receives log lines for the dashboard activity feed.
type ActivitySink interface {
	Add(kind, message, details string)
}

func NewPricePoller(tracer trace.Tracer, market MarketRefresher, activity ActivitySink, pollIntervalSecs int) *PricePoller {
	return &PricePoller{
		tracer:       tracer,
		market:       market,
		activity:     activity,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
	}
}

// Start launches background polling goroutines. Blocks until ctx is cancelled.
func (p *PricePoller) Start(ctx context.Context) {
	log.Println("Price poller starting...")

	// Tier 1: Current quotes every pollInterval (default 60s)
	go p.pollLoop(ctx, "quotes", p.pollInterval, func(ctx context.Context) error {
		return p.market.RefreshPrices(ctx)
	})

	// Tier 2: Short candles (5m, 15m, 1h), 2 assets every 5 minutes, round-robin
	go p.pollShortCandles(ctx)

	// Tier 3: Long candles (4h, 1d), 1 asset every 30 minutes, round-robin
	go p.pollLongCandles(ctx)

	<-ctx.Done()
	log.Println("Price poller stopped")
}

func (p *PricePoller) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	// Run immediately on start
	if err := fn(ctx); err != nil {
		p.logError(name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				p.logError(name, err)
			}
		}
	}
}

func (p *PricePoller) pollShortCandles(ctx context.Context) {
	// Stagger startup so the first candle fetches do not race the quote poll
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	assetIndex := 0
	assetsPerTick := 2

	p.fetchShortBatch(ctx, &assetIndex, assetsPerTick)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchShortBatch(ctx, &assetIndex, assetsPerTick)
		}
	}
}

func (p *PricePoller) fetchShortBatch(ctx context.Context, assetIndex *int, count int) {
	symbols := domain.SupportedSymbols
	for i := 0; i < count; i++ {
		symbol := symbols[*assetIndex%len(symbols)]
		*assetIndex++

		if err := p.market.RefreshShortCandles(ctx, symbol); err != nil {
			p.logError("short-candles "+symbol, err)
			continue
		}
		p.logRefresh(fmt.Sprintf("refreshed short candles for %s", symbol))
	}
}

func (p *PricePoller) pollLongCandles(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(30 * time.Second):
	}

	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	assetIndex := 0

	p.fetchLongBatch(ctx, &assetIndex)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchLongBatch(ctx, &assetIndex)
		}
	}
}

func (p *PricePoller) fetchLongBatch(ctx context.Context, assetIndex *int) {
	symbols := domain.SupportedSymbols
	symbol := symbols[*assetIndex%len(symbols)]
	*assetIndex++

	if err := p.market.RefreshLongCandles(ctx, symbol); err != nil {
		p.logError("long-candles "+symbol, err)
		return
	}
	p.logRefresh(fmt.Sprintf("refreshed long candles for %s", symbol))
}

func (p *PricePoller) logRefresh(message string) {
	if p.activity != nil {
		p.activity.Add(domain.LogRefresh, message, "")
	}
}

func (p *PricePoller) logError(name string, err error) {
	log.Printf("poller %s error: %v", name, err)
	if p.activity != nil {
		p.activity.Add(domain.LogError, "poller "+name+" failed", err.Error())
	}
}
