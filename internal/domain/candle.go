package domain

import "time"

// Candle represents a single OHLCV candle for an asset at a given interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceSnapshot represents the latest quote data for an asset.
type PriceSnapshot struct {
	Symbol          string  `json:"symbol"`
	PriceUSD        float64 `json:"price_usd"`
	Volume24h       float64 `json:"volume_24h"`
	Change24hPct    float64 `json:"change_24h_pct"`
	High24h         float64 `json:"high_24h"`
	Low24h          float64 `json:"low_24h"`
	LastUpdatedUnix int64   `json:"last_updated_unix"`
}

// BinancePair maps internal symbols to Binance spot trading pairs.
var BinancePair = map[string]string{
	"BTC":   "BTCUSDT",
	"ETH":   "ETHUSDT",
	"SOL":   "SOLUSDT",
	"XRP":   "XRPUSDT",
	"ADA":   "ADAUSDT",
	"DOGE":  "DOGEUSDT",
	"DOT":   "DOTUSDT",
	"AVAX":  "AVAXUSDT",
	"LINK":  "LINKUSDT",
	"MATIC": "MATICUSDT",
}

// CoinGeckoID maps internal symbols to CoinGecko API identifiers for the
// fallback data source.
var CoinGeckoID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
}

// CoinGeckoIDToSymbol is the reverse mapping.
var CoinGeckoIDToSymbol map[string]string

func init() {
	CoinGeckoIDToSymbol = make(map[string]string, len(CoinGeckoID))
	for sym, id := range CoinGeckoID {
		CoinGeckoIDToSymbol[id] = sym
	}
}

// SupportedSymbols lists all tracked crypto symbols.
var SupportedSymbols = []string{
	"BTC", "ETH", "SOL", "XRP", "ADA",
	"DOGE", "DOT", "AVAX", "LINK", "MATIC",
}

// SupportedIntervals defines the candle intervals we store.
var SupportedIntervals = []string{"5m", "15m", "1h", "4h", "1d"}

// ShortIntervals are refreshed frequently; LongIntervals move slowly and
// are refreshed on a slower cadence to stay inside provider rate limits.
var (
	ShortIntervals = []string{"5m", "15m", "1h"}
	LongIntervals  = []string{"4h", "1d"}
)

// IsSupportedSymbol reports whether the symbol is tracked by the desk.
func IsSupportedSymbol(symbol string) bool {
	_, ok := BinancePair[symbol]
	return ok
}

// IsSupportedInterval reports whether the interval is stored.
func IsSupportedInterval(interval string) bool {
	for _, si := range SupportedIntervals {
		if interval == si {
			return true
		}
	}
	return false
}
