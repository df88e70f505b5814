package domain

import (
	"testing"
	"time"
)

func TestSymbolTablesConsistent(t *testing.T) {
	for _, sym := range SupportedSymbols {
		if _, ok := BinancePair[sym]; !ok {
			t.Errorf("missing Binance pair for %s", sym)
		}
		if _, ok := CoinGeckoID[sym]; !ok {
			t.Errorf("missing CoinGecko id for %s", sym)
		}
	}
	if len(CoinGeckoIDToSymbol) != len(CoinGeckoID) {
		t.Errorf("reverse mapping size mismatch: %d vs %d", len(CoinGeckoIDToSymbol), len(CoinGeckoID))
	}
}

func TestIsSupportedSymbol(t *testing.T) {
	if !IsSupportedSymbol("BTC") {
		t.Error("BTC should be supported")
	}
	if IsSupportedSymbol("FAKE") {
		t.Error("FAKE should not be supported")
	}
}

func TestIsSupportedInterval(t *testing.T) {
	for _, iv := range SupportedIntervals {
		if !IsSupportedInterval(iv) {
			t.Errorf("%s should be supported", iv)
		}
	}
	if IsSupportedInterval("3m") {
		t.Error("3m should not be supported")
	}
}

func TestSnapshotMini(t *testing.T) {
	snap := &MarketSnapshot{
		Symbol:     "BTC",
		CapturedAt: time.Now().UTC(),
		Price:      PriceSnapshot{Symbol: "BTC", PriceUSD: 60000},
		Timeframes: map[string][]*Candle{
			"5m": {{Symbol: "BTC", Interval: "5m", Close: 60000}},
		},
		Summaries:  []TimeframeSummary{{Interval: "5m", Bars: 1}},
		Indicators: SnapshotIndicators{HighVolatility: true},
	}

	mini := snap.Mini()
	if mini.Symbol != "BTC" || !mini.Indicators.HighVolatility {
		t.Fatalf("mini snapshot lost fields: %+v", mini)
	}
	if len(mini.Summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(mini.Summaries))
	}
}

func TestEnumValidators(t *testing.T) {
	for _, v := range []string{ConfidenceLow, ConfidenceMedium, ConfidenceHigh} {
		if !IsValidConfidence(v) {
			t.Errorf("%s should be a valid confidence", v)
		}
	}
	if IsValidConfidence("extreme") {
		t.Error("extreme should not be a valid confidence")
	}

	for _, v := range []string{PostureWait, PostureSeekEntry, PostureReduceRisk} {
		if !IsValidPosture(v) {
			t.Errorf("%s should be a valid posture", v)
		}
	}
	if IsValidPosture("YOLO") {
		t.Error("YOLO should not be a valid posture")
	}

	if !IsValidRiskProfile(RiskBalanced) || IsValidRiskProfile("reckless") {
		t.Error("risk profile validation broken")
	}
	if !IsValidSide(SideLong) || IsValidSide("sideways") {
		t.Error("side validation broken")
	}
}
