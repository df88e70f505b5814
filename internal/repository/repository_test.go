package repository

import (
	"testing"
	"time"

	"nexus-crypto-desk/internal/domain"
)

func TestReverseCandles(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []*domain.Candle{
		{OpenTime: base.Add(2 * time.Minute)},
		{OpenTime: base.Add(time.Minute)},
		{OpenTime: base},
	}
	reverseCandles(candles)
	if !candles[0].OpenTime.Equal(base) || !candles[2].OpenTime.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("expected most-recent-last ordering, got %v", candles)
	}
}

func TestUnmarshalRun(t *testing.T) {
	record := &domain.RunRecord{}
	err := unmarshalRun(record,
		[]byte(`{"symbol":"BTC"}`),
		[]byte(`[{"agent":"trend"}]`),
		nil,
		[]byte(`{"status":"validated"}`),
		[]byte(`{"status":"OK"}`),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Snapshot == nil || record.Snapshot.Symbol != "BTC" {
		t.Fatalf("snapshot not decoded: %+v", record.Snapshot)
	}
	if len(record.Outputs) != 1 || record.Outputs[0].Agent != "trend" {
		t.Fatalf("outputs not decoded: %+v", record.Outputs)
	}
	if record.Plan != nil {
		t.Fatal("nil plan column must stay nil")
	}
	if record.Validation == nil || record.Validation.Status != domain.ValidationValidated {
		t.Fatalf("validation not decoded: %+v", record.Validation)
	}
	if record.Freshness.Status != domain.FreshnessOK {
		t.Fatalf("freshness not decoded: %+v", record.Freshness)
	}
}

func TestUnmarshalRunBadPayload(t *testing.T) {
	record := &domain.RunRecord{}
	if err := unmarshalRun(record, []byte(`{broken`), nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for corrupt snapshot column")
	}
}
