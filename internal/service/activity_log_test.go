package service

import (
	"fmt"
	"testing"

	"nexus-crypto-desk/internal/domain"
)

func TestActivityLogRecentNewestFirst(t *testing.T) {
	t.Parallel()

	log := NewActivityLog(10)
	log.Add(domain.LogRefresh, "first", "")
	log.Add(domain.LogAnalysis, "second", "")
	log.Add(domain.LogError, "third", "boom")

	recent := log.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Message != "third" || recent[1].Message != "second" {
		t.Fatalf("expected newest first, got %+v", recent)
	}
	if recent[0].Details != "boom" {
		t.Fatalf("details lost: %+v", recent[0])
	}
}

func TestActivityLogEvictsOldest(t *testing.T) {
	t.Parallel()

	log := NewActivityLog(3)
	for i := 0; i < 5; i++ {
		log.Add(domain.LogSystem, fmt.Sprintf("entry %d", i), "")
	}

	recent := log.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("expected capacity 3, got %d", len(recent))
	}
	if recent[0].Message != "entry 4" || recent[2].Message != "entry 2" {
		t.Fatalf("unexpected retained entries: %+v", recent)
	}
	// IDs keep increasing across evictions.
	if recent[0].ID != 5 {
		t.Fatalf("expected id 5, got %d", recent[0].ID)
	}
}
