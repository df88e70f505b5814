package service

import (
	"sync"
	"time"

	"nexus-crypto-desk/internal/domain"
)

const defaultLogCapacity = 500

// ActivityLog is the in-memory ring of desk activity entries shown on the
// dashboard. It is intentionally ephemeral; durable history lives in the
// run and audit tables.
type ActivityLog struct {
	mu       sync.Mutex
	entries  []domain.LogEntry
	nextID   int64
	capacity int
}

func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &ActivityLog{capacity: capacity}
}

// Add appends one entry, evicting the oldest when at capacity.
func (l *ActivityLog) Add(kind, message, details string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	l.entries = append(l.entries, domain.LogEntry{
		ID:        l.nextID,
		Kind:      kind,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Recent returns up to limit entries, newest first.
func (l *ActivityLog) Recent(limit int) []domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]domain.LogEntry, 0, limit)
	for i := len(l.entries) - 1; i >= len(l.entries)-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}
