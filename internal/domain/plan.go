package domain

import "time"

// Trade plan statuses. A plan moves ACTIVE -> TRIGGERED once price reaches
// the entry, then to TARGET_HIT or STOPPED; CANCELLED is user-driven.
const (
	PlanActive    = "ACTIVE"
	PlanTriggered = "TRIGGERED"
	PlanTargetHit = "TARGET_HIT"
	PlanStopped   = "STOPPED"
	PlanCancelled = "CANCELLED"
)

// TradePlan is a user-defined plan tracked against live quotes. The desk
// never places orders; it only watches and annotates.
type TradePlan struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"` // long or short
	EntryPrice  float64   `json:"entry_price"`
	TargetPrice float64   `json:"target_price"`
	StopPrice   float64   `json:"stop_price"`
	Status      string    `json:"status"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Plan sides.
const (
	SideLong  = "long"
	SideShort = "short"
)

// IsValidSide reports whether v is a valid plan side.
func IsValidSide(v string) bool {
	return v == SideLong || v == SideShort
}
