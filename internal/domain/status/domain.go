package status

import (
	"math"
	"time"
)

type Status string

const (
	Unknown Status = "UNKNOWN"
	Up      Status = "UP"
	Down    Status = "DOWN"
)

// HistorySize is the number of samples kept for trend display.
const HistorySize = 40

// Record is a point-in-time copy of a target's runtime state.
type Record struct {
	TargetID      string     `json:"target_id"`
	Status        Status     `json:"status"`
	LastLatencyMs *int64     `json:"last_latency_ms,omitempty"`
	UpCount       uint64     `json:"up_count"`
	TotalCount    uint64     `json:"total_count"`
	History       []*int64   `json:"history"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	Paused        bool       `json:"paused"`
}

func (r Record) UptimePercent() int { return UptimePercent(r.UpCount, r.TotalCount) }

// UptimePercent is round(up/total*100), or 100 before any probe.
func UptimePercent(up, total uint64) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(up) / float64(total) * 100))
}

type Transition struct {
	TargetID string    `json:"target_id"`
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	At       time.Time `json:"at"`
}

// Update is what observers receive after every applied probe.
type Update struct {
	Record     Record
	Transition *Transition
}
