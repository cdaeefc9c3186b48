package api

import (
	"time"

	"github.com/NordCoder/pingboard/internal/domain/notification"
	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/services/monitor"
)

type errorBody struct {
	Error string `json:"error"`
}

type createTargetReq struct {
	Name       string `json:"name" validate:"required,max=200"`
	URL        string `json:"url" validate:"required,max=2048"`
	IntervalMs *int64 `json:"intervalMs" validate:"omitempty,gt=0,lte=86400000"`
}

type patchTargetReq struct {
	Name *string `json:"name" validate:"omitempty,max=200"`
	URL  *string `json:"url" validate:"omitempty,max=2048"`
}

// intervalReq with a null intervalMs clears the override.
type intervalReq struct {
	IntervalMs *int64 `json:"intervalMs" validate:"omitempty,gt=0,lte=86400000"`
}

type globalIntervalReq struct {
	IntervalMs int64 `json:"intervalMs" validate:"required,gt=0,lte=86400000"`
}

type notificationsReq struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type configView struct {
	IntervalMs           int64                   `json:"intervalMs"`
	NotificationsEnabled bool                    `json:"notificationsEnabled"`
	Permission           notification.Permission `json:"permission"`
}

type statusView struct {
	Status        status.Status `json:"status"`
	UptimePercent int           `json:"uptimePercent"`
	LastLatencyMs *int64        `json:"lastLatencyMs"`
	History       []*int64      `json:"history"`
	UpCount       uint64        `json:"upCount"`
	TotalCount    uint64        `json:"totalCount"`
	LastCheckedAt *time.Time    `json:"lastCheckedAt"`
	Paused        bool          `json:"paused"`
}

type targetView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	URL        string      `json:"url"`
	IntervalMs *int64      `json:"intervalMs"`
	Active     bool        `json:"active"`
	Status     *statusView `json:"status,omitempty"`
}

func newStatusView(r status.Record) *statusView {
	return &statusView{
		Status:        r.Status,
		UptimePercent: r.UptimePercent(),
		LastLatencyMs: r.LastLatencyMs,
		History:       r.History,
		UpCount:       r.UpCount,
		TotalCount:    r.TotalCount,
		LastCheckedAt: r.LastCheckedAt,
		Paused:        r.Paused,
	}
}

func newTargetView(ts monitor.TargetStatus) targetView {
	v := targetView{
		ID:     ts.Target.ID,
		Name:   ts.Target.Name,
		URL:    ts.Target.URL,
		Active: ts.Active,
	}
	if ts.Target.HasOverride() {
		ms := ts.Target.Interval.Milliseconds()
		v.IntervalMs = &ms
	}
	if ts.Record != nil {
		v.Status = newStatusView(*ts.Record)
	}
	return v
}
