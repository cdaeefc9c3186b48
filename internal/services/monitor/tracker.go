package monitor

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/pingboard/internal/domain/probe"
	"github.com/NordCoder/pingboard/internal/domain/status"
)

var (
	// ErrStale marks a probe result that must not be applied.
	ErrStale      = errors.New("stale probe result")
	ErrNotTracked = errors.New("target has no status record")
)

type entry struct {
	status      status.Status
	lastLatency *int64
	up, total   uint64
	history     *status.History
	lastChecked time.Time
	paused      bool
	gen         uint64
}

// Tracker owns the status records of active targets.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	recs    map[string]*entry
	nextGen uint64
}

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, recs: make(map[string]*entry)}
}

// Ensure creates an UNKNOWN record for id unless one exists.
func (t *Tracker) Ensure(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.recs[id]; ok {
		return
	}
	t.nextGen++
	t.recs[id] = &entry{
		status:  status.Unknown,
		history: status.NewHistory(status.HistorySize),
		gen:     t.nextGen,
	}
}

// Token returns the generation a probe result must carry to be applied.
// It fails for missing or paused records.
func (t *Tracker) Token(id string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.recs[id]
	if !ok || e.paused {
		return 0, false
	}
	return e.gen, true
}

// Record applies a probe result. A transition is returned only when the
// previous status was UP or DOWN and differs from the new one.
func (t *Tracker) Record(id string, token uint64, res probe.Result) (status.Record, *status.Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.recs[id]
	if !ok || e.paused || e.gen != token {
		return status.Record{}, nil, ErrStale
	}

	prev := e.status
	e.total++
	if res.OK {
		e.up++
		e.status = status.Up
		e.lastLatency = copyInt(res.LatencyMs)
		e.history.Push(res.LatencyMs)
	} else {
		e.status = status.Down
		e.lastLatency = nil
		e.history.Push(nil)
	}
	e.lastChecked = t.now()

	var tr *status.Transition
	if prev != status.Unknown && prev != e.status {
		tr = &status.Transition{TargetID: id, From: prev, To: e.status, At: e.lastChecked}
	}
	return e.snapshot(id), tr, nil
}

// ResetStats returns the record to the UNKNOWN baseline, keeping paused.
func (t *Tracker) ResetStats(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.recs[id]
	if !ok {
		return ErrNotTracked
	}
	e.status = status.Unknown
	e.lastLatency = nil
	e.up, e.total = 0, 0
	e.history.Reset()
	e.lastChecked = time.Time{}
	return nil
}

// SetPaused toggles paused. Pausing invalidates tokens handed out before.
func (t *Tracker) SetPaused(id string, paused bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.recs[id]
	if !ok {
		return ErrNotTracked
	}
	if paused && !e.paused {
		t.nextGen++
		e.gen = t.nextGen
	}
	e.paused = paused
	return nil
}

func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	delete(t.recs, id)
	t.mu.Unlock()
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	t.recs = make(map[string]*entry)
	t.mu.Unlock()
}

func (t *Tracker) Get(id string) (status.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.recs[id]
	if !ok {
		return status.Record{}, false
	}
	return e.snapshot(id), true
}

// List returns all records ordered by target id.
func (t *Tracker) List() []status.Record {
	t.mu.Lock()
	out := make([]status.Record, 0, len(t.recs))
	for id, e := range t.recs {
		out = append(out, e.snapshot(id))
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

func (t *Tracker) UptimePercent(id string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.recs[id]
	if !ok {
		return 0, false
	}
	return status.UptimePercent(e.up, e.total), true
}

func (e *entry) snapshot(id string) status.Record {
	r := status.Record{
		TargetID:      id,
		Status:        e.status,
		LastLatencyMs: copyInt(e.lastLatency),
		UpCount:       e.up,
		TotalCount:    e.total,
		History:       e.history.Latencies(),
		Paused:        e.paused,
	}
	if !e.lastChecked.IsZero() {
		ts := e.lastChecked
		r.LastCheckedAt = &ts
	}
	return r
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
