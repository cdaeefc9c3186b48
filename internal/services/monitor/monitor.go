package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/notification"
	"github.com/NordCoder/pingboard/internal/domain/probe"
	"github.com/NordCoder/pingboard/internal/domain/snapshot"
	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/domain/target"
)

var _ target.Registry = (*Monitor)(nil)

type Options struct {
	Log             *zap.Logger
	Prober          probe.Prober
	Store           snapshot.Store
	Sink            notification.Sink
	Registerer      prometheus.Registerer
	ProbeTimeout    time.Duration
	NotifyTimeout   time.Duration
	DefaultInterval time.Duration
	Now             func() time.Time
	NewID           func() string
}

// TargetStatus is a target joined with its runtime record, if any.
type TargetStatus struct {
	Target target.Target  `json:"target"`
	Active bool           `json:"active"`
	Record *status.Record `json:"record,omitempty"`
}

// TargetPatch carries the fields EditTarget may change.
type TargetPatch struct {
	Name *string
	URL  *string
}

// Monitor owns the target registry and drives the engine around it.
type Monitor struct {
	log             *zap.Logger
	tracker         *Tracker
	sched           *Scheduler
	bridge          *Bridge
	store           *persister
	newID           func() string
	defaultInterval time.Duration

	mu      sync.RWMutex
	cfg     target.Config
	targets map[string]target.Target
	order   []string
	active  []string

	subMu   sync.RWMutex
	subs    map[uint64]func(status.Update)
	nextSub uint64
}

func New(o Options) *Monitor {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	newID := o.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	interval := o.DefaultInterval
	if interval <= 0 {
		interval = target.DefaultInterval
	}
	m := newMetrics(o.Registerer)

	mon := &Monitor{
		log:             log.With(zap.String("component", "monitor")),
		tracker:         NewTracker(o.Now),
		bridge:          NewBridge(log, o.Sink, o.NotifyTimeout, o.Now, m),
		store:           newPersister(o.Store, log, m),
		newID:           newID,
		defaultInterval: interval,
		cfg:             target.Config{DefaultInterval: interval},
		targets:         make(map[string]target.Target),
		subs:            make(map[uint64]func(status.Update)),
	}
	mon.sched = NewScheduler(log, o.Prober, mon.tracker, o.ProbeTimeout, mon.dispatch, m)
	return mon
}

// Start loads the stored registry and schedules every active target.
// An unreadable snapshot is replaced by defaults.
func (m *Monitor) Start(ctx context.Context) error {
	s, err := m.store.loadAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, snapshot.ErrEmpty):
		s = m.defaults()
	case errors.Is(err, snapshot.ErrInvalidFormat):
		m.log.Warn("stored snapshot unusable, starting from defaults", zap.Error(err))
		s = m.defaults()
	default:
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(s)
	m.bridge.SetEnabled(ctx, m.cfg.NotificationsEnabled)
	m.startActiveLocked()
	m.log.Info("monitor started",
		zap.Int("targets", len(m.order)),
		zap.Int("active", len(m.active)),
		zap.Duration("interval", m.cfg.DefaultInterval),
	)
	return nil
}

// Run starts the monitor and blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Close()
	return ctx.Err()
}

// Close stops all probing and waits for pending notifications.
func (m *Monitor) Close() {
	m.sched.Stop()
	m.bridge.Wait()
}

func (m *Monitor) AddTarget(ctx context.Context, name, rawURL string, interval time.Duration) (target.Target, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return target.Target{}, target.ErrEmptyName
	}
	u, err := target.NormalizeURL(rawURL)
	if err != nil {
		return target.Target{}, err
	}
	if interval != 0 && !target.ValidInterval(interval) {
		return target.Target{}, target.ErrInvalidInterval
	}

	t := target.Target{ID: m.newID(), Name: name, URL: u, Interval: interval}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.ID] = t
	m.order = append(m.order, t.ID)
	return t, m.saveLocked(ctx)
}

func (m *Monitor) EditTarget(ctx context.Context, id string, p TargetPatch) (target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return target.Target{}, target.ErrNotFound
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return target.Target{}, target.ErrEmptyName
		}
		t.Name = name
	}
	if p.URL != nil {
		u, err := target.NormalizeURL(*p.URL)
		if err != nil {
			return target.Target{}, err
		}
		t.URL = u
	}
	m.targets[id] = t
	m.sched.UpdateURL(id, t.URL)
	return t, m.saveLocked(ctx)
}

// RemoveTarget deletes the target together with its schedule and record.
func (m *Monitor) RemoveTarget(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return target.ErrNotFound
	}
	m.sched.Deactivate(id)
	m.active = remove(m.active, id)
	m.order = remove(m.order, id)
	delete(m.targets, id)
	return m.saveLocked(ctx)
}

func (m *Monitor) Activate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return target.ErrNotFound
	}
	if slices.Contains(m.active, id) {
		return nil
	}
	m.active = append(m.active, id)
	m.sched.Activate(id, t.URL, t.EffectiveInterval(m.cfg.DefaultInterval))
	return m.saveLocked(ctx)
}

// Deactivate stops probing id and discards its status record.
func (m *Monitor) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return target.ErrNotFound
	}
	if !slices.Contains(m.active, id) {
		return nil
	}
	m.active = remove(m.active, id)
	m.sched.Deactivate(id)
	return m.saveLocked(ctx)
}

func (m *Monitor) Pause(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.targets[id]; !ok {
		return target.ErrNotFound
	}
	return m.sched.Pause(id)
}

// Resume restarts probing with the interval currently in effect.
func (m *Monitor) Resume(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return target.ErrNotFound
	}
	return m.sched.Resume(id, t.EffectiveInterval(m.cfg.DefaultInterval))
}

// SetGlobalInterval reschedules every active target without an override.
func (m *Monitor) SetGlobalInterval(ctx context.Context, d time.Duration) error {
	if !target.ValidInterval(d) {
		return target.ErrInvalidInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.DefaultInterval = d
	for _, id := range m.active {
		if m.targets[id].HasOverride() {
			continue
		}
		if err := m.sched.Reschedule(id, d); err != nil && !errors.Is(err, ErrNotActive) {
			return err
		}
	}
	return m.saveLocked(ctx)
}

// SetTargetInterval sets or, with nil, clears the per-target override.
func (m *Monitor) SetTargetInterval(ctx context.Context, id string, d *time.Duration) error {
	if d != nil && !target.ValidInterval(*d) {
		return target.ErrInvalidInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return target.ErrNotFound
	}
	t.Interval = 0
	if d != nil {
		t.Interval = *d
	}
	m.targets[id] = t
	if slices.Contains(m.active, id) {
		if err := m.sched.Reschedule(id, t.EffectiveInterval(m.cfg.DefaultInterval)); err != nil && !errors.Is(err, ErrNotActive) {
			return err
		}
	}
	return m.saveLocked(ctx)
}

// SetNotifications stores the preference and returns the sink permission.
func (m *Monitor) SetNotifications(ctx context.Context, enabled bool) (notification.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.NotificationsEnabled = enabled
	perm := m.bridge.SetEnabled(ctx, enabled)
	return perm, m.saveLocked(ctx)
}

func (m *Monitor) Retest(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.targets[id]; !ok {
		return target.ErrNotFound
	}
	return m.sched.Retest(id)
}

// HardRefresh resets the stats of every active target and probes them now.
func (m *Monitor) HardRefresh(ctx context.Context) error {
	m.mu.RLock()
	ids := append([]string(nil), m.active...)
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.tracker.ResetStats(id); err != nil {
			continue
		}
		if rec, ok := m.tracker.Get(id); ok {
			m.notify(status.Update{Record: rec})
		}
		if err := m.sched.Retest(id); err != nil && !errors.Is(err, ErrPaused) && !errors.Is(err, ErrNotActive) {
			return err
		}
	}
	return ctx.Err()
}

func (m *Monitor) Target(id string) (target.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return target.Target{}, target.ErrNotFound
	}
	return t, nil
}

// Targets returns all targets in insertion order.
func (m *Monitor) Targets() []target.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]target.Target, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.targets[id])
	}
	return out
}

func (m *Monitor) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.active...)
}

func (m *Monitor) Config() target.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Monitor) Status(id string) (status.Record, bool) {
	return m.tracker.Get(id)
}

func (m *Monitor) UptimePercent(id string) (int, bool) {
	return m.tracker.UptimePercent(id)
}

// Statuses lists every target, active ones first in activation order.
func (m *Monitor) Statuses() []TargetStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TargetStatus, 0, len(m.order))
	for _, id := range m.active {
		ts := TargetStatus{Target: m.targets[id], Active: true}
		if rec, ok := m.tracker.Get(id); ok {
			ts.Record = &rec
		}
		out = append(out, ts)
	}
	for _, id := range m.order {
		if slices.Contains(m.active, id) {
			continue
		}
		out = append(out, TargetStatus{Target: m.targets[id]})
	}
	return out
}

// Permission is the sink permission from the last notification toggle.
func (m *Monitor) Permission() notification.Permission {
	return m.bridge.Permission()
}

func (m *Monitor) Notifications() []notification.Notification {
	return m.bridge.Recent()
}

func (m *Monitor) Export(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.exportSnapshot(m.snapshotLocked())
}

// Import replaces the registry with blob. On a decode error nothing changes.
func (m *Monitor) Import(ctx context.Context, blob []byte) error {
	s, err := m.store.importSnapshot(blob)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAllLocked()
	m.applyLocked(s)
	m.bridge.SetEnabled(ctx, m.cfg.NotificationsEnabled)
	m.startActiveLocked()
	m.log.Info("snapshot imported", zap.Int("targets", len(m.order)), zap.Int("active", len(m.active)))
	return m.saveLocked(ctx)
}

// Wipe drops every target and the stored snapshot.
func (m *Monitor) Wipe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAllLocked()
	m.applyLocked(m.defaults())
	m.bridge.SetEnabled(ctx, false)
	m.log.Info("registry wiped")
	return m.store.wipe(ctx)
}

// Subscribe registers fn for every applied probe and stats reset.
// fn runs on the probing goroutine and must not block.
func (m *Monitor) Subscribe(fn func(status.Update)) (unsubscribe func()) {
	m.subMu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Monitor) dispatch(u status.Update) {
	if tr := u.Transition; tr != nil {
		m.mu.RLock()
		t, ok := m.targets[tr.TargetID]
		m.mu.RUnlock()
		if ok {
			m.log.Info("status changed",
				zap.String("target_id", t.ID),
				zap.String("url", t.URL),
				zap.String("from", string(tr.From)),
				zap.String("to", string(tr.To)),
			)
			m.bridge.OnTransition(*tr, t.Name, t.URL)
		}
	}
	m.notify(u)
}

func (m *Monitor) notify(u status.Update) {
	m.subMu.RLock()
	fns := make([]func(status.Update), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (m *Monitor) defaults() snapshot.Snapshot {
	s := snapshot.Default()
	s.IntervalMs = m.defaultInterval.Milliseconds()
	return s
}

func (m *Monitor) applyLocked(s snapshot.Snapshot) {
	m.cfg = s.Config()
	m.targets = make(map[string]target.Target, len(s.Sites))
	m.order = make([]string, 0, len(s.Sites))
	for _, t := range s.Targets() {
		m.targets[t.ID] = t
		m.order = append(m.order, t.ID)
	}
	m.active = append([]string{}, s.ActiveIDs...)
}

func (m *Monitor) startActiveLocked() {
	for _, id := range m.active {
		t := m.targets[id]
		m.sched.Activate(id, t.URL, t.EffectiveInterval(m.cfg.DefaultInterval))
	}
}

func (m *Monitor) stopAllLocked() {
	for _, id := range m.active {
		m.sched.Deactivate(id)
	}
	m.tracker.Clear()
}

func (m *Monitor) snapshotLocked() snapshot.Snapshot {
	targets := make([]target.Target, 0, len(m.order))
	for _, id := range m.order {
		targets = append(targets, m.targets[id])
	}
	return snapshot.From(m.cfg, targets, m.active)
}

func (m *Monitor) saveLocked(ctx context.Context) error {
	if err := m.store.saveAll(ctx, m.snapshotLocked()); err != nil {
		m.log.Error("snapshot not saved", zap.Error(err))
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(x string) bool { return x == id })
}
