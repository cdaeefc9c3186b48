package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/probe"
	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/domain/target"
)

var (
	ErrNotActive = errors.New("target is not active")
	ErrPaused    = errors.New("target is paused")
)

type task struct {
	id       string
	url      string
	interval time.Duration
	paused   bool
	stop     context.CancelFunc

	// epoch spans one activation or resume. Pause and deactivation end it,
	// which cancels its probes. tok is the tracker generation of the epoch.
	epoch    context.Context
	endEpoch context.CancelFunc
	tok      uint64

	// flight is held for the whole probe-and-apply cycle of this target.
	flight sync.Mutex
	// queue is closed once the most recently queued probe has finished.
	queue chan struct{}
}

func (t *task) end() {
	t.stop()
	t.endEpoch()
}

// Scheduler runs one recurring probe loop per active target.
type Scheduler struct {
	log     *zap.Logger
	prober  probe.Prober
	tracker *Tracker
	timeout time.Duration
	emit    func(status.Update)
	m       *metrics

	base    context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(log *zap.Logger, p probe.Prober, tr *Tracker, timeout time.Duration, emit func(status.Update), m *metrics) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	if m == nil {
		m = newMetrics(nil)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:     log.With(zap.String("component", "monitor.scheduler")),
		prober:  p,
		tracker: tr,
		timeout: timeout,
		emit:    emit,
		m:       m,
		base:    base,
		cancel:  cancel,
		tasks:   make(map[string]*task),
	}
}

// Activate creates the status record, probes once and starts the loop.
// It reports false when id is already scheduled.
func (s *Scheduler) Activate(id, url string, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, ok := s.tasks[id]; ok {
		return false
	}
	s.tracker.Ensure(id)
	t := &task{id: id, url: url, interval: interval}
	if !s.beginEpochLocked(t) {
		return false
	}
	s.tasks[id] = t
	s.startLocked(t, true)
	s.m.active.Set(float64(len(s.tasks)))
	s.log.Debug("target activated", zap.String("target_id", id), zap.Duration("interval", interval))
	return true
}

// Deactivate stops the loop and destroys the status record.
func (s *Scheduler) Deactivate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.end()
	delete(s.tasks, id)
	s.tracker.Remove(id)
	s.m.active.Set(float64(len(s.tasks)))
	s.log.Debug("target deactivated", zap.String("target_id", id))
	return true
}

func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotActive
	}
	if t.paused {
		return nil
	}
	t.end()
	t.paused = true
	return s.tracker.SetPaused(id, true)
}

// Resume restarts the loop at interval with an immediate probe.
func (s *Scheduler) Resume(id string, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotActive
	}
	if !t.paused {
		return nil
	}
	if err := s.tracker.SetPaused(id, false); err != nil {
		return err
	}
	if !s.beginEpochLocked(t) {
		return ErrNotActive
	}
	t.paused = false
	t.interval = interval
	s.startLocked(t, true)
	return nil
}

// Reschedule restarts the loop at interval without an extra probe.
// For a paused target only the stored interval changes.
func (s *Scheduler) Reschedule(id string, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotActive
	}
	t.interval = interval
	if t.paused {
		return nil
	}
	t.stop()
	s.startLocked(t, false)
	return nil
}

func (s *Scheduler) UpdateURL(id, url string) {
	s.mu.Lock()
	if t, ok := s.tasks[id]; ok {
		t.url = url
	}
	s.mu.Unlock()
}

// Retest probes id once, out of band. It queues behind an in-flight probe of
// the same target instead of skipping, so results keep issue order.
func (s *Scheduler) Retest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || s.stopped {
		return ErrNotActive
	}
	if t.paused {
		return ErrPaused
	}
	s.enqueueLocked(t)
	return nil
}

func (s *Scheduler) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

func (s *Scheduler) IsPaused(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return ok && t.paused
}

// Interval returns the cadence the target is scheduled at.
func (s *Scheduler) Interval(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return 0, false
	}
	return t.interval, true
}

// Stop cancels every loop and in-flight probe and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, t := range s.tasks {
		t.end()
	}
	s.tasks = make(map[string]*task)
	s.m.active.Set(0)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) beginEpochLocked(t *task) bool {
	tok, ok := s.tracker.Token(t.id)
	if !ok {
		return false
	}
	t.epoch, t.endEpoch = context.WithCancel(s.base)
	t.tok = tok
	return true
}

// startLocked runs the ticker loop. With immediate, the first probe is
// queued rather than fired, so a probe left over from a previous epoch
// cannot swallow it.
func (s *Scheduler) startLocked(t *task, immediate bool) {
	interval := t.interval
	if interval <= 0 {
		interval = target.DefaultInterval
	}
	ctx, cancel := context.WithCancel(t.epoch)
	t.stop = cancel
	if immediate {
		s.enqueueLocked(t)
	}
	s.wg.Add(1)
	go s.loop(ctx, t, interval)
}

func (s *Scheduler) loop(ctx context.Context, t *task, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, t)
		}
	}
}

// fire starts a scheduled probe unless one is already in flight.
func (s *Scheduler) fire(ctx context.Context, t *task) {
	if ctx.Err() != nil {
		return
	}
	if !t.flight.TryLock() {
		s.m.skipped.Inc()
		s.log.Debug("probe still in flight, firing skipped", zap.String("target_id", t.id))
		return
	}
	// a tick that raced with stop must not probe
	s.mu.Lock()
	epoch, tok, url := t.epoch, t.tok, t.url
	live := ctx.Err() == nil && s.tasks[t.id] == t
	s.mu.Unlock()
	if !live {
		t.flight.Unlock()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.flight.Unlock()
		s.probe(epoch, t.id, url, tok)
	}()
}

// enqueueLocked adds a probe of the current url that waits for the in-flight
// one instead of being skipped. Queued probes run in the order they were
// enqueued.
func (s *Scheduler) enqueueLocked(t *task) {
	epoch, tok, url := t.epoch, t.tok, t.url
	prev := t.queue
	done := make(chan struct{})
	t.queue = done
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		t.flight.Lock()
		defer t.flight.Unlock()
		if epoch.Err() != nil {
			return
		}
		s.probe(epoch, t.id, url, tok)
	}()
}

func (s *Scheduler) probe(epoch context.Context, id, url string, tok uint64) {
	ctx, span := otel.Tracer("monitor.scheduler").Start(epoch, "monitor.probe",
		trace.WithAttributes(
			attribute.String("targeid", id),
			attribute.String("target.url", url),
		),
	)
	defer span.End()

	start := time.Now()
	res := s.prober.Probe(ctx, url, s.timeout)
	elapsed := time.Since(start)
	s.m.probeDur.Observe(elapsed.Seconds())

	if s.base.Err() != nil {
		return
	}
	if res.OK && res.LatencyMs == nil {
		ms := elapsed.Round(time.Millisecond).Milliseconds()
		res.LatencyMs = &ms
	}

	rec, tr, err := s.tracker.Record(id, tok, res)
	if err != nil {
		s.m.stale.Inc()
		span.SetAttributes(attribute.Bool("probe.stale", true))
		s.log.Debug("probe result dropped", zap.String("target_id", id), zap.Error(err))
		return
	}

	outcome := "down"
	if res.OK {
		outcome = "up"
	}
	s.m.probes.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.Bool("probe.ok", res.OK))
	if res.Err != nil {
		span.RecordError(res.Err)
		s.log.Debug("probe failed", zap.String("target_id", id), zap.String("url", url), zap.Error(res.Err))
	}
	if tr != nil {
		s.m.transitions.WithLabelValues(string(tr.To)).Inc()
	}
	if s.emit != nil {
		s.emit(status.Update{Record: rec, Transition: tr})
	}
}
