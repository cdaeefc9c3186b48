package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/notification"
	"github.com/NordCoder/pingboard/internal/domain/status"
)

const recentNotifications = 50

// Bridge forwards transitions to the notification sink when the user has
// enabled notifications and the sink granted permission. Delivery is
// best effort: no retry, no queue.
type Bridge struct {
	log     *zap.Logger
	sink    notification.Sink
	timeout time.Duration
	now     func() time.Time
	m       *metrics

	enabled atomic.Bool
	perm    atomic.Value
	wg      sync.WaitGroup

	mu     sync.Mutex
	recent []notification.Notification
}

func NewBridge(log *zap.Logger, sink notification.Sink, timeout time.Duration, now func() time.Time, m *metrics) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	if m == nil {
		m = newMetrics(nil)
	}
	b := &Bridge{
		log:     log.With(zap.String("component", "monitor.bridge")),
		sink:    sink,
		timeout: timeout,
		now:     now,
		m:       m,
	}
	b.perm.Store(notification.Unsupported)
	return b
}

// SetEnabled switches forwarding. Enabling asks the sink for permission.
func (b *Bridge) SetEnabled(ctx context.Context, enabled bool) notification.Permission {
	if enabled && b.sink != nil {
		p := b.sink.RequestPermission(ctx)
		b.perm.Store(p)
		b.log.Info("notification permission", zap.String("permission", string(p)))
	}
	b.enabled.Store(enabled)
	return b.Permission()
}

func (b *Bridge) Enabled() bool { return b.enabled.Load() }

func (b *Bridge) Permission() notification.Permission {
	return b.perm.Load().(notification.Permission)
}

// OnTransition reports whether the transition was handed to the sink.
func (b *Bridge) OnTransition(tr status.Transition, name, url string) bool {
	if !b.enabled.Load() {
		b.m.notified.WithLabelValues("disabled").Inc()
		return false
	}
	if b.sink == nil || b.Permission() != notification.Granted {
		b.m.notified.WithLabelValues("no_permission").Inc()
		return false
	}

	n := notification.Notification{
		TargetID: tr.TargetID,
		Title:    notification.Title(name, tr),
		Body:     notification.Body(url, tr),
		SentAt:   b.now(),
	}
	b.remember(n)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.sink.Notify(ctx, n.Title, n.Body); err != nil {
			b.m.notified.WithLabelValues("failed").Inc()
			b.log.Warn("notification dropped", zap.String("target_id", n.TargetID), zap.Error(err))
			return
		}
		b.m.notified.WithLabelValues("sent").Inc()
	}()
	return true
}

// Recent returns the latest forwarded notifications, newest last.
func (b *Bridge) Recent() []notification.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]notification.Notification(nil), b.recent...)
}

// Wait blocks until in-flight deliveries finish.
func (b *Bridge) Wait() { b.wg.Wait() }

func (b *Bridge) remember(n notification.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recent = append(b.recent, n)
	if len(b.recent) > recentNotifications {
		b.recent = b.recent[len(b.recent)-recentNotifications:]
	}
}
