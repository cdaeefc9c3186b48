package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/notification"
	"github.com/NordCoder/pingboard/internal/domain/probe"
	"github.com/NordCoder/pingboard/internal/domain/snapshot"
	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/domain/target"
	"github.com/NordCoder/pingboard/internal/repository/memory"
)

type fakeSink struct {
	perm notification.Permission
	mu   sync.Mutex
	sent []string
}

func (s *fakeSink) RequestPermission(context.Context) notification.Permission { return s.perm }

func (s *fakeSink) Notify(_ context.Context, title, _ string) error {
	s.mu.Lock()
	s.sent = append(s.sent, title)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type monFixture struct {
	m      *Monitor
	prober *scriptProber
	store  *memory.Store
	sink   *fakeSink
}

func newMonFixture(t *testing.T, store *memory.Store) *monFixture {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	f := &monFixture{prober: newScriptProber(), store: store, sink: &fakeSink{perm: notification.Granted}}
	n := 0
	f.m = New(Options{
		Log:             zap.NewNop(),
		Prober:          f.prober,
		Store:           store,
		Sink:            f.sink,
		DefaultInterval: never,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	require.NoError(t, f.m.Start(context.Background()))
	t.Cleanup(f.m.Close)
	return f
}

func (f *monFixture) total(id string) uint64 { return totalOf(f.m.tracker, id) }

func (f *monFixture) stored(t *testing.T) snapshot.Snapshot {
	t.Helper()
	blob, err := f.store.Get(context.Background(), snapshot.Key)
	require.NoError(t, err)
	s, err := snapshot.Decode(blob)
	require.NoError(t, err)
	return s
}

func TestMonitor_AddActivateRemoveCascades(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)

	tg, err := f.m.AddTarget(ctx, " Example ", "example.com/path", 0)
	require.NoError(t, err)
	assert.Equal(t, target.Target{ID: "id-1", Name: "Example", URL: "https://example.com"}, tg)

	_, ok := f.m.Status(tg.ID)
	assert.False(t, ok, "inactive targets have no record")

	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	assert.Equal(t, []string{tg.ID}, f.m.ActiveIDs())
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
	assert.Equal(t, 1, f.prober.count("https://example.com"))

	require.NoError(t, f.m.RemoveTarget(ctx, tg.ID))
	_, ok = f.m.Status(tg.ID)
	assert.False(t, ok)
	assert.Empty(t, f.m.ActiveIDs())
	assert.Empty(t, f.m.Targets())
	assert.False(t, f.m.sched.IsActive(tg.ID))

	assert.ErrorIs(t, f.m.RemoveTarget(ctx, tg.ID), target.ErrNotFound)
	assert.ErrorIs(t, f.m.Activate(ctx, tg.ID), target.ErrNotFound)
}

func TestMonitor_AddRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)

	_, err := f.m.AddTarget(ctx, "x", "https://", 0)
	assert.ErrorIs(t, err, target.ErrBadTarget)
	_, err = f.m.AddTarget(ctx, "  ", "example.com", 0)
	assert.ErrorIs(t, err, target.ErrEmptyName)
	_, err = f.m.AddTarget(ctx, "x", "example.com", -time.Second)
	assert.ErrorIs(t, err, target.ErrInvalidInterval)
	assert.Empty(t, f.m.Targets())
}

func TestMonitor_DeactivateDiscardsRecord(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 2 }, waitFor, tick)

	require.NoError(t, f.m.Deactivate(ctx, tg.ID))
	require.NoError(t, f.m.Deactivate(ctx, tg.ID))
	_, ok := f.m.Status(tg.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, f.m.Retest(tg.ID), ErrNotActive)

	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
}

func TestMonitor_PersistsAndRestoresRegistry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := newMonFixture(t, store)

	a, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	b, _ := f.m.AddTarget(ctx, "B", "http://b.example:8080", 0)
	require.NoError(t, f.m.Activate(ctx, b.ID))
	d := 30 * time.Second
	require.NoError(t, f.m.SetTargetInterval(ctx, a.ID, &d))
	require.NoError(t, f.m.SetGlobalInterval(ctx, 5*time.Second))

	s := f.stored(t)
	assert.Equal(t, int64(5000), s.IntervalMs)
	assert.Equal(t, []string{b.ID}, s.ActiveIDs)
	require.Len(t, s.Sites, 2)
	assert.Equal(t, int64(30000), s.Sites[0].IntervalMs)
	f.m.Close()

	g := newMonFixture(t, store)
	assert.Equal(t, f.m.Targets(), g.m.Targets())
	assert.Equal(t, []string{b.ID}, g.m.ActiveIDs())
	assert.Equal(t, 5*time.Second, g.m.Config().DefaultInterval)
	require.Eventually(t, func() bool { return g.total(b.ID) == 1 }, waitFor, tick)
}

func TestMonitor_CorruptSnapshotFallsBackToDefaults(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Put(context.Background(), snapshot.Key, []byte(`{"sites":"nope"}`)))

	f := newMonFixture(t, store)
	assert.Empty(t, f.m.Targets())
	assert.Equal(t, never, f.m.Config().DefaultInterval)
	assert.False(t, f.m.Config().NotificationsEnabled)
}

func TestMonitor_ImportWithoutActiveIDsLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
	before := f.stored(t)

	err := f.m.Import(ctx, []byte(`{"schemaVersion":1,"intervalMs":5000,"sites":[{"id":"x","name":"X","url":"x.io"}]}`))
	require.ErrorIs(t, err, snapshot.ErrInvalidFormat)

	assert.Equal(t, []target.Target{tg}, f.m.Targets())
	assert.Equal(t, []string{tg.ID}, f.m.ActiveIDs())
	assert.Equal(t, uint64(1), f.total(tg.ID))
	assert.True(t, f.m.sched.IsActive(tg.ID))
	assert.Equal(t, before, f.stored(t))
}

func TestMonitor_ExportImportReplacesState(t *testing.T) {
	ctx := context.Background()
	src := newMonFixture(t, nil)
	a, _ := src.m.AddTarget(ctx, "A", "a.example", 0)
	_, _ = src.m.AddTarget(ctx, "B", "b.example", 0)
	require.NoError(t, src.m.Activate(ctx, a.ID))
	blob, err := src.m.Export(ctx)
	require.NoError(t, err)

	dst := newMonFixture(t, nil)
	dst.m.newID = func() string { return "old-1" }
	old, _ := dst.m.AddTarget(ctx, "Old", "old.example", 0)
	require.NoError(t, dst.m.Activate(ctx, old.ID))
	require.Eventually(t, func() bool { return dst.total(old.ID) == 1 }, waitFor, tick)

	require.NoError(t, dst.m.Import(ctx, blob))
	assert.Equal(t, src.m.Targets(), dst.m.Targets())
	assert.Equal(t, []string{a.ID}, dst.m.ActiveIDs())
	_, ok := dst.m.Status(old.ID)
	assert.False(t, ok)
	assert.False(t, dst.m.sched.IsActive(old.ID))
	require.Eventually(t, func() bool { return dst.total(a.ID) == 1 }, waitFor, tick)
	assert.Equal(t, []string{a.ID}, dst.stored(t).ActiveIDs)
}

func TestMonitor_SetGlobalIntervalSkipsOverriddenTargets(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	plain, _ := f.m.AddTarget(ctx, "Plain", "plain.example", 0)
	pinned, _ := f.m.AddTarget(ctx, "Pinned", "pinned.example", never)
	require.NoError(t, f.m.Activate(ctx, plain.ID))
	require.NoError(t, f.m.Activate(ctx, pinned.ID))
	require.Eventually(t, func() bool { return f.total(plain.ID) == 1 && f.total(pinned.ID) == 1 }, waitFor, tick)

	require.NoError(t, f.m.SetGlobalInterval(ctx, 20*time.Millisecond))
	require.Eventually(t, func() bool { return f.total(plain.ID) >= 3 }, waitFor, tick)
	assert.Equal(t, uint64(1), f.total(pinned.ID))

	d, _ := f.m.sched.Interval(pinned.ID)
	assert.Equal(t, never, d)
	assert.ErrorIs(t, f.m.SetGlobalInterval(ctx, 0), target.ErrInvalidInterval)
	assert.ErrorIs(t, f.m.SetGlobalInterval(ctx, target.MaxInterval+time.Second), target.ErrInvalidInterval)
	assert.Equal(t, 20*time.Millisecond, f.m.Config().DefaultInterval)
}

func TestMonitor_SetTargetIntervalOverrideAndClear(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))

	d := 15 * time.Second
	require.NoError(t, f.m.SetTargetInterval(ctx, tg.ID, &d))
	got, _ := f.m.sched.Interval(tg.ID)
	assert.Equal(t, d, got)

	require.NoError(t, f.m.SetTargetInterval(ctx, tg.ID, nil))
	got, _ = f.m.sched.Interval(tg.ID)
	assert.Equal(t, never, got)
	tg2, _ := f.m.Target(tg.ID)
	assert.False(t, tg2.HasOverride())

	zero := time.Duration(0)
	assert.ErrorIs(t, f.m.SetTargetInterval(ctx, tg.ID, &zero), target.ErrInvalidInterval)
	huge := target.MaxInterval + time.Millisecond
	assert.ErrorIs(t, f.m.SetTargetInterval(ctx, tg.ID, &huge), target.ErrInvalidInterval)
	assert.ErrorIs(t, f.m.SetTargetInterval(ctx, "nope", nil), target.ErrNotFound)
}

func TestMonitor_PauseResume(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	assert.ErrorIs(t, f.m.Pause(tg.ID), ErrNotActive)
	assert.ErrorIs(t, f.m.Pause("nope"), target.ErrNotFound)

	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
	require.NoError(t, f.m.Pause(tg.ID))
	rec, _ := f.m.Status(tg.ID)
	assert.True(t, rec.Paused)
	assert.Equal(t, []string{tg.ID}, f.m.ActiveIDs(), "pause keeps membership")

	require.NoError(t, f.m.Resume(tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 2 }, waitFor, tick)
	rec, _ = f.m.Status(tg.ID)
	assert.False(t, rec.Paused)
}

func TestMonitor_EditTarget(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))

	name, u := "Renamed", "http://b.example"
	got, err := f.m.EditTarget(ctx, tg.ID, TargetPatch{Name: &name, URL: &u})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "http://b.example", got.URL)

	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return f.prober.count("http://b.example") == 1 }, waitFor, tick)

	bad := "https://"
	_, err = f.m.EditTarget(ctx, tg.ID, TargetPatch{URL: &bad})
	assert.ErrorIs(t, err, target.ErrBadTarget)
	_, err = f.m.EditTarget(ctx, "nope", TargetPatch{Name: &name})
	assert.ErrorIs(t, err, target.ErrNotFound)
}

func flipFlop(_ string, n int) probe.Result {
	if n%2 == 1 {
		return upMs(20)
	}
	return down()
}

func TestMonitor_NotificationsOnlyWhenEnabledAndGranted(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	f.prober.next = flipFlop
	tg, _ := f.m.AddTarget(ctx, "Example", "example.com", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)

	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 2 }, waitFor, tick)
	assert.Empty(t, f.sink.titles(), "notifications disabled")

	perm, err := f.m.SetNotifications(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, notification.Granted, perm)
	assert.True(t, f.stored(t).NotificationsEnabled)

	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return len(f.sink.titles()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"Example is UP"}, f.sink.titles())
	require.Len(t, f.m.Notifications(), 1)
	assert.Equal(t, tg.ID, f.m.Notifications()[0].TargetID)
}

func TestMonitor_NotificationsDroppedWithoutPermission(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	f.sink.perm = notification.Denied
	f.prober.next = flipFlop
	perm, err := f.m.SetNotifications(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, notification.Denied, perm)

	tg, _ := f.m.AddTarget(ctx, "Example", "example.com", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 2 }, waitFor, tick)

	f.m.bridge.Wait()
	assert.Empty(t, f.sink.titles())
}

func TestMonitor_HardRefreshResetsThenProbes(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 1 }, waitFor, tick)
	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 2 }, waitFor, tick)

	updates := &updateLog{}
	unsubscribe := f.m.Subscribe(updates.add)
	defer unsubscribe()

	require.NoError(t, f.m.HardRefresh(ctx))
	require.Eventually(t, func() bool { return len(updates.list()) == 2 }, waitFor, tick)

	got := updates.list()
	assert.Equal(t, status.Unknown, got[0].Record.Status)
	assert.Zero(t, got[0].Record.TotalCount)
	assert.Equal(t, uint64(1), got[1].Record.TotalCount)
	assert.Len(t, got[1].Record.History, 1)
}

func TestMonitor_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	updates := &updateLog{}
	unsubscribe := f.m.Subscribe(updates.add)

	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	require.Eventually(t, func() bool { return len(updates.list()) == 1 }, waitFor, tick)

	unsubscribe()
	require.NoError(t, f.m.Retest(tg.ID))
	require.Eventually(t, func() bool { return f.total(tg.ID) == 2 }, waitFor, tick)
	assert.Len(t, updates.list(), 1)
}

func TestMonitor_StatusesListsActiveFirst(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	a, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	b, _ := f.m.AddTarget(ctx, "B", "b.example", 0)
	require.NoError(t, f.m.Activate(ctx, b.ID))

	list := f.m.Statuses()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].Target.ID)
	assert.True(t, list[0].Active)
	assert.NotNil(t, list[0].Record)
	assert.Equal(t, a.ID, list[1].Target.ID)
	assert.False(t, list[1].Active)
	assert.Nil(t, list[1].Record)
}

func TestMonitor_Wipe(t *testing.T) {
	ctx := context.Background()
	f := newMonFixture(t, nil)
	tg, _ := f.m.AddTarget(ctx, "A", "a.example", 0)
	require.NoError(t, f.m.Activate(ctx, tg.ID))
	_, _ = f.m.SetNotifications(ctx, true)

	require.NoError(t, f.m.Wipe(ctx))
	assert.Empty(t, f.m.Targets())
	assert.Empty(t, f.m.ActiveIDs())
	assert.False(t, f.m.Config().NotificationsEnabled)
	assert.False(t, f.m.sched.IsActive(tg.ID))
	_, err := f.store.Get(ctx, snapshot.Key)
	assert.ErrorIs(t, err, snapshot.ErrEmpty)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m := New(Options{Prober: newScriptProber(), DefaultInterval: never})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("run did not return")
	}
}
