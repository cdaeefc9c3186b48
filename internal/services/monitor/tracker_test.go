package monitor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/pingboard/internal/domain/probe"
	"github.com/NordCoder/pingboard/internal/domain/status"
)

func upMs(ms int64) probe.Result { return probe.Result{OK: true, LatencyMs: &ms} }

func down() probe.Result { return probe.Result{Err: probe.ErrUnreachable} }

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func record(t *testing.T, tr *Tracker, id string, res probe.Result) (status.Record, *status.Transition) {
	t.Helper()
	tok, ok := tr.Token(id)
	require.True(t, ok)
	rec, ev, err := tr.Record(id, tok, res)
	require.NoError(t, err)
	return rec, ev
}

func latencies(rec status.Record) []any {
	out := make([]any, 0, len(rec.History))
	for _, v := range rec.History {
		if v == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *v)
	}
	return out
}

func TestTracker_ThreeUpsThenFailure(t *testing.T) {
	tr := NewTracker(fixedClock())
	tr.Ensure("t1")

	for _, ms := range []int64{50, 60, 40} {
		record(t, tr, "t1", upMs(ms))
	}
	rec, _ := record(t, tr, "t1", down())

	assert.Equal(t, uint64(4), rec.TotalCount)
	assert.Equal(t, uint64(3), rec.UpCount)
	assert.Equal(t, 75, rec.UptimePercent())
	assert.Equal(t, []any{int64(50), int64(60), int64(40), nil}, latencies(rec))
	assert.Equal(t, status.Down, rec.Status)
	assert.Nil(t, rec.LastLatencyMs)
	require.NotNil(t, rec.LastCheckedAt)
	assert.Equal(t, fixedClock()(), *rec.LastCheckedAt)

	pct, ok := tr.UptimePercent("t1")
	assert.True(t, ok)
	assert.Equal(t, 75, pct)
}

func TestTracker_TransitionRules(t *testing.T) {
	tr := NewTracker(nil)
	tr.Ensure("t1")

	rec, ev := record(t, tr, "t1", down())
	assert.Nil(t, ev, "first probe never transitions")
	assert.Equal(t, status.Down, rec.Status)

	_, ev = record(t, tr, "t1", down())
	assert.Nil(t, ev)

	rec, ev = record(t, tr, "t1", upMs(12))
	require.NotNil(t, ev)
	assert.Equal(t, status.Down, ev.From)
	assert.Equal(t, status.Up, ev.To)
	assert.Equal(t, "t1", ev.TargetID)
	assert.Equal(t, int64(12), *rec.LastLatencyMs)
}

func TestTracker_FreshRecordIsUnknown(t *testing.T) {
	tr := NewTracker(nil)
	tr.Ensure("t1")
	rec, ok := tr.Get("t1")
	require.True(t, ok)
	assert.Equal(t, status.Unknown, rec.Status)
	assert.Zero(t, rec.TotalCount)
	assert.Equal(t, 100, rec.UptimePercent())
	assert.Nil(t, rec.LastCheckedAt)
	assert.Empty(t, rec.History)
}

func TestTracker_HistoryBounded(t *testing.T) {
	tr := NewTracker(nil)
	tr.Ensure("t1")
	for i := int64(1); i <= status.HistorySize+1; i++ {
		record(t, tr, "t1", upMs(i))
	}
	rec, _ := tr.Get("t1")
	require.Len(t, rec.History, status.HistorySize)
	assert.Equal(t, int64(2), *rec.History[0])
	assert.Equal(t, int64(status.HistorySize+1), *rec.History[status.HistorySize-1])
}

func TestTracker_StaleResults(t *testing.T) {
	tr := NewTracker(nil)

	_, _, err := tr.Record("ghost", 1, upMs(1))
	assert.ErrorIs(t, err, ErrStale)

	tr.Ensure("t1")
	tok, ok := tr.Token("t1")
	require.True(t, ok)

	require.NoError(t, tr.SetPaused("t1", true))
	_, ok = tr.Token("t1")
	assert.False(t, ok)
	_, _, err = tr.Record("t1", tok, upMs(1))
	assert.ErrorIs(t, err, ErrStale)

	require.NoError(t, tr.SetPaused("t1", false))
	_, _, err = tr.Record("t1", tok, upMs(1))
	assert.ErrorIs(t, err, ErrStale, "token issued before the pause")

	tok, _ = tr.Token("t1")
	tr.Remove("t1")
	tr.Ensure("t1")
	_, _, err = tr.Record("t1", tok, upMs(1))
	assert.ErrorIs(t, err, ErrStale, "token from a previous activation")

	rec, _ := tr.Get("t1")
	assert.Zero(t, rec.TotalCount)
}

func TestTracker_ResetStatsKeepsPausedAndToken(t *testing.T) {
	tr := NewTracker(nil)
	tr.Ensure("t1")
	tok, _ := tr.Token("t1")
	record(t, tr, "t1", upMs(5))

	require.NoError(t, tr.ResetStats("t1"))
	rec, _ := tr.Get("t1")
	assert.Equal(t, status.Unknown, rec.Status)
	assert.Zero(t, rec.TotalCount)
	assert.Empty(t, rec.History)

	_, ev, err := tr.Record("t1", tok, down())
	require.NoError(t, err)
	assert.Nil(t, ev, "first probe after reset has no prior status")

	require.NoError(t, tr.SetPaused("t1", true))
	require.NoError(t, tr.ResetStats("t1"))
	rec, _ = tr.Get("t1")
	assert.True(t, rec.Paused)

	assert.ErrorIs(t, tr.ResetStats("nope"), ErrNotTracked)
	assert.ErrorIs(t, tr.SetPaused("nope", true), ErrNotTracked)
}

func TestTracker_CountersConsistentForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := NewTracker(nil)
	tr.Ensure("t1")
	for i := 0; i < 500; i++ {
		res := down()
		if rng.Intn(3) > 0 {
			res = upMs(int64(rng.Intn(900)))
		}
		rec, _ := record(t, tr, "t1", res)
		require.LessOrEqual(t, rec.UpCount, rec.TotalCount)
		require.GreaterOrEqual(t, rec.UptimePercent(), 0)
		require.LessOrEqual(t, rec.UptimePercent(), 100)
		require.LessOrEqual(t, len(rec.History), status.HistorySize)
		require.NotEqual(t, status.Unknown, rec.Status)
	}
}

func TestTracker_ListSortedAndClear(t *testing.T) {
	tr := NewTracker(nil)
	tr.Ensure("b")
	tr.Ensure("a")
	list := tr.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].TargetID)

	tr.Clear()
	assert.Empty(t, tr.List())
}
