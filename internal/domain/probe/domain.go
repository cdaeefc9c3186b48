package probe

import (
	"errors"
	"time"
)

// Diagnostic causes; both mean DOWN.
var (
	ErrTimeout     = errors.New("probe timeout")
	ErrUnreachable = errors.New("probe unreachable")
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 6 * time.Second

type Result struct {
	OK        bool
	LatencyMs *int64
	At        time.Time
	Err       error
}

func Up(latency time.Duration, at time.Time) Result {
	ms := latency.Round(time.Millisecond).Milliseconds()
	return Result{OK: true, LatencyMs: &ms, At: at}
}

func Down(err error, at time.Time) Result {
	return Result{OK: false, At: at, Err: err}
}
