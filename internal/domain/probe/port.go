package probe

import (
	"context"
	"time"
)

// Prober checks one normalized target URL. It must return within timeout.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) Result
}

type ProberFunc func(ctx context.Context, url string, timeout time.Duration) Result

func (f ProberFunc) Probe(ctx context.Context, url string, timeout time.Duration) Result {
	return f(ctx, url, timeout)
}
