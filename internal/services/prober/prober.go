package prober

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
	"github.com/NordCoder/pingboard/internal/domain/probe"
)

var _ probe.Prober = (*HTTPProber)(nil)

// HTTPProber fetches a small resource from the target origin. With
// StrictStatus off any HTTP response counts as reachable.
type HTTPProber struct {
	client    *http.Client
	path      string
	userAgent string
	cacheBust bool
	strict    bool
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*HTTPProber)

// WithTransport replaces the network transport, mainly for tests.
func WithTransport(rt http.RoundTripper, followRedirects bool) Option {
	return func(p *HTTPProber) { p.client = newClient(rt, followRedirects) }
}

func WithClock(now func() time.Time) Option {
	return func(p *HTTPProber) { p.now = now }
}

func New(cfg config.ProbeCfg, log *zap.Logger, opts ...Option) *HTTPProber {
	if log == nil {
		log = zap.NewNop()
	}
	p := &HTTPProber{
		client:    NewHTTPClient(cfg),
		path:      cfg.Path,
		userAgent: cfg.UserAgent,
		cacheBust: cfg.CacheBust,
		strict:    cfg.StrictStatus,
		now:       time.Now,
		log:       log.With(zap.String("component", "prober.http")),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *HTTPProber) Probe(ctx context.Context, origin string, timeout time.Duration) probe.Result {
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.targetURL(origin), nil)
	if err != nil {
		return probe.Down(errors.Join(probe.ErrUnreachable, err), p.now())
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return probe.Down(classify(ctx, err), p.now())
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	latency := time.Since(start)

	if p.strict && (resp.StatusCode < 200 || resp.StatusCode > 399) {
		p.log.Debug("unexpected status", zap.String("origin", origin), zap.Int("code", resp.StatusCode))
		return probe.Down(errors.Join(probe.ErrUnreachable, errors.New(resp.Status)), p.now())
	}
	return probe.Up(latency, p.now())
}

func (p *HTTPProber) targetURL(origin string) string {
	u := origin + p.path
	if p.cacheBust {
		u += "?cb=" + strconv.FormatInt(p.now().UnixMilli(), 10)
	}
	return u
}

func classify(ctx context.Context, err error) error {
	var nerr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return errors.Join(probe.ErrTimeout, err)
	}
	return errors.Join(probe.ErrUnreachable, err)
}
