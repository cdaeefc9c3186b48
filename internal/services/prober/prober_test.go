package prober

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
	"github.com/NordCoder/pingboard/internal/domain/probe"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProber(t *testing.T, cfg config.ProbeCfg) (*HTTPProber, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	t.Cleanup(transport.Reset)
	p := New(cfg, nil,
		WithTransport(transport, cfg.FollowRedirects),
		WithClock(func() time.Time { return fixed }),
	)
	return p, transport
}

func TestHTTPProber_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		strict  bool
		status  int
		err     error
		wantOK  bool
		wantErr error
	}{
		{name: "ok", status: 200, wantOK: true},
		{name: "server error still reachable", status: 503, wantOK: true},
		{name: "strict rejects server error", strict: true, status: 503, wantErr: probe.ErrUnreachable},
		{name: "strict accepts redirect", strict: true, status: 301, wantOK: true},
		{name: "connection refused", err: errors.New("connection refused"), wantErr: probe.ErrUnreachable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, transport := newTestProber(t, config.ProbeCfg{Path: "/favicon.ico", StrictStatus: tt.strict})
			transport.RegisterResponder(http.MethodGet, "https://example.com/favicon.ico",
				func(req *http.Request) (*http.Response, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return httpmock.NewStringResponse(tt.status, ""), nil
				},
			)

			res := p.Probe(context.Background(), "https://example.com", time.Second)

			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, fixed, res.At)
			if tt.wantOK {
				require.NotNil(t, res.LatencyMs)
				assert.GreaterOrEqual(t, *res.LatencyMs, int64(0))
				assert.NoError(t, res.Err)
			} else {
				assert.Nil(t, res.LatencyMs)
				assert.ErrorIs(t, res.Err, tt.wantErr)
			}
		})
	}
}

func TestHTTPProber_CacheBust(t *testing.T) {
	t.Parallel()

	p, transport := newTestProber(t, config.ProbeCfg{Path: "/favicon.ico", CacheBust: true, UserAgent: "pingboard/test"})
	var gotQuery, gotUA string
	transport.RegisterResponder(http.MethodGet, "https://example.com/favicon.ico",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.RawQuery
			gotUA = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(200, ""), nil
		},
	)

	res := p.Probe(context.Background(), "https://example.com", time.Second)

	require.True(t, res.OK)
	assert.Equal(t, "cb=1772366400000", gotQuery)
	assert.Equal(t, "pingboard/test", gotUA)
}

func TestHTTPProber_Timeout(t *testing.T) {
	t.Parallel()

	p, transport := newTestProber(t, config.ProbeCfg{})
	transport.RegisterResponder(http.MethodGet, "https://slow.example.com",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		},
	)

	res := p.Probe(context.Background(), "https://slow.example.com", 20*time.Millisecond)

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, probe.ErrTimeout)
}

func TestHTTPProber_NoRedirectFollow(t *testing.T) {
	t.Parallel()

	p, transport := newTestProber(t, config.ProbeCfg{})
	var followed bool
	transport.RegisterResponder(http.MethodGet, "https://example.com",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusFound, "")
			resp.Header.Set("Location", "https://other.example.com/")
			return resp, nil
		},
	)
	transport.RegisterResponder(http.MethodGet, "https://other.example.com/",
		func(req *http.Request) (*http.Response, error) {
			followed = true
			return httpmock.NewStringResponse(200, ""), nil
		},
	)

	res := p.Probe(context.Background(), "https://example.com", time.Second)

	assert.True(t, res.OK)
	assert.False(t, followed)
}
