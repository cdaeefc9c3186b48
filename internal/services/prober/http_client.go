package prober

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
)

// NewHTTPClient builds the shared probe client. Per-probe deadlines come from
// the request context, so the client itself carries no timeout.
func NewHTTPClient(cfg config.ProbeCfg) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return newClient(otelhttp.NewTransport(transport), cfg.FollowRedirects)
}

func newClient(rt http.RoundTripper, followRedirects bool) *http.Client {
	client := &http.Client{Transport: rt}
	if !followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}
