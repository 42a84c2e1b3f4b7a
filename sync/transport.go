// ABOUTME: HTTP transport used by provider bindings
// ABOUTME: Adds bearer auth from a fixed token and paces requests with a rate limiter
package sync

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond paces calls to one provider account.
const DefaultRequestsPerSecond = 10

// limitedTransport waits on the limiter before each request. It never retries.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base.RoundTrip(req)
}

// ClientOptions tunes the HTTP client built for a gateway.
type ClientOptions struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	// Base is the underlying transport; nil uses http.DefaultTransport.
	Base http.RoundTripper
}

// NewAPIClient returns an HTTP client that authorizes with a single access
// token. The token is never refreshed: it lives exactly as long as the run.
func NewAPIClient(token *oauth2.Token, opts ClientOptions) *http.Client {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   &limitedTransport{base: base, limiter: limiter},
		},
	}
}
