// Package probe checks whether an affiliate URL is reachable.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Classification is the health verdict for a single probe.
type Classification string

const (
	Active Classification = "active"
	Error  Classification = "error"
)

// ErrInvalidURL is returned by ParseTarget for URLs that cannot be probed.
var ErrInvalidURL = errors.New("invalid url")

// Result is the outcome of probing one URL.
type Result struct {
	// FinalURL is the URL after redirects, or the input URL on failure.
	FinalURL string
	// HTTPCode is the final status code; 0 means the request never got a response.
	HTTPCode int
	Elapsed  time.Duration
	// Method is the HTTP method of the attempt that produced the result.
	Method string
	Err    error
}

// TransportFailed reports whether no HTTP response was received.
func (r Result) TransportFailed() bool {
	return r.HTTPCode == 0
}

// Classify maps a status code to a health verdict. 2xx and 3xx are active;
// every other code, including 0 for transport failures, is an error.
func Classify(code int) Classification {
	if code >= 200 && code < 400 {
		return Active
	}
	return Error
}

// Config holds prober settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Prober issues HEAD requests with a single GET fallback.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// New creates a Prober with its own pooled transport.
func New(cfg Config) *Prober {
	return NewWithClient(cfg, &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	})
}

// NewWithClient creates a Prober using client. Redirects follow the client's policy.
func NewWithClient(cfg Config, client *http.Client) *Prober {
	return &Prober{
		client:    client,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// Probe checks rawURL. A HEAD request is tried first; only when it fails
// without a response is a GET attempted. Both attempts share one timeout.
func (p *Prober) Probe(ctx context.Context, rawURL string) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res := p.do(ctx, http.MethodHead, rawURL)
	if res.TransportFailed() && ctx.Err() == nil {
		res = p.do(ctx, http.MethodGet, rawURL)
	}
	res.Elapsed = time.Since(start)
	return res
}

func (p *Prober) do(ctx context.Context, method, rawURL string) Result {
	res := Result{FinalURL: rawURL, Method: method}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to create request: %w", err)
		return res
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("%s %s: %w", method, rawURL, err)
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.HTTPCode = resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}
	return res
}

// ParseTarget validates that raw is an absolute http(s) URL.
func ParseTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}
