// Package httpclient issues the HTTP requests a suite declares and records
// the response shape every downstream component (assert, capture, scenario)
// evaluates against (spec.md §4.2, §4.5-§4.7).
//
// The wrapper is built on fasthttp, a dependency the teacher's go.mod
// declares but never exercises in any retrievable source file; this package
// is that dependency's first real home in this codebase. The StatusCode /
// Headers map[string]string / Body / Duration vocabulary mirrors the
// teacher's pkg/core/tools.HTTPResponse (consumed by assert.go,
// shared/extraction.go) so assertion and capture code reads the same way
// the teacher's tool layer does.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// Request is the fully-interpolated, ready-to-send form of a suite step's
// request block.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    interface{}
	Timeout time.Duration
}

// Response is the recorded outcome of one request, kept in memory for the
// lifetime of the step that issued it and handed to assert/capture/scenario.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	BodyJSON   interface{} // nil when Body did not parse as JSON
	Duration   time.Duration

	StartedAt         time.Time
	CompletedAt       time.Time
	TimeToFirstByteMs int64
	ContentDownloadMs int64
	TotalMs           int64
	SizeBytes         int64
}

// Context renders the response as the flat map assert/capture/scenario
// evaluate JMESPath expressions against (spec.md §4.5).
func (r *Response) Context() map[string]interface{} {
	body := interface{}(r.Body)
	if r.BodyJSON != nil {
		body = r.BodyJSON
	}
	headers := make(map[string]interface{}, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	return map[string]interface{}{
		"status_code":           r.StatusCode,
		"headers":               headers,
		"body":                  body,
		"duration_ms":           r.Duration.Milliseconds(),
		"size_bytes":            r.SizeBytes,
		"time_to_first_byte_ms": r.TimeToFirstByteMs,
		"content_download_ms":   r.ContentDownloadMs,
		"total_ms":              r.TotalMs,
	}
}

// DefaultTimeout is used when a request declares none.
const DefaultTimeout = 30 * time.Second

// Client issues requests with per-host rate limiting and connection pooling,
// grounded on the fasthttp client pool pattern and the teacher's shared
// HTTP tool (one client instance reused across requests rather than
// allocated per call).
type Client struct {
	hc *fasthttp.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

// NewClient builds a Client. ratePerSecond <= 0 disables rate limiting.
func NewClient(ratePerSecond float64) *Client {
	return &Client{
		hc: &fasthttp.Client{
			MaxConnsPerHost:     128,
			MaxIdleConnDuration: 90 * time.Second,
		},
		limiters: make(map[string]*rate.Limiter),
		rps:      ratePerSecond,
	}
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	if c.rps <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.rps), int(c.rps)+1)
		c.limiters[host] = l
	}
	return l
}

// Do issues req and returns the recorded Response, honoring ctx
// cancellation and req.Timeout (default DefaultTimeout).
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if host := hostOf(req.URL); host != "" {
		if l := c.limiterFor(host); l != nil {
			if err := l.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(buildURL(req.URL, req.Query))
	freq.Header.SetMethod(strings.ToUpper(req.Method))
	for k, v := range req.Headers {
		freq.Header.Set(k, v)
	}

	if req.Body != nil {
		bodyBytes, contentType, err := encodeBody(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		freq.SetBody(bodyBytes)
		if freq.Header.ContentType() == nil || len(freq.Header.ContentType()) == 0 {
			freq.Header.SetContentType(contentType)
		}
	}

	started := time.Now()
	err := c.hc.DoDeadline(freq, fresp, started.Add(timeout))
	completed := time.Now()
	if err != nil {
		return nil, &errs.RequestError{URL: req.URL, Err: err}
	}

	body := fresp.Body()
	resp := &Response{
		StatusCode:        fresp.StatusCode(),
		Headers:           make(map[string]string),
		Body:              string(body),
		Duration:          completed.Sub(started),
		StartedAt:         started,
		CompletedAt:       completed,
		TimeToFirstByteMs: completed.Sub(started).Milliseconds(),
		ContentDownloadMs: 0,
		TotalMs:           completed.Sub(started).Milliseconds(),
		SizeBytes:         int64(len(body)),
	}
	fresp.Header.VisitAll(func(k, v []byte) {
		resp.Headers[string(k)] = string(v)
	})

	if looksLikeJSON(resp.Headers["Content-Type"], body) {
		var parsed interface{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			resp.BodyJSON = parsed
		}
	}

	return resp, nil
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch b := body.(type) {
	case string:
		return []byte(b), "text/plain", nil
	case []byte:
		return b, "application/octet-stream", nil
	default:
		out, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return out, "application/json", nil
	}
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func buildURL(base string, query map[string]string) string {
	if len(query) == 0 {
		return base
	}
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + values.Encode()
}

func hostOf(rawURL string) string {
	withoutScheme := rawURL
	if idx := strings.Index(rawURL, "://"); idx != -1 {
		withoutScheme = rawURL[idx+3:]
	}
	if idx := strings.IndexAny(withoutScheme, "/?"); idx != -1 {
		withoutScheme = withoutScheme[:idx]
	}
	return withoutScheme
}
