// Package fetch performs the single-attempt HTTP GETs the generator makes.
// There is no retry and no cache: each quarterly run is a fresh process and
// the next scheduled run is the retry mechanism.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sacal/internal/config"
	appLog "sacal/internal/log"
)

// Classified fetch failures. Callers pick fallbacks with errors.Is.
var (
	ErrConnection = errors.New("connection failure")
	ErrNotFound   = errors.New("resource not found")
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

const defaultTimeout = 30 * time.Second

// Some of the SA sources reject clients without browser-ish headers.
var requestHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:141.0) Gecko/20100101 Firefox/141.0",
	"Accept":     "text/calendar, text/html, application/pdf;q=0.9, */*;q=0.8",
	"Connection": "keep-alive",
}

// Fetcher issues classified HTTP GETs. A zero Simulate means real network
// access; a populated one forces the configured failure for the matching
// target without touching the network.
type Fetcher struct {
	client   *http.Client
	simulate config.Simulate
	target   string
}

// New creates a Fetcher for the named calendar target ("public_holidays" or
// "school_terms"), honoring any simulated failure that applies to it.
func New(target string, sim config.Simulate) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		simulate: sim,
		target:   target,
	}
}

// Get fetches url and returns the body on any 2xx response. Errors are
// wrapped around ErrConnection, ErrNotFound or ErrHTTPStatus.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if f.simulate.Active(f.target, config.SimConnection) {
		return nil, fmt.Errorf("%s: simulated: %w", redactURL(url), ErrConnection)
	}
	if f.simulate.Active(f.target, config.SimNotFound) {
		return nil, fmt.Errorf("%s: simulated: %w", redactURL(url), ErrNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", redactURL(url), err)
	}
	for k, v := range requestHeaders {
		req.Header.Set(k, v)
	}

	appLog.Info("fetch start", "target", f.target, "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", redactURL(url), err, ErrConnection)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%s: reading body: %v: %w", redactURL(url), readErr, ErrConnection)
		}
		appLog.Info("fetch success", "target", f.target, "url", redactURL(url),
			"status", resp.StatusCode, "bytes", len(body))
		return body, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", redactURL(url), ErrNotFound)

	default:
		return nil, fmt.Errorf("%s: %s: %w", redactURL(url), resp.Status, ErrHTTPStatus)
	}
}

// redactURL hides path and query when logging source URLs.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
