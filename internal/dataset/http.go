package dataset

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"fonreal/internal/backoff"
	"fonreal/internal/core"
)

// HTTPClient is the subset of *http.Client used by HTTPSource.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource downloads the CSV over HTTP(S).
type HTTPSource struct {
	url    string
	client HTTPClient
}

// NewHTTPSource returns a source for url. A nil client gets a pooled
// default with the given per-request timeout.
func NewHTTPSource(url string, client HTTPClient, timeout time.Duration) *HTTPSource {
	if client == nil {
		client = newPooledClient(timeout)
	}
	return &HTTPSource{url: url, client: client}
}

func (s *HTTPSource) Name() string { return "http" }

// Fetch GETs the CSV. 5xx and 429 responses are retryable; any other
// non-2xx status or a malformed body is permanent.
func (s *HTTPSource) Fetch(ctx context.Context) (*core.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("fetch %s: unexpected status %d", s.url, resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	table, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return table, nil
}

func newPooledClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
