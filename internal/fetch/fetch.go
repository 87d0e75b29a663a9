// Package fetch downloads source audio. The download policy is explicit:
// a bounded per-attempt timeout and a single retry, then failure.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/emoteam/emopipe/internal/constants"
	"github.com/emoteam/emopipe/internal/domain"
)

// Fetcher is the source-audio capability handed to the orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

// HTTPFetcher wraps an http.Client with rate limiting and a bounded
// retry policy.
type HTTPFetcher struct {
	httpClient *http.Client

	minRequestInterval time.Duration
	lastRequest        time.Time
	mu                 sync.Mutex
}

// NewHTTPFetcher creates a rate-limited, retrying fetcher.
func NewHTTPFetcher(httpClient *http.Client) *HTTPFetcher {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: constants.FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	return &HTTPFetcher{
		httpClient:         httpClient,
		minRequestInterval: constants.MinFetchGap,
	}
}

// ValidateURL rejects source locators the fetcher cannot even attempt.
// This is the one fetch failure that is fatal for the request rather than
// a stage-local flag.
func ValidateURL(sourceURL string) error {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return domain.InputError("source_url", "not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.InputError("source_url", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return domain.InputError("source_url", "missing host")
	}
	return nil
}

// Fetch downloads the source bytes. Transport and HTTP-level failures are
// retried once; anything after that is an upstream fetch error.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	if err := ValidateURL(sourceURL); err != nil {
		return nil, err
	}

	var body []byte
	attempt := func() error {
		f.throttle()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, constants.DefaultFetchLimit+1))
		if err != nil {
			return err
		}
		if len(body) > constants.DefaultFetchLimit {
			return backoff.Permanent(fmt.Errorf("source exceeds %d byte limit", constants.DefaultFetchLimit))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(constants.FetchRetryDelay), constants.FetchRetries),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamFetch, sourceURL, err)
	}
	return body, nil
}

// throttle spaces requests out by minRequestInterval.
func (f *HTTPFetcher) throttle() {
	f.mu.Lock()
	now := time.Now()
	nextAllowed := f.lastRequest.Add(f.minRequestInterval)
	var wait time.Duration
	if now.Before(nextAllowed) {
		wait = nextAllowed.Sub(now)
		f.lastRequest = nextAllowed
	} else {
		f.lastRequest = now
	}
	f.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
}
