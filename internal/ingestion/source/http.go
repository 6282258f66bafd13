package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/resilience"
)

const (
	DefaultUserAgent = "SignalDigestBot/1.0"
	maxBodyBytes     = 5 << 20
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch failed with %d", e.Code)
}

// HTTPFetcher performs GETs with a fixed user agent, retrying transient
// failures. 4xx responses other than 408 and 429 are not retried.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retry     resilience.RetryConfig
}

// NewHTTPFetcher builds a fetcher. attempts <= 0 uses the retry default.
func NewHTTPFetcher(client *http.Client, userAgent string, attempts int) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
		retry: resilience.RetryConfig{
			MaxAttempts:  attempts,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	}
}

// Get returns the response body of url.
func (f *HTTPFetcher) Get(ctx context.Context, url string, accept string) ([]byte, error) {
	var body []byte
	err := resilience.Retry(ctx, "fetch "+url, f.retry, func() error {
		b, err := f.get(ctx, url, accept)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		statusErr := &StatusError{URL: url, Code: resp.StatusCode}
		if retryableStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, resilience.Permanent(statusErr)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
