package crawler

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/elijahthis/pitscrapy/internal/shared"
)

const DefaultTimeout = 10 * time.Second

// WebFetcher is the reusable connection session: one client, built once,
// shared by every sequential fetch of a run or interactive loop.
type WebFetcher struct {
	client    *http.Client
	userAgent string
}

func NewWebFetcher(userAgent string, timeout time.Duration) *WebFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WebFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		userAgent: userAgent,
	}
}

func (f *WebFetcher) Timeout() time.Duration {
	return f.client.Timeout
}

// Fetch issues a single GET, following redirects. Every failure is
// returned as a *shared.FetchError.
func (f *WebFetcher) Fetch(ctx context.Context, url string) (shared.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return shared.FetchResult{}, &shared.FetchError{URL: url, Err: err}
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return shared.FetchResult{}, &shared.FetchError{URL: url, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return shared.FetchResult{}, &shared.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.FetchResult{}, &shared.FetchError{URL: url, Timeout: isTimeout(err), Err: err}
	}

	return shared.FetchResult{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
