package robots

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// RobotsChecker caches one robots.txt group per host. A missing or
// unreadable robots.txt allows everything.
type RobotsChecker struct {
	userAgent string
	cache     map[string]*robotstxt.Group
	client    *http.Client
	mu        sync.RWMutex
}

func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.Group),
		client:    &http.Client{Timeout: timeout},
	}
}

// Timeout bounds each robots.txt request.
func (r *RobotsChecker) Timeout() time.Duration {
	return r.client.Timeout
}

func (r *RobotsChecker) IsAllowed(ctx context.Context, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		log.Warn().Err(err).Str("url", targetURL).Msg("Unable to parse target URL for robots.txt")
		return false
	}

	domain := u.Host
	scheme := u.Scheme

	r.mu.RLock()
	group, exists := r.cache[domain]
	r.mu.RUnlock()

	if !exists {
		group = r.fetchRobotsTxt(ctx, scheme, domain)

		r.mu.Lock()
		r.cache[domain] = group
		r.mu.Unlock()
	}

	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (r *RobotsChecker) fetchRobotsTxt(ctx context.Context, scheme, domain string) *robotstxt.Group {
	robotsURL := scheme + "://" + domain + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("domain", domain).Msg("No robots.txt found")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}

	return data.FindGroup(r.userAgent)
}
