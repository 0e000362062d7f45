package shared

import (
	"context"
	"io"
	"time"
)

// interfaces
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}
type Parser interface {
	Parse(ctx context.Context, r io.Reader, contentType string) (*Document, error)
}
type RateLimiter interface {
	Wait(ctx context.Context, domain string, delay time.Duration) error
}
type RobotsChecker interface {
	IsAllowed(ctx context.Context, targetURL string) bool
}
type Storage interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// structs
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Element is a parser-independent view of one markup element.
type Element struct {
	Tag   string
	Attrs map[string]string
	Text  string
}

func (e Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Document holds the elements of one parsed page in document order.
type Document struct {
	URL      string
	Elements []Element
}
