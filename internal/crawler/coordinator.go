package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/elijahthis/pitscrapy/internal/metrics"
	"github.com/elijahthis/pitscrapy/internal/parser"
	"github.com/elijahthis/pitscrapy/internal/shared"
	"github.com/elijahthis/pitscrapy/internal/storage"
)

// Page is one fetched and parsed snapshot. Document is nil when the markup
// could not be parsed; Content is always set.
type Page struct {
	RunID    string
	URL      string
	Fetch    shared.FetchResult
	Document *shared.Document

	results *shared.Results
}

func (p *Page) Content() []byte {
	return p.Fetch.Body
}

// Results extracts every category once per page.
func (p *Page) Results() shared.Results {
	if p.results == nil {
		res := parser.Extract(p.Document)
		p.results = &res
	}
	return *p.results
}

// Report is what a scrape hands back to the presentation layer.
type Report struct {
	RunID     string
	URL       string
	Results   shared.Results
	Outcomes  []storage.Outcome
	Source    *storage.Artifact
	SourceErr error
}

// Err joins every storage failure of the run. Empty categories are not
// errors.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil && !errors.Is(o.Err, shared.ErrEmptyResult) {
			errs = append(errs, fmt.Errorf("%s: %w", o.Category, o.Err))
		}
	}
	if r.SourceErr != nil {
		errs = append(errs, fmt.Errorf("source code: %w", r.SourceErr))
	}
	return errors.Join(errs...)
}

// Scraper sequences fetch, parse, extract and persist for one URL at a
// time. It is safe to reuse across sequential runs.
type Scraper struct {
	fetcher   shared.Fetcher
	parser    shared.Parser
	persister *storage.Persister
	limiter   shared.RateLimiter
	robots    shared.RobotsChecker
	metrics   *metrics.PrometheusMetrics
	delay     time.Duration
}

type Option func(*Scraper)

func WithRateLimiter(l shared.RateLimiter, delay time.Duration) Option {
	return func(s *Scraper) {
		s.limiter = l
		s.delay = delay
	}
}

func WithRobots(r shared.RobotsChecker) Option {
	return func(s *Scraper) { s.robots = r }
}

func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

func NewScraper(fetch shared.Fetcher, p shared.Parser, persister *storage.Persister, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:   fetch,
		parser:    p,
		persister: persister,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}
	return s
}

// Load validates, fetches and parses target. Nothing is written.
func (s *Scraper) Load(ctx context.Context, target string) (*Page, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("url", target).Logger()

	if !shared.ValidateURL(target) {
		logger.Error().Msg("Invalid URL, expected an absolute http(s) URL")
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidURL, target)
	}

	if s.robots != nil && !s.robots.IsAllowed(ctx, target) {
		s.metrics.RobotsBlocked.WithLabelValues().Inc()
		logger.Error().Msg("Blocked by robots.txt")
		return nil, fmt.Errorf("%w: %s", shared.ErrRobotsDisallowed, target)
	}

	if s.limiter != nil {
		domain, err := shared.GetDomain(target)
		if err == nil {
			if err := s.limiter.Wait(ctx, domain, s.delay); err != nil {
				logger.Warn().Err(err).Msg("Rate limiter unavailable, fetching anyway")
			}
		}
	}

	logger.Debug().Msg("Fetching")
	started := time.Now()
	res, err := s.fetcher.Fetch(ctx, target)
	s.metrics.ObserveFetch(started, res, err)
	if err != nil {
		logFetchError(logger, err)
		return nil, err
	}

	page := &Page{RunID: runID, URL: target, Fetch: res}

	started = time.Now()
	doc, err := s.parser.Parse(ctx, bytes.NewReader(res.Body), res.ContentType)
	s.metrics.ParseDuration.WithLabelValues().Observe(time.Since(started).Seconds())
	if err != nil || doc == nil {
		logger.Warn().Err(err).Msg("Could not parse markup, treating every category as empty")
		return page, nil
	}
	doc.URL = target
	page.Document = doc

	return page, nil
}

// ExtractAll extracts every category and writes each non-empty one plus
// the page source. A failed fetch writes nothing.
func (s *Scraper) ExtractAll(ctx context.Context, target string) (*Report, error) {
	return s.run(ctx, target, shared.AllCategories(), true)
}

// ExtractCategories is ExtractAll restricted to cats, without the source
// artifact.
func (s *Scraper) ExtractCategories(ctx context.Context, target string, cats ...shared.Category) (*Report, error) {
	return s.run(ctx, target, cats, false)
}

// Source returns the raw page markup without writing anything.
func (s *Scraper) Source(ctx context.Context, target string) ([]byte, error) {
	page, err := s.Load(ctx, target)
	if err != nil {
		return nil, err
	}
	return page.Content(), nil
}

// SaveSource writes only source_code.html.
func (s *Scraper) SaveSource(ctx context.Context, target string) (*Report, error) {
	return s.run(ctx, target, nil, true)
}

func (s *Scraper) run(ctx context.Context, target string, cats []shared.Category, withSource bool) (*Report, error) {
	page, err := s.Load(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.Persist(ctx, page, cats, withSource), nil
}

// Persist writes cats of an already loaded page, and its source when
// withSource is set.
func (s *Scraper) Persist(ctx context.Context, page *Page, cats []shared.Category, withSource bool) *Report {
	logger := log.With().Str("run_id", page.RunID).Str("url", page.URL).Logger()

	results := page.Results()
	s.metrics.ObserveResults(results)

	report := &Report{
		RunID:   page.RunID,
		URL:     page.URL,
		Results: results,
	}

	if len(cats) > 0 {
		report.Outcomes = s.persister.PersistAll(ctx, results, cats...)
	}
	for _, o := range report.Outcomes {
		switch {
		case o.Err == nil:
			logger.Info().Int("count", o.Count).Msgf("%s saved in: %s", o.Category, o.Artifact.Path)
		case errors.Is(o.Err, shared.ErrEmptyResult):
			logger.Warn().Msgf("No %s found.", o.Category)
		default:
			s.metrics.StorageErrors.WithLabelValues(o.Category.Name()).Inc()
			logger.Error().Err(o.Err).Msgf("Failed to save %s", o.Category)
		}
	}

	if withSource {
		art, err := s.persister.PersistSource(ctx, page.Content())
		if err != nil {
			s.metrics.StorageErrors.WithLabelValues("source_code").Inc()
			logger.Error().Err(err).Msg("Failed to save source code")
			report.SourceErr = err
		} else {
			logger.Info().Msgf("Source code saved in: %s", art.Path)
			report.Source = &art
		}
	}

	return report
}

func logFetchError(logger zerolog.Logger, err error) {
	var fe *shared.FetchError
	switch {
	case errors.As(err, &fe) && fe.Timeout:
		logger.Error().Err(err).Msg("Request timed out")
	case errors.As(err, &fe) && fe.StatusCode != 0:
		logger.Error().Int("status_code", fe.StatusCode).Msg("Request failed")
	default:
		logger.Error().Err(err).Msg("Request failed")
	}
}
