package cmdfactory

import (
	"context"
	"time"

	"github.com/elijahthis/pitscrapy/internal/crawler"
	"github.com/elijahthis/pitscrapy/internal/limiter"
	"github.com/elijahthis/pitscrapy/internal/metrics"
	"github.com/elijahthis/pitscrapy/internal/robots"
	"github.com/elijahthis/pitscrapy/internal/shared"
	"github.com/elijahthis/pitscrapy/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUserAgent = "PitScrapy/1.0"
	DefaultOutputDir = "data_found"
)

type Config struct {
	URL string `mapstructure:"url"`

	// Extraction options
	Links             bool `mapstructure:"links"`
	Images            bool `mapstructure:"images"`
	Videos            bool `mapstructure:"videos"`
	SourceCode        bool `mapstructure:"source-code"`
	SourceCodeSave    bool `mapstructure:"source-code-save"`
	ScriptsWithSrc    bool `mapstructure:"scripts-with-src"`
	ScriptsWithoutSrc bool `mapstructure:"scripts-without-src"`
	All               bool `mapstructure:"all"`
	Interactive       bool `mapstructure:"interactive"`

	// Session
	OutputDir string        `mapstructure:"output"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user-agent"`
	LogLevel  string        `mapstructure:"log-level"`

	// Politeness
	RespectRobots bool          `mapstructure:"respect-robots"`
	RedisAddr     string        `mapstructure:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-pass"`
	RedisDB       int           `mapstructure:"redis-db"`
	HostDelay     time.Duration `mapstructure:"host-delay"`

	// MinIO / S3 mirror
	S3Endpoint string `mapstructure:"s3-endpoint"`
	S3Bucket   string `mapstructure:"s3-bucket"`
	S3Prefix   string `mapstructure:"s3-prefix"`
	S3Region   string `mapstructure:"s3-region"`
	S3User     string `mapstructure:"s3-user"`
	S3Password string `mapstructure:"s3-pass"`

	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Categories returns the categories selected by the extraction flags.
func (c *Config) Categories() []shared.Category {
	if c.All {
		return shared.AllCategories()
	}
	var cats []shared.Category
	for _, sel := range []struct {
		on  bool
		cat shared.Category
	}{
		{c.Links, shared.Links},
		{c.Images, shared.Images},
		{c.Videos, shared.Videos},
		{c.ScriptsWithSrc, shared.ScriptsWithSrc},
		{c.ScriptsWithoutSrc, shared.ScriptsWithoutSrc},
	} {
		if sel.on {
			cats = append(cats, sel.cat)
		}
	}
	return cats
}

func (c *Config) HasExtraction() bool {
	return c.All || c.SourceCode || c.SourceCodeSave || len(c.Categories()) > 0
}

// Factory owns every long lived object of a run: the fetch session, the
// storage backends and the optional politeness helpers.
type Factory struct {
	Fetcher *crawler.WebFetcher
	Store   shared.Storage
	Metrics *metrics.PrometheusMetrics
	Robots  *robots.RobotsChecker
	Scraper *crawler.Scraper

	rdb *redis.Client
}

func New(ctx context.Context, cfg *Config) (*Factory, error) {
	f := &Factory{
		Fetcher: newFetcher(cfg),
		Metrics: metrics.NewMetrics(),
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.Store = store

	opts := []crawler.Option{crawler.WithMetrics(f.Metrics)}
	if cfg.RespectRobots {
		f.Robots = newRobot(cfg, f.Fetcher.Timeout())
		opts = append(opts, crawler.WithRobots(f.Robots))
	}
	if cfg.RedisAddr != "" {
		f.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		opts = append(opts, crawler.WithRateLimiter(limiter.NewRedisRateLimiter(f.rdb), cfg.HostDelay))
		log.Info().Str("addr", cfg.RedisAddr).Msg("Per-host rate limiting enabled")
	}

	f.Scraper = crawler.NewScraper(f.Fetcher, newParser(), storage.NewPersister(f.Store), opts...)
	return f, nil
}

func (f *Factory) Close() error {
	if f.rdb != nil {
		return f.rdb.Close()
	}
	return nil
}

func newFetcher(cfg *Config) *crawler.WebFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return crawler.NewWebFetcher(ua, cfg.Timeout)
}

// newRobot shares the page session's timeout so --timeout bounds the
// robots.txt request as well.
func newRobot(cfg *Config, timeout time.Duration) *robots.RobotsChecker {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return robots.NewRobotsChecker(ua, timeout)
}

func newStorage(ctx context.Context, cfg *Config) (shared.Storage, error) {
	dir := cfg.OutputDir
	if dir == "" {
		dir = DefaultOutputDir
	}
	fs := storage.NewFileStorage(dir)
	if cfg.S3Bucket == "" {
		return fs, nil
	}

	s3Store, err := storage.NewS3Storage(ctx, storage.S3Options{
		Bucket:   cfg.S3Bucket,
		Prefix:   cfg.S3Prefix,
		Endpoint: cfg.S3Endpoint,
		Region:   cfg.S3Region,
		User:     cfg.S3User,
		Password: cfg.S3Password,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("Mirroring artifacts to S3")
	return storage.NewMultiStorage(fs, s3Store), nil
}
