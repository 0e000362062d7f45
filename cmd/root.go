package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdfactory "github.com/elijahthis/pitscrapy/internal/cmdFactory"
	"github.com/elijahthis/pitscrapy/internal/crawler"
	"github.com/elijahthis/pitscrapy/internal/shared"
	"github.com/rs/zerolog/log"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	errNoURL        = errors.New("no URL provided")
	errNoExtraction = errors.New("no extraction option was provided")
)

func newCmdRoot() *cobra.Command {
	var cfgFile string
	cfg := &cmdfactory.Config{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pitscrapy [flags]",
		Short: "Pit Scrapy | Massive Data Collect",
		Long: heredoc.Doc(`
			Fetch a single page and save its links, images, videos and scripts,
			one file per category, along with the raw page source.
		`),
		Example: heredoc.Doc(`
			$ pitscrapy -u http://example.com -l -i -v
			$ pitscrapy -u http://example.com --all --output results
			$ pitscrapy -u http://example.com --source-code
			$ pitscrapy --interactive --all
		`),
		Annotations: map[string]string{
			"versionInfo": "1.0",
		},
		RunE: func(c *cobra.Command, args []string) error {
			if err := loadConfig(v, c, cfgFile, cfg); err != nil {
				return err
			}
			shared.SetLogLevel(cfg.LogLevel)

			if !cfg.HasExtraction() {
				return errNoExtraction
			}
			if cfg.URL == "" && !cfg.Interactive {
				return errNoURL
			}
			c.SilenceUsage = true

			f, err := cmdfactory.New(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer f.Close()

			if cfg.MetricsAddr != "" {
				go f.Metrics.StartNewMetricsServer(c.Context(), cfg.MetricsAddr)
			}

			return runSession(c.Context(), f.Scraper, cfg, c.InOrStdin(), c.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cfg.URL, "url", "u", "", "Target URL")
	cmd.Flags().BoolVarP(&cfg.Links, "links", "l", false, "Extract links")
	cmd.Flags().BoolVarP(&cfg.Images, "images", "i", false, "Extract images")
	cmd.Flags().BoolVarP(&cfg.Videos, "videos", "v", false, "Extract videos")
	cmd.Flags().BoolVar(&cfg.SourceCode, "source-code", false, "Extract and display source code")
	cmd.Flags().BoolVar(&cfg.SourceCodeSave, "source-code-save", false, "Extract and save source code to file")
	cmd.Flags().BoolVar(&cfg.ScriptsWithSrc, "scripts-with-src", false, "Extract scripts with src attribute")
	cmd.Flags().BoolVar(&cfg.ScriptsWithoutSrc, "scripts-without-src", false, "Extract scripts without src attribute")
	cmd.Flags().BoolVarP(&cfg.All, "all", "a", false, "Extract everything at once")
	cmd.Flags().BoolVar(&cfg.Interactive, "interactive", false, "Prompt for another URL after each scrape")

	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", cmdfactory.DefaultOutputDir, "Base directory for results")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", crawler.DefaultTimeout, "Per-request timeout")
	cmd.Flags().StringVar(&cfg.UserAgent, "user-agent", cmdfactory.DefaultUserAgent, "User-Agent header sent with requests")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")

	// Politeness
	cmd.Flags().BoolVar(&cfg.RespectRobots, "respect-robots", false, "Refuse URLs disallowed by robots.txt")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for per-host rate limiting (disabled when empty)")
	cmd.Flags().StringVar(&cfg.RedisPassword, "redis-pass", "", "Password of Redis server")
	cmd.Flags().IntVar(&cfg.RedisDB, "redis-db", 0, "Redis DB number")
	cmd.Flags().DurationVar(&cfg.HostDelay, "host-delay", 0, "Minimum delay between requests to the same host")

	// MinIO / S3
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", "", "Mirror artifacts to this S3 bucket (disabled when empty)")
	cmd.Flags().StringVar(&cfg.S3Prefix, "s3-prefix", "", "Key prefix inside the S3 bucket")
	cmd.Flags().StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "S3 Endpoint URL, e.g. http://localhost:9000 for MinIO")
	cmd.Flags().StringVar(&cfg.S3Region, "s3-region", "us-east-1", "S3 Region")
	cmd.Flags().StringVar(&cfg.S3User, "s3-user", "", "S3 Access Key / User")
	cmd.Flags().StringVar(&cfg.S3Password, "s3-pass", "", "S3 Secret Key / Password")

	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9190")

	return cmd
}

// loadConfig layers config file and PITSCRAPY_* environment variables
// under the command line flags.
func loadConfig(v *viper.Viper, c *cobra.Command, cfgFile string, cfg *cmdfactory.Config) error {
	if err := v.BindPFlags(c.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix("PITSCRAPY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

func runSession(ctx context.Context, s *crawler.Scraper, cfg *cmdfactory.Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	target := cfg.URL

	for {
		if target == "" {
			line, err := prompt(reader, out, "Enter the target URL: ")
			if err != nil {
				return nil
			}
			target = line
		}

		err := scrapeOnce(ctx, s, cfg, target, out)
		if !cfg.Interactive {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		answer, err := prompt(reader, out, "Scrape another URL? [y/N]: ")
		if err != nil || !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			return nil
		}
		target = ""
	}
}

// scrapeOnce fetches target a single time and derives every requested
// artifact from that one response.
func scrapeOnce(ctx context.Context, s *crawler.Scraper, cfg *cmdfactory.Config, target string, out io.Writer) error {
	page, err := s.Load(ctx, target)
	if err != nil {
		return err
	}

	if cfg.All {
		return s.Persist(ctx, page, shared.AllCategories(), true).Err()
	}

	var errs []error
	cats := cfg.Categories()
	if len(cats) > 0 || cfg.SourceCodeSave {
		errs = append(errs, s.Persist(ctx, page, cats, cfg.SourceCodeSave).Err())
	}
	if cfg.SourceCode {
		if _, err := out.Write(page.Content()); err != nil {
			errs = append(errs, err)
		}
		fmt.Fprintln(out)
	}
	return errors.Join(errs...)
}

func prompt(r *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return line, nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmdRoot().ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Error while executing pitscrapy")
	}
}
