package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Devon-White/docs-mirror/internal/config"
	"github.com/Devon-White/docs-mirror/internal/envfile"
	"github.com/Devon-White/docs-mirror/internal/firecrawl"
	"github.com/Devon-White/docs-mirror/internal/logging"
	"github.com/Devon-White/docs-mirror/internal/native"
	"github.com/Devon-White/docs-mirror/internal/pipeline"
)

var (
	// ErrInvalidLimit is returned for a limit argument that is not a
	// positive base-10 integer.
	ErrInvalidLimit = errors.New("limit must be a positive integer")

	// ErrMissingCredential is returned when the backend needs an API key and
	// none was found in the environment or a .env file.
	ErrMissingCredential = errors.New("missing credential")
)

// sourceFactory builds the pipeline source for a resolved configuration.
// environ is the process environment merged with the nearest .env file.
type sourceFactory func(cfg *config.Config, environ []string, log zerolog.Logger) (pipeline.Source, error)

func defaultSource(cfg *config.Config, environ []string, log zerolog.Logger) (pipeline.Source, error) {
	switch cfg.Backend {
	case config.BackendFirecrawl:
		return firecrawl.New(cfg.FirecrawlBin, cfg.Credential, environ, firecrawl.WithLogger(log)), nil
	case config.BackendNative:
		return native.New(native.Options{
			UserAgent: cfg.Native.UserAgent,
			Delay:     time.Duration(cfg.Native.DelayMS) * time.Millisecond,
			Selector:  cfg.Native.Selector,
			Logger:    log,
		}), nil
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

type options struct {
	configPath   string
	backend      string
	firecrawlBin string
	envDepth     int
	logLevel     string
	verbose      bool
	frontmatter  bool
	singleFile   bool
	userAgent    string
	delayMS      int
	selector     string
}

func newRootCmd(newSource sourceFactory) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "docs-mirror <rootUrl> <outputDir> [limit]",
		Short: "Mirror a documentation site into local markdown files",
		Long: `docs-mirror discovers the pages under a root URL and saves each one as a
markdown file in the output directory, one file per page. Pages whose file
already exists are skipped, so re-running only fetches what is missing.

Backends:
  - firecrawl (default): runs "firecrawl map" and "firecrawl scrape". Needs
    FIRECRAWL_API_KEY, from the environment or the nearest .env file.
  - native: reads the site's sitemap.xml and converts each page's HTML to
    markdown in-process.`,
		Args: validateArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, args, &opts, newSource)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (YAML or TOML; default .docs-mirror.yaml)")
	f.StringVar(&opts.backend, "backend", config.BackendFirecrawl, "discovery/retrieval backend: firecrawl or native")
	f.StringVar(&opts.firecrawlBin, "firecrawl-bin", "firecrawl", "path to the firecrawl CLI")
	f.IntVar(&opts.envDepth, "env-file-depth", envfile.DefaultDepth, "parent directories searched for a .env file")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")
	f.BoolVar(&opts.frontmatter, "frontmatter", false, "prepend YAML frontmatter to new pages")
	f.BoolVar(&opts.singleFile, "single-file", false, "also produce a single concatenated all-pages.md")
	f.StringVar(&opts.userAgent, "user-agent", "docs-mirror/1.0", "User-Agent for the native backend")
	f.IntVarP(&opts.delayMS, "delay", "d", 200, "delay between requests for the native backend (ms)")
	f.StringVar(&opts.selector, "selector", "", "CSS selector for main content, native backend (default: auto-detect)")

	return cmd
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.RangeArgs(2, 3)(cmd, args); err != nil {
		return err
	}
	if len(args) == 3 {
		if _, err := parseLimit(args[2]); err != nil {
			return err
		}
	}
	return nil
}

func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w, got %q", ErrInvalidLimit, s)
	}
	return n, nil
}

func run(cmd *cobra.Command, args []string, opts *options, newSource sourceFactory) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, opts)

	cfg.RootURL, cfg.OutputDir = args[0], args[1]
	if len(args) == 3 {
		cfg.Limit, _ = parseLimit(args[2])
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(cmd.ErrOrStderr(), level)

	environ, err := loadEnviron(cfg.EnvFileDepth, log)
	if err != nil {
		return err
	}
	if cfg.NeedsCredential() {
		key, _ := envfile.Lookup(environ, cfg.CredentialEnv)
		if key == "" {
			return fmt.Errorf("%w: %s environment variable is not set, expected a .env file in the project root",
				ErrMissingCredential, cfg.CredentialEnv)
		}
		cfg.Credential = key
	}

	src, err := newSource(cfg, environ, log)
	if err != nil {
		return err
	}

	_, err = pipeline.Run(cmd.Context(), src, pipeline.Options{
		RootURL:     cfg.RootURL,
		OutputDir:   cfg.OutputDir,
		Limit:       cfg.Limit,
		Frontmatter: cfg.Frontmatter,
		SingleFile:  cfg.SingleFile,
	}, log)
	return err
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *options) {
	set := cmd.Flags().Changed
	if set("backend") {
		cfg.Backend = opts.backend
	}
	if set("firecrawl-bin") {
		cfg.FirecrawlBin = opts.firecrawlBin
	}
	if set("env-file-depth") {
		cfg.EnvFileDepth = opts.envDepth
	}
	if set("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if set("frontmatter") {
		cfg.Frontmatter = opts.frontmatter
	}
	if set("single-file") {
		cfg.SingleFile = opts.singleFile
	}
	if set("user-agent") {
		cfg.Native.UserAgent = opts.userAgent
	}
	if set("delay") {
		cfg.Native.DelayMS = opts.delayMS
	}
	if set("selector") {
		cfg.Native.Selector = opts.selector
	}
}

// loadEnviron returns the process environment overlaid with the nearest .env
// file. The process environment itself is left untouched.
func loadEnviron(depth int, log zerolog.Logger) ([]string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	values, path, err := envfile.Load(wd, depth)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Info().Str("path", path).Int("vars", len(values)).Msg("Loaded .env")
	} else {
		log.Debug().Str("from", wd).Int("depth", depth).Msg("No .env file found")
	}
	return envfile.Merge(os.Environ(), values), nil
}

// Execute runs the root command.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return newRootCmd(defaultSource).ExecuteContext(ctx)
}
