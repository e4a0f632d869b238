package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Devon-White/docs-mirror/internal/markdown"
	"github.com/Devon-White/docs-mirror/internal/writer"
)

// FormatMarkdown is the retrieval format requested for every page.
const FormatMarkdown = "markdown"

// Source discovers page URLs under a root address and retrieves individual
// pages.
type Source interface {
	Discover(ctx context.Context, rootURL string, limit int) ([]string, error)
	Fetch(ctx context.Context, pageURL, format string) (string, error)
}

// Options controls a single mirror run.
type Options struct {
	RootURL     string
	OutputDir   string
	Limit       int
	Frontmatter bool
	SingleFile  bool

	// Now is used for frontmatter dates; defaults to time.Now.
	Now func() time.Time
}

// Summary reports what a run did.
type Summary struct {
	Discovered int
	Written    int
	Skipped    int
	Failed     int
}

// Run discovers pages with src and writes every page not already present in
// opts.OutputDir. Pages are processed one at a time in discovery order. A
// failure on a single page is logged and does not stop the run; discovery
// failures, output directory errors and cancellation are returned.
func Run(ctx context.Context, src Source, opts Options, log zerolog.Logger) (Summary, error) {
	var sum Summary
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log.Info().Str("root", opts.RootURL).Int("limit", opts.Limit).Msg("Mapping URLs")
	urls, err := src.Discover(ctx, opts.RootURL, opts.Limit)
	if err != nil {
		return sum, fmt.Errorf("mapping %s: %w", opts.RootURL, err)
	}
	sum.Discovered = len(urls)
	log.Info().Int("count", len(urls)).Msg("Found target URLs, starting download")

	if err := writer.EnsureDir(opts.OutputDir); err != nil {
		return sum, err
	}

	var pages []writer.Page
	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		plog := log.With().Str("url", pageURL).Str("progress", fmt.Sprintf("%d/%d", i+1, len(urls))).Logger()

		path, written, err := processPage(ctx, src, opts, pageURL, plog)
		switch {
		case err != nil:
			sum.Failed++
			plog.Error().Err(err).Msg("Failed to scrape")
			continue
		case written:
			sum.Written++
		default:
			sum.Skipped++
		}

		if opts.SingleFile {
			content, err := os.ReadFile(path)
			if err != nil {
				plog.Warn().Err(err).Msg("Could not read page for single file")
				continue
			}
			pages = append(pages, writer.Page{URL: pageURL, Markdown: string(content)})
		}
	}

	if opts.SingleFile && len(pages) > 0 {
		log.Info().Int("pages", len(pages)).Msg("Writing single file")
		if err := writer.WriteSingleFile(opts.OutputDir, pages); err != nil {
			log.Error().Err(err).Msg("Failed to write single file")
		}
	}

	log.Info().
		Int("written", sum.Written).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("Batch download completed")
	return sum, nil
}

// processPage mirrors one URL. It reports the target path and whether a new
// file was written; an existing file is left alone.
func processPage(ctx context.Context, src Source, opts Options, pageURL string, log zerolog.Logger) (string, bool, error) {
	path, err := writer.Path(opts.OutputDir, pageURL)
	if err != nil {
		return "", false, err
	}

	exists, err := writer.Exists(path)
	if err != nil {
		return "", false, fmt.Errorf("checking %s: %w", path, err)
	}
	if exists {
		log.Info().Msg("Skipping, already exists")
		return path, false, nil
	}

	log.Info().Str("file", path).Msg("Scraping")
	content, err := src.Fetch(ctx, pageURL, FormatMarkdown)
	if err != nil {
		return "", false, err
	}

	if opts.Frontmatter {
		fm, err := writer.Frontmatter(markdown.Title(content), pageURL, opts.Now())
		if err != nil {
			return "", false, err
		}
		content = fm + content
	}

	if err := writer.WriteNew(path, content); err != nil {
		return "", false, err
	}
	return path, true, nil
}
