// Package native discovers documentation pages from a site's sitemap.xml and
// converts their HTML to markdown in-process, without any external tool.
package native

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/rs/zerolog"
)

// ErrUnsupportedFormat is returned by Fetch for formats other than markdown.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Options configures a Source.
type Options struct {
	UserAgent string
	Delay     time.Duration
	Selector  string // CSS selector for main content; empty = heuristic
	Client    *http.Client
	Logger    zerolog.Logger
}

// Source implements sitemap discovery and HTML-to-markdown retrieval.
type Source struct {
	http     *httpGetter
	selector string
	conv     *converter.Converter
	log      zerolog.Logger
}

// New returns a Source. A nil Client gets a 30 second timeout.
func New(opts Options) *Source {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{
		http: &httpGetter{
			client:    client,
			userAgent: opts.UserAgent,
			delay:     opts.Delay,
		},
		selector: opts.Selector,
		conv:     newConverter(),
		log:      opts.Logger,
	}
}

// Discover reads <scheme>://<host>/sitemap.xml, following sitemap indexes,
// and returns up to limit page URLs that start with rootURL. Locale variants
// (?hl=) are dropped.
func (s *Source) Discover(ctx context.Context, rootURL string, limit int) ([]string, error) {
	root, err := url.Parse(rootURL)
	if err != nil || root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("invalid root URL %q", rootURL)
	}
	sitemapURL := root.Scheme + "://" + root.Host + "/sitemap.xml"
	prefix := strings.TrimSuffix(rootURL, "/")

	var urls []string
	seen := make(map[string]bool)
	keep := func(page string) bool {
		if len(urls) >= limit {
			return false
		}
		if inScope(page, prefix) && !seen[page] {
			seen[page] = true
			urls = append(urls, page)
		}
		return true
	}

	walker := &sitemapWalker{get: s.http.get, log: s.log, seen: make(map[string]bool)}
	s.log.Debug().Str("sitemap", sitemapURL).Msg("Reading sitemap")
	if err := walker.walk(ctx, sitemapURL, 0, keep); err != nil && !errors.Is(err, errWalkDone) {
		return nil, fmt.Errorf("sitemap: %w", err)
	}
	return urls, nil
}

// inScope reports whether page lies under prefix and is not a locale variant.
func inScope(page, prefix string) bool {
	if !strings.HasPrefix(page, "http") || strings.Contains(page, "?hl=") {
		return false
	}
	if page == prefix {
		return true
	}
	rest, ok := strings.CutPrefix(page, prefix)
	return ok && (strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "?") || strings.HasPrefix(rest, "#"))
}

// Fetch downloads pageURL, isolates its main content and returns it as
// markdown.
func (s *Source) Fetch(ctx context.Context, pageURL, format string) (string, error) {
	if format != "markdown" {
		return "", fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}

	body, err := s.http.get(ctx, pageURL)
	if err != nil {
		return "", err
	}

	fragment, err := extractContent(body, s.selector)
	if err != nil {
		return "", fmt.Errorf("extraction: %w", err)
	}
	return toMarkdown(s.conv, fragment, pageURL)
}
