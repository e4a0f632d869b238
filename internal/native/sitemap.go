package native

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// maxSitemapDepth bounds sitemap index recursion.
const maxSitemapDepth = 5

var errWalkDone = errors.New("sitemap walk done")

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// sitemapDoc is a parsed sitemap: page locations from a <urlset> or child
// sitemap locations from a <sitemapindex>.
type sitemapDoc struct {
	pages    []string
	children []string
}

func parseSitemap(data []byte) (sitemapDoc, error) {
	var doc sitemapDoc

	var idx sitemapIndex
	if err := xml.Unmarshal(data, &idx); err == nil && idx.XMLName.Local == "sitemapindex" {
		for _, s := range idx.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				doc.children = append(doc.children, loc)
			}
		}
		return doc, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return doc, err
	}
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			doc.pages = append(doc.pages, loc)
		}
	}
	return doc, nil
}

// sitemapWalker collects page URLs from a sitemap tree in document order.
type sitemapWalker struct {
	get  func(ctx context.Context, url string) ([]byte, error)
	log  zerolog.Logger
	seen map[string]bool
}

// walk passes every page URL reachable from sitemapURL to keep, in order. Failures on child
// sitemaps are logged and skipped; a failure on the top-level sitemap is
// returned. Once keep returns false the walk ends with errWalkDone.
func (w *sitemapWalker) walk(ctx context.Context, sitemapURL string, depth int, keep func(string) bool) error {
	if w.seen[sitemapURL] {
		return nil
	}
	w.seen[sitemapURL] = true

	body, err := w.get(ctx, sitemapURL)
	if err != nil {
		return err
	}
	doc, err := parseSitemap(body)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", sitemapURL, err)
	}

	for _, page := range doc.pages {
		if !keep(page) {
			return errWalkDone
		}
	}

	if depth >= maxSitemapDepth {
		if len(doc.children) > 0 {
			w.log.Warn().Str("sitemap", sitemapURL).Msg("Sitemap nesting too deep, ignoring children")
		}
		return nil
	}
	for _, child := range doc.children {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.walk(ctx, child, depth+1, keep)
		if errors.Is(err, errWalkDone) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			w.log.Warn().Err(err).Str("sitemap", child).Msg("Sub-sitemap failed")
		}
	}
	return nil
}
