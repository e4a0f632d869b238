package native

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are tried in order when no selector is configured. The
// first match with meaningful text wins.
var contentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".markdown-body",
	".theme-doc-markdown",
	".docs-content",
	".documentation-content",
	".main-content",
	".content",
	"#content",
}

// noise is removed from the content area before conversion.
var noise = strings.Join([]string{
	"nav", "header", "footer", "aside",
	"script", "style", "noscript", "iframe",
	".sidebar", ".toc", ".table-of-contents",
	".breadcrumb", ".breadcrumbs", ".pagination",
	".edit-page", ".feedback", ".cookie-banner",
}, ", ")

// minContentLen is the text length a heuristic match needs to be accepted.
const minContentLen = 50

var errNoContent = errors.New("no content matched")

// extractContent isolates the main documentation area of an HTML page and
// returns its inner HTML.
func extractContent(page []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}

	var sel *goquery.Selection
	if selector != "" {
		sel = doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", errNoContent
		}
	} else {
		sel = mainContent(doc)
	}

	sel.Find(noise).Remove()
	return sel.Html()
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, s := range contentSelectors {
		sel := doc.Find(s).First()
		if sel.Length() > 0 && len(strings.TrimSpace(sel.Text())) > minContentLen {
			return sel
		}
	}
	return doc.Find("body")
}
