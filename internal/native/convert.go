package native

import (
	"fmt"
	"net/url"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/Devon-White/docs-mirror/internal/markdown"
)

var dropTags = []string{"nav", "header", "footer", "aside", "script", "style", "noscript", "iframe"}

func newConverter() *converter.Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	for _, tag := range dropTags {
		conv.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
	}
	return conv
}

// toMarkdown converts an HTML fragment taken from pageURL. Relative links are
// resolved against the page's origin.
func toMarkdown(conv *converter.Converter, fragment, pageURL string) (string, error) {
	md, err := conv.ConvertString(fragment, converter.WithDomain(origin(pageURL)))
	if err != nil {
		return "", fmt.Errorf("html-to-markdown conversion: %w", err)
	}
	return markdown.Clean(md) + "\n", nil
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
