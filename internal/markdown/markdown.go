// Package markdown holds small helpers shared by the backends and the writer.
package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var multiBlankLines = regexp.MustCompile(`\n{3,}`)

var parser = goldmark.New().Parser()

// Clean collapses runs of blank lines, strips trailing whitespace on each
// line and trims the document.
func Clean(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	md = strings.Join(lines, "\n")

	md = multiBlankLines.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}

// StripFrontmatter removes a leading YAML frontmatter block delimited by
// "---" lines.
func StripFrontmatter(md string) string {
	rest, ok := strings.CutPrefix(md, "---\n")
	if !ok {
		return md
	}
	_, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return md
	}
	return strings.TrimLeft(body, "\n")
}

// Title returns the text of the first level-1 heading, falling back to the
// first heading of any level. It returns "" for documents without headings.
func Title(md string) string {
	src := []byte(md)
	doc := parser.Parse(text.NewReader(src))

	var first, h1 string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		t := headingText(heading, src)
		if first == "" {
			first = t
		}
		if heading.Level == 1 {
			h1 = t
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})

	if h1 != "" {
		return h1
	}
	return first
}

func headingText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
