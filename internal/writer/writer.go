package writer

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Devon-White/docs-mirror/internal/markdown"
)

// SingleFileName is the name of the concatenated output written by
// WriteSingleFile.
const SingleFileName = "all-pages.md"

// ErrInvalidURL is returned by FileName for URLs without a scheme or host.
var ErrInvalidURL = errors.New("invalid URL")

// FileName derives the local file name for a page URL: a leading /docs/ is
// dropped, remaining slashes become underscores, one leading underscore is
// trimmed and an empty result becomes "index".
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w %q: missing scheme or host", ErrInvalidURL, rawURL)
	}

	name := strings.TrimPrefix(u.EscapedPath(), "/docs/")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.TrimPrefix(name, "_")
	if name == "" {
		name = "index"
	}
	return name + ".md", nil
}

// Path returns the output path for rawURL under outputDir.
func Path(outputDir, rawURL string) (string, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(outputDir, name), nil
}

// Exists reports whether path is already on disk.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates the output directory and any missing parents.
func EnsureDir(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}
	return nil
}

// frontmatter is the YAML header prepended when frontmatter is enabled.
type frontmatter struct {
	Title     string `yaml:"title,omitempty"`
	SourceURL string `yaml:"source_url"`
	CrawlDate string `yaml:"crawl_date"`
}

// Frontmatter returns a YAML frontmatter block for a markdown file.
func Frontmatter(title, sourceURL string, crawlDate time.Time) (string, error) {
	data, err := yaml.Marshal(frontmatter{
		Title:     title,
		SourceURL: sourceURL,
		CrawlDate: crawlDate.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter: %w", err)
	}
	return "---\n" + string(data) + "---\n\n", nil
}

// WriteNew writes content to path, failing if the file already exists. A
// partially written file is removed.
func WriteNew(path, content string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Page is one mirrored page for single-file concatenation.
type Page struct {
	URL      string
	Markdown string
}

// WriteSingleFile concatenates pages into outputDir/all-pages.md with a table
// of contents. Unlike page files it is rewritten on every run.
func WriteSingleFile(outputDir string, pages []Page) error {
	var sb strings.Builder

	titles := make([]string, len(pages))
	bodies := make([]string, len(pages))
	for i, p := range pages {
		bodies[i] = markdown.StripFrontmatter(p.Markdown)
		titles[i] = markdown.Title(bodies[i])
		if titles[i] == "" {
			titles[i] = p.URL
		}
	}

	sb.WriteString("# Documentation Index\n\n")
	for i, title := range titles {
		anchor := slugify(title)
		if anchor == "" {
			anchor = fmt.Sprintf("page-%d", i+1)
		}
		fmt.Fprintf(&sb, "- [%s](#%s)\n", title, anchor)
	}
	sb.WriteString("\n---\n\n")

	for i, p := range pages {
		fmt.Fprintf(&sb, "## %s\n\n", titles[i])
		fmt.Fprintf(&sb, "*Source: %s*\n\n", p.URL)
		sb.WriteString(bodies[i])
		sb.WriteString("\n\n---\n\n")
	}

	if err := EnsureDir(outputDir); err != nil {
		return err
	}
	path := filepath.Join(outputDir, SingleFileName)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// slugify creates a markdown-compatible anchor from a heading string.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' {
			return r
		}
		return -1
	}, s)
	s = strings.ReplaceAll(s, " ", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
