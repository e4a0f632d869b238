// Package firecrawl drives the firecrawl command-line tool to map and scrape
// documentation sites.
package firecrawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Devon-White/docs-mirror/internal/envfile"
)

// CredentialEnv is the variable the firecrawl CLI reads its API key from.
const CredentialEnv = "FIRECRAWL_API_KEY"

// ErrCommand wraps every failure of the external command.
var ErrCommand = errors.New("firecrawl command failed")

// Runner executes name with args and env and returns its standard output.
type Runner func(ctx context.Context, name string, args, env []string) ([]byte, error)

// ExecRunner runs the command directly, without a shell, and waits for it.
// Standard error is captured and attached to the returned error.
func ExecRunner(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// Client is a pipeline source backed by the firecrawl CLI.
type Client struct {
	bin string
	env []string
	run Runner
	log zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.run = r }
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client that runs bin with environ plus the given API key.
func New(bin, apiKey string, environ []string, opts ...Option) *Client {
	c := &Client{
		bin: bin,
		env: envfile.Merge(environ, map[string]string{CredentialEnv: apiKey}),
		run: ExecRunner,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover runs "firecrawl map" and returns the page URLs it prints.
func (c *Client) Discover(ctx context.Context, rootURL string, limit int) ([]string, error) {
	out, err := c.exec(ctx, "map", rootURL, "--limit", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	return FilterMapOutput(string(out)), nil
}

// Fetch runs "firecrawl scrape" for one page and returns its output verbatim.
func (c *Client) Fetch(ctx context.Context, pageURL, format string) (string, error) {
	out, err := c.exec(ctx, "scrape", pageURL, format)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, error) {
	c.log.Debug().Str("bin", c.bin).Strs("args", args).Msg("Running firecrawl")
	out, err := c.run(ctx, c.bin, args, c.env)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrCommand, c.bin, strings.Join(args, " "), err)
	}
	return out, nil
}

// FilterMapOutput keeps the trimmed, non-empty lines of map output that look
// like URLs and are not locale variants (?hl=). Order is preserved.
func FilterMapOutput(out string) []string {
	var urls []string
	for _, line := range strings.Split(out, "\n") {
		u := strings.TrimSpace(line)
		if u == "" || !strings.HasPrefix(u, "http") || strings.Contains(u, "?hl=") {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
