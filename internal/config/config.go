package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by Config.Backend.
const (
	BackendFirecrawl = "firecrawl"
	BackendNative    = "native"
)

// DefaultLimit is the page limit used when none is given.
const DefaultLimit = 50

// ErrUnknownBackend is returned by Validate for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown backend")

// Config holds all options for a docs-mirror run. File-backed fields carry
// yaml and toml tags; RootURL and OutputDir only come from arguments.
type Config struct {
	RootURL   string `yaml:"-" toml:"-"`
	OutputDir string `yaml:"-" toml:"-"`

	Backend       string `yaml:"backend" toml:"backend"`
	FirecrawlBin  string `yaml:"firecrawl_bin" toml:"firecrawl_bin"`
	CredentialEnv string `yaml:"credential_env" toml:"credential_env"`
	Limit         int    `yaml:"limit" toml:"limit"`
	EnvFileDepth  int    `yaml:"env_file_depth" toml:"env_file_depth"`
	LogLevel      string `yaml:"log_level" toml:"log_level"`
	Frontmatter   bool   `yaml:"frontmatter" toml:"frontmatter"`
	SingleFile    bool   `yaml:"single_file" toml:"single_file"`

	Native NativeConfig `yaml:"native" toml:"native"`

	// Credential is resolved at run time from the merged environment.
	Credential string `yaml:"-" toml:"-"`
}

// NativeConfig holds options for the built-in sitemap/HTTP backend.
type NativeConfig struct {
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
	DelayMS   int    `yaml:"delay_ms" toml:"delay_ms"`
	Selector  string `yaml:"selector" toml:"selector"` // empty = heuristic
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Backend:       BackendFirecrawl,
		FirecrawlBin:  "firecrawl",
		CredentialEnv: "FIRECRAWL_API_KEY",
		Limit:         DefaultLimit,
		EnvFileDepth:  5,
		LogLevel:      "info",
		Native: NativeConfig{
			UserAgent: "docs-mirror/1.0",
			DelayMS:   200,
		},
	}
}

// candidateFiles lists the config locations checked when no path is given.
func candidateFiles() []string {
	files := []string{".docs-mirror.yaml", ".docs-mirror.yml", ".docs-mirror.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files,
			filepath.Join(home, ".config", "docs-mirror", "config.yaml"),
			filepath.Join(home, ".config", "docs-mirror", "config.toml"),
		)
	}
	return files
}

// FindFile returns the first existing default config file, or "".
func FindFile() string {
	for _, f := range candidateFiles() {
		if _, err := os.Stat(f); err == nil {
			return f
		}
	}
	return ""
}

// LoadFile overlays the YAML or TOML file at path onto c. The format is
// picked from the extension.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return nil
}

// LoadEnv applies DOCS_MIRROR_* overrides from getenv.
func (c *Config) LoadEnv(getenv func(string) string) {
	if v := getenv("DOCS_MIRROR_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := getenv("DOCS_MIRROR_FIRECRAWL_BIN"); v != "" {
		c.FirecrawlBin = v
	}
	if v := getenv("DOCS_MIRROR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Load builds a Config from defaults, the config file and the environment.
// Precedence: environment > config file > defaults. Flags are applied by the
// caller afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = FindFile()
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.LoadEnv(os.Getenv)
	return cfg, nil
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.RootURL == "" {
		errs = append(errs, errors.New("root URL is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Limit < 1 {
		errs = append(errs, fmt.Errorf("limit must be at least 1, got %d", c.Limit))
	}
	if c.EnvFileDepth < 0 {
		errs = append(errs, errors.New("env file depth must be non-negative"))
	}

	switch c.Backend {
	case BackendFirecrawl:
		if c.FirecrawlBin == "" {
			errs = append(errs, errors.New("firecrawl binary is required"))
		}
		if c.CredentialEnv == "" {
			errs = append(errs, errors.New("credential env name is required"))
		}
	case BackendNative:
		if c.Native.DelayMS < 0 {
			errs = append(errs, errors.New("delay must be non-negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend))
	}

	return errors.Join(errs...)
}

// NeedsCredential reports whether the configured backend requires an API key.
func (c *Config) NeedsCredential() bool {
	return c.Backend == BackendFirecrawl
}
