// Package config provides the configuration schema and loader for the
// ScholarScope tool server.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps [time.Duration] with YAML support for values like "500ms"
// or "10s", which yaml.v3 does not decode into time.Duration on its own.
type Duration time.Duration

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in the same string form it is read in.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// LogLevel controls log verbosity for the ScholarScope server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding [slog.Level]. Unrecognised or empty
// values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for ScholarScope.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// selected fields can be overridden through environment variables (see the
// env struct tags). The configuration is immutable once the server starts.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OpenAlex OpenAlexConfig `yaml:"openalex"`
	Fulltext FulltextConfig `yaml:"fulltext"`
}

// ServerConfig holds logging and operational-endpoint settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"SCHOLARSCOPE_LOG_LEVEL"`

	// OpsAddr is the TCP address of the HTTP listener serving /metrics,
	// /healthz and /readyz (e.g., ":8080"). Empty disables the listener.
	OpsAddr string `yaml:"ops_addr" env:"SCHOLARSCOPE_OPS_ADDR"`
}

// OpenAlexConfig tunes the upstream OpenAlex client.
type OpenAlexConfig struct {
	// BaseURL is the OpenAlex API root.
	BaseURL string `yaml:"base_url"`

	// Mailto identifies this deployment to OpenAlex's polite pool. It is
	// appended to every request as the mailto query parameter.
	Mailto string `yaml:"mailto" env:"OPENALEX_MAILTO"`

	// Timeout bounds each HTTP attempt, not the whole retried request.
	Timeout Duration `yaml:"timeout"`

	// MaxRetries is the total number of attempts per logical request.
	MaxRetries int `yaml:"max_retries"`

	// JitterMax is the upper bound of the random extra wait added to each
	// backoff interval.
	JitterMax Duration `yaml:"jitter_max"`

	// PerPage is the page size requested from list endpoints.
	PerPage int `yaml:"per_page"`
}

// FulltextConfig tunes full-text retrieval through the reader proxy.
type FulltextConfig struct {
	// ReaderBaseURL is the root of the reader proxy that converts pages
	// and PDFs to LLM-friendly plain text.
	ReaderBaseURL string `yaml:"reader_base_url"`

	// Timeout bounds each fetch attempt. Full-text fetches are slower
	// than API calls, so this defaults higher than OpenAlex.Timeout.
	Timeout Duration `yaml:"timeout"`
}

// Default returns a [Config] populated with the built-in defaults, as used
// when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.OpenAlex.BaseURL == "" {
		c.OpenAlex.BaseURL = "https://api.openalex.org"
	}
	if c.OpenAlex.Mailto == "" {
		c.OpenAlex.Mailto = "placeholder_email@gmail.com"
	}
	if c.OpenAlex.Timeout == 0 {
		c.OpenAlex.Timeout = Duration(10 * time.Second)
	}
	if c.OpenAlex.MaxRetries == 0 {
		c.OpenAlex.MaxRetries = 3
	}
	if c.OpenAlex.JitterMax == 0 {
		c.OpenAlex.JitterMax = Duration(250 * time.Millisecond)
	}
	if c.OpenAlex.PerPage == 0 {
		c.OpenAlex.PerPage = 10
	}
	if c.Fulltext.ReaderBaseURL == "" {
		c.Fulltext.ReaderBaseURL = "https://r.jina.ai"
	}
	if c.Fulltext.Timeout == 0 {
		c.Fulltext.Timeout = Duration(30 * time.Second)
	}
}
