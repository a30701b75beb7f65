package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment-variable
// overrides and defaults, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// OpenAlex
	if err := validateBaseURL("openalex.base_url", cfg.OpenAlex.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.OpenAlex.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("openalex.timeout %v must be positive", cfg.OpenAlex.Timeout))
	}
	if cfg.OpenAlex.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("openalex.max_retries %d must be at least 1", cfg.OpenAlex.MaxRetries))
	}
	if cfg.OpenAlex.JitterMax < 0 {
		errs = append(errs, fmt.Errorf("openalex.jitter_max %v must not be negative", cfg.OpenAlex.JitterMax))
	}
	// OpenAlex rejects page sizes above 200.
	if cfg.OpenAlex.PerPage < 1 || cfg.OpenAlex.PerPage > 200 {
		errs = append(errs, fmt.Errorf("openalex.per_page %d is out of range [1, 200]", cfg.OpenAlex.PerPage))
	}
	if cfg.OpenAlex.Mailto == "placeholder_email@gmail.com" {
		slog.Warn("openalex.mailto is the built-in placeholder; set a real address (or OPENALEX_MAILTO) to join the OpenAlex polite pool")
	}

	// Fulltext
	if err := validateBaseURL("fulltext.reader_base_url", cfg.Fulltext.ReaderBaseURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Fulltext.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fulltext.timeout %v must be positive", cfg.Fulltext.Timeout))
	}

	return errors.Join(errs...)
}

// validateBaseURL requires an absolute http or https URL.
func validateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", field, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", field, raw)
	}
	return nil
}
