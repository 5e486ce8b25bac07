package ingest

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all listing sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching and resilience settings for a source.
// Zero values fall back to: http transport, 15s timeout, 5 attempts,
// 4s base delay capped at 60s, 30s after a 429, breaker at 5 failures
// with a 300s cooldown.
type FetchConfig struct {
	Transport        string `yaml:"transport,omitempty"`
	TimeoutSeconds   int    `yaml:"timeout_seconds,omitempty"`
	MaxAttempts      int    `yaml:"max_attempts,omitempty"`
	BaseDelayMS      int    `yaml:"base_delay_ms,omitempty"`
	MaxDelayMS       int    `yaml:"max_delay_ms,omitempty"`
	RateLimitDelayMS int    `yaml:"rate_limit_delay_ms,omitempty"`
	BreakerThreshold int    `yaml:"breaker_threshold,omitempty"`
	BreakerCooldownS int    `yaml:"breaker_cooldown_seconds,omitempty"`
	ProxyURL         string `yaml:"proxy_url,omitempty"`
	AcceptLanguage   string `yaml:"accept_language,omitempty"`
	UserAgent        string `yaml:"user_agent,omitempty"`
	BlockPrivate     bool   `yaml:"block_private,omitempty"`
}

// SourceConfig defines a single listings site.
type SourceConfig struct {
	Name       string         `yaml:"name"`
	BaseURL    string         `yaml:"base_url"`
	SearchPath string         `yaml:"search_path"` // e.g. "/vendita-case/{slug}/"
	Active     bool           `yaml:"active"`
	Fetch      FetchConfig    `yaml:"fetch,omitempty"`
	Selectors  SelectorConfig `yaml:"selectors"`
}

// Selector is a primary CSS selector with an optional fallback for older markup.
type Selector struct {
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback,omitempty"`
}

type SelectorConfig struct {
	Listing     Selector `yaml:"listing"`
	Title       Selector `yaml:"title"`
	Price       Selector `yaml:"price"`
	Description Selector `yaml:"description"`
	Features    Selector `yaml:"features"`
}

// SearchURL builds the location search page URL, e.g.
// https://www.immobiliare.it/vendita-case/polignano-a-mare/
func (s SourceConfig) SearchURL(location string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(location)), " ", "-")
	path := strings.ReplaceAll(s.SearchPath, "{slug}", slug)
	return strings.TrimRight(s.BaseURL, "/") + path
}

// LoadRegistry returns the source registry. An empty path reads the
// embedded sources.yaml; otherwise the file at path is used.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}

	// Expand environment variables within the YAML content (e.g. ${PROXY_URL})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}
	if len(reg.Sources) == 0 {
		return nil, fmt.Errorf("no sources defined")
	}
	for _, s := range reg.Sources {
		if s.Name == "" || s.BaseURL == "" || s.SearchPath == "" {
			return nil, fmt.Errorf("source %q: name, base_url and search_path are required", s.Name)
		}
		if s.Selectors.Listing.Primary == "" || s.Selectors.Title.Primary == "" {
			return nil, fmt.Errorf("source %q: listing and title selectors are required", s.Name)
		}
	}
	return &reg, nil
}

// ActiveSources returns the sources enabled for scraping, in file order.
func (r *Registry) ActiveSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range r.Sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}
