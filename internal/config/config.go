// Package config loads the scraper and server settings: embedded defaults,
// an optional CONFIG_PATH file, then environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/david/estate-finder/internal/ingest"
	"github.com/david/estate-finder/internal/notify"
	"github.com/david/estate-finder/internal/scoring"
)

//go:embed scraper.yaml
var defaultsYAML []byte

type Config struct {
	TestMode        bool     `yaml:"test_mode" env:"TEST_MODE"`
	Locations       []string `yaml:"locations"`
	TestLocations   []string `yaml:"test_locations"`
	MaxListings     int      `yaml:"max_listings" env:"MAX_LISTINGS"`
	TestMaxListings int      `yaml:"test_max_listings"`

	// SourcesPath replaces the embedded source registry when set.
	SourcesPath string `yaml:"sources_path" env:"SOURCES_PATH"`
	// FetchTransport forces "http" or "colly" for every source.
	FetchTransport string `yaml:"fetch_transport" env:"FETCH_TRANSPORT"`

	Pacing     PacingConfig           `yaml:"pacing"`
	Extraction ingest.ExtractionRules `yaml:"extraction"`
	Rubric     scoring.Rubric         `yaml:"rubric"`

	Database     DatabaseConfig `yaml:"database"`
	Storage      StorageConfig  `yaml:"storage"`
	SMTP         SMTPConfig     `yaml:"smtp"`
	DashboardURL string         `yaml:"dashboard_url" env:"DASHBOARD_URL"`
	Server       ServerConfig   `yaml:"server"`
	Logging      LoggingConfig  `yaml:"logging"`
}

type PacingConfig struct {
	LocationMinMS  int `yaml:"location_min_ms"`
	LocationMaxMS  int `yaml:"location_max_ms"`
	ListingMinMS   int `yaml:"listing_min_ms"`
	ListingMaxMS   int `yaml:"listing_max_ms"`
	BetweenSitesMS int `yaml:"between_sites_ms"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type StorageConfig struct {
	ArtifactDir string `yaml:"artifact_dir" env:"ARTIFACT_DIR"`
}

// SMTPConfig holds the mail relay settings. The password is only read from the environment.
type SMTPConfig struct {
	Host      string `yaml:"host" env:"SMTP_HOST"`
	Port      int    `yaml:"port" env:"SMTP_PORT"`
	User      string `yaml:"user" env:"SMTP_USER"`
	Password  string `yaml:"-" env:"SMTP_PASSWORD"`
	Recipient string `yaml:"recipient" env:"ALERT_RECIPIENT"`
}

type ServerConfig struct {
	Port              string   `yaml:"port" env:"PORT"`
	AllowedOrigins    []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
	RunTimeoutMinutes int      `yaml:"run_timeout_minutes"`

	// Secrets - environment only
	JWTSecret         string `yaml:"-" env:"JWT_SECRET"`
	AdminPasswordHash string `yaml:"-" env:"ADMIN_PASSWORD_HASH"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Defaults parses the embedded scraper.yaml.
func Defaults() (*Config, error) {
	// Expand environment variables within the YAML content (e.g. ${ARTIFACT_DIR})
	expanded := os.ExpandEnv(string(defaultsYAML))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}
	return &cfg, nil
}

// Load builds the process configuration. A .env file in the working
// directory is honoured but never overrides variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		// ReadConfig applies the environment overrides after the file
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.ActiveLocations()) == 0 {
		errs = append(errs, errors.New("no locations configured"))
	}
	if c.ActiveMaxListings() <= 0 {
		errs = append(errs, errors.New("max_listings must be positive"))
	}
	if sum := c.Rubric.Weights.Sum(); sum != 100 {
		errs = append(errs, fmt.Errorf("rubric weights sum to %d, want 100", sum))
	}
	t := c.Rubric.Tiers
	if !(t.Critical > t.High && t.High > t.Medium && t.Medium > 0) {
		errs = append(errs, fmt.Errorf("tier thresholds must be ordered critical > high > medium > 0, got %v/%v/%v", t.Critical, t.High, t.Medium))
	}
	switch c.FetchTransport {
	case "", "http", "colly":
	default:
		errs = append(errs, fmt.Errorf("unknown fetch transport %q", c.FetchTransport))
	}
	if c.Pacing.LocationMaxMS < c.Pacing.LocationMinMS || c.Pacing.ListingMaxMS < c.Pacing.ListingMinMS {
		errs = append(errs, errors.New("pacing max delays must not be below the min delays"))
	}
	return errors.Join(errs...)
}

// ActiveLocations is the location list for the current mode.
func (c *Config) ActiveLocations() []string {
	if c.TestMode {
		return c.TestLocations
	}
	return c.Locations
}

// ActiveMaxListings is the per-page listing cap for the current mode.
func (c *Config) ActiveMaxListings() int {
	if c.TestMode {
		return c.TestMaxListings
	}
	return c.MaxListings
}

func (p PacingConfig) Pacer() *ingest.Pacer {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return &ingest.Pacer{
		LocationMin:       ms(p.LocationMinMS),
		LocationMax:       ms(p.LocationMaxMS),
		ListingMin:        ms(p.ListingMinMS),
		ListingMax:        ms(p.ListingMaxMS),
		BetweenSitesDelay: ms(p.BetweenSitesMS),
	}
}

func (s SMTPConfig) Notify() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:      s.Host,
		Port:      s.Port,
		Username:  s.User,
		Password:  s.Password,
		Recipient: s.Recipient,
	}
}

// RunTimeout bounds a run triggered through the API.
func (s ServerConfig) RunTimeout() time.Duration {
	if s.RunTimeoutMinutes <= 0 {
		return 90 * time.Minute
	}
	return time.Duration(s.RunTimeoutMinutes) * time.Minute
}
