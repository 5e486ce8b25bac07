// Package runner assembles a scrape pipeline from the loaded configuration.
package runner

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/ingest"
)

// Deps are the optional collaborators attached to every run.
type Deps struct {
	Store     ingest.RunStore
	Artifacts ingest.ArtifactWriter
	Notifier  ingest.Notifier
}

// Build loads the source registry and wires one SiteScraper per active
// source. The returned pipeline may run repeatedly; breaker state carries
// over between runs.
func Build(cfg *config.Config, deps Deps, logger *zap.Logger) (*ingest.Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg, err := ingest.LoadRegistry(cfg.SourcesPath)
	if err != nil {
		return nil, err
	}

	pacer := cfg.Pacing.Pacer()
	sites := Sites(reg.ActiveSources(), cfg, pacer, logger)
	if len(sites) == 0 {
		return nil, errors.New("no active sources")
	}

	p := ingest.NewPipeline(sites, cfg.ActiveLocations(), cfg.ActiveMaxListings(), cfg.Rubric, pacer, logger)
	p.Store = deps.Store
	p.Artifacts = deps.Artifacts
	p.Notifier = deps.Notifier

	logger.Info("pipeline ready",
		zap.Bool("test_mode", cfg.TestMode),
		zap.Int("sources", len(sites)),
		zap.Strings("locations", cfg.ActiveLocations()))
	return p, nil
}

// Sites builds the scrapers for srcs, applying the configured transport override.
func Sites(srcs []ingest.SourceConfig, cfg *config.Config, pacer *ingest.Pacer, logger *zap.Logger) []ingest.LocationScraper {
	out := make([]ingest.LocationScraper, 0, len(srcs))
	for _, src := range srcs {
		if cfg.FetchTransport != "" {
			src.Fetch.Transport = cfg.FetchTransport
		}
		fetcher := ingest.NewSourceFetcher(src, logger)
		extractor := ingest.NewExtractor(src, cfg.Extraction, logger)
		out = append(out, ingest.NewSiteScraper(src, fetcher, extractor, pacer, logger))
	}
	return out
}

// Describe is a one-line summary for startup logs and tool output.
func Describe(cfg *config.Config) string {
	mode := "full"
	if cfg.TestMode {
		mode = "test"
	}
	return fmt.Sprintf("%s mode: %d locations, %d listings per page", mode, len(cfg.ActiveLocations()), cfg.ActiveMaxListings())
}
