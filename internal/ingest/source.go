package ingest

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/models"
)

// LocationScraper scrapes one site for one location at a time.
type LocationScraper interface {
	Name() string
	ScrapeLocation(ctx context.Context, location string, limit int) ([]models.PropertyRecord, error)
}

// SiteScraper fetches a source's search page for a location and extracts
// the listings on it.
type SiteScraper struct {
	Source    SourceConfig
	Fetcher   Fetcher
	Extractor *Extractor
	Pacer     *Pacer
	logger    *zap.Logger
}

func NewSiteScraper(src SourceConfig, fetcher Fetcher, extractor *Extractor, pacer *Pacer, logger *zap.Logger) *SiteScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteScraper{
		Source:    src,
		Fetcher:   fetcher,
		Extractor: extractor,
		Pacer:     pacer,
		logger:    logger.With(zap.String("source", src.Name)),
	}
}

func (s *SiteScraper) Name() string { return s.Source.Name }

func (s *SiteScraper) ScrapeLocation(ctx context.Context, location string, limit int) ([]models.PropertyRecord, error) {
	// fail fast on an open breaker instead of pacing first
	if g, ok := s.Fetcher.(interface{ Allow() error }); ok {
		if err := g.Allow(); err != nil {
			return nil, err
		}
	}

	searchURL := s.Source.SearchURL(location)
	s.logger.Info("scraping location", zap.String("location", location), zap.String("url", searchURL))

	if err := s.Pacer.BeforeLocation(ctx); err != nil {
		return nil, err
	}

	doc, err := s.Fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer doc.Body.Close()

	page, err := goquery.NewDocumentFromReader(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	props, err := s.Extractor.ExtractPage(ctx, page, location, limit, s.Pacer)
	if err != nil {
		return nil, err
	}
	s.logger.Info("location scraped", zap.String("location", location), zap.Int("properties", len(props)))
	return props, nil
}
