package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/ingest"
	"github.com/david/estate-finder/internal/report"
	"github.com/david/estate-finder/internal/scoring"
)

// Runs the extractor and evaluator over a saved search results page, to
// check selectors against real markup without touching the site.
func main() {
	file := flag.String("file", "", "Path to a saved search results HTML page")
	location := flag.String("location", "Monopoli", "Location the page was searched for")
	sourceName := flag.String("source", "", "Source name from the registry (default: first active source)")
	flag.Parse()

	if *file == "" {
		log.Fatal("Please provide an HTML file using -file flag")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	reg, err := ingest.LoadRegistry(cfg.SourcesPath)
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}

	var src *ingest.SourceConfig
	for i, s := range reg.Sources {
		if (*sourceName == "" && s.Active) || s.Name == *sourceName {
			src = &reg.Sources[i]
			break
		}
	}
	if src == nil {
		log.Fatalf("Source %q not found", *sourceName)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		log.Fatalf("Failed to parse HTML: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	extractor := ingest.NewExtractor(*src, cfg.Extraction, logger)
	log.Printf("Found %d listing containers for %s", extractor.Listings(doc).Length(), src.Name)

	// no pacing offline
	props, err := extractor.ExtractPage(context.Background(), doc, *location, cfg.Extraction.MaxListings, nil)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}
	for i := range props {
		props[i] = scoring.Apply(props[i], cfg.Rubric)
	}
	props = ingest.Dedupe(props)
	for _, issue := range ingest.Validate(props) {
		log.Printf("Data quality issue: %s", issue)
	}

	report.Properties(os.Stdout, props, 0)
}
