package ingest

import (
	"context"
	"io"
	"time"

	"github.com/david/estate-finder/internal/models"
)

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// RunStore persists the evaluated properties and the run record.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error
}

// ArtifactWriter publishes the JSON run artifact.
type ArtifactWriter interface {
	WriteArtifact(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error
}

// Notifier sends the per-run completion alert.
type Notifier interface {
	NotifyCompletion(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error
}

// RunResult is what a finished pipeline run hands back to its caller.
type RunResult struct {
	Summary    *models.RunSummary
	Properties []models.PropertyRecord
}
