package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/models"
)

// Writer publishes run artifacts to a BlobStore.
type Writer struct {
	Store  BlobStore
	now    func() time.Time
	logger *zap.Logger
}

func NewWriter(store BlobStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{Store: store, now: time.Now, logger: logger}
}

func (w *Writer) WriteArtifact(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error {
	at := w.now()
	data, err := json.MarshalIndent(Build(run, props, at), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	if err := w.Store.Put(ctx, LatestKey, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write latest artifact: %w", err)
	}
	history := HistoryKey(at)
	if err := w.Store.Put(ctx, history, data, "application/json"); err != nil {
		return fmt.Errorf("failed to write history artifact: %w", err)
	}

	w.logger.Info("artifact written",
		zap.String("run_id", run.RunID),
		zap.String("latest", LatestKey),
		zap.String("history", history),
		zap.Int("properties", len(props)))
	return nil
}

// ReadLatest decodes the most recent artifact.
func ReadLatest(ctx context.Context, store BlobStore) (*Document, error) {
	data, err := store.Get(ctx, LatestKey)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode latest artifact: %w", err)
	}
	return &doc, nil
}

// History returns up to limit history keys, newest first. A limit of 0
// returns them all.
func History(ctx context.Context, store BlobStore, limit int) ([]string, error) {
	keys, err := store.List(ctx, HistoryPrefix)
	if err != nil {
		return nil, err
	}
	slices.Reverse(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}
