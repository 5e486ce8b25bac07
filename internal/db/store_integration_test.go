package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/scoring"
)

const pgvectorImage = "pgvector/pgvector:pg16"

var (
	sharedPool     *pgxpool.Pool
	sharedPoolOnce sync.Once
	sharedPoolErr  error
)

// getTestPool returns a migrated database in a shared pgvector container.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPoolOnce.Do(func() {
		sharedPool, sharedPoolErr = setupTestPool(t)
	})
	if sharedPoolErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedPoolErr)
	}
	return sharedPool
}

func setupTestPool(t *testing.T) (*pgxpool.Pool, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        pgvectorImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "estate_finder",
			"POSTGRES_USER":     "estate",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://estate:test_password@%s:%s/estate_finder?sslmode=disable", host, port.Port())

	// the vector type only exists once the migration has run
	bootstrap, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap pool: %w", err)
	}
	for i := 0; i < 10; i++ {
		if err = bootstrap.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err := ApplyMigrations(ctx, bootstrap, zaptest.NewLogger(t)); err != nil {
		bootstrap.Close()
		return nil, err
	}
	bootstrap.Close()

	return Connect(ctx, connStr)
}

func scored(id, location string, price int64, land int, seaView bool) models.PropertyRecord {
	url := "https://www.immobiliare.it/annunci/" + id + "/"
	return scoring.Apply(models.PropertyRecord{
		ID:           id,
		Title:        "Listing " + id,
		Location:     location,
		Price:        price,
		LandArea:     land,
		PropertyType: models.TypeMasseria,
		SeaView:      seaView,
		Historic:     true,
		Masseria:     true,
		Source:       "immobiliare.it",
		URL:          url,
		DiscoveredAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Status:       models.StatusActive,
	}, scoring.DefaultRubric())
}

func TestStore_SaveAndQuery(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	store := NewStore(pool)

	_, err := pool.Exec(ctx, "TRUNCATE properties, scrape_runs")
	require.NoError(t, err)

	run := models.NewRunSummary(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, store.StartRun(ctx, run))

	props := []models.PropertyRecord{
		scored("a", "Monopoli", 1_200_000, 10_000, true),
		scored("b", "Ostuni", 1_000_000, 9_000, false),
		scored("c", "Alberobello", 2_500_000, 30_000, false),
	}
	end := run.StartTime.Add(10 * time.Minute)
	run.EndTime = &end
	run.Status = models.RunCompleted
	run.PropertiesFound = len(props)
	run.CriticalCount = 1
	run.FailedSites = append(run.FailedSites, models.FailedSite{Name: "immobiliare.it", Location: "Fasano", Error: "503", Timestamp: end})
	require.NoError(t, store.SaveRun(ctx, run, props))

	// re-saving is an upsert
	require.NoError(t, store.SaveRun(ctx, run, props))

	list, err := store.ListProperties(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Properties, 3)
	assert.Equal(t, "a", list.Properties[0].ID, "ordered by total score")

	critical, err := store.ListProperties(ctx, ListParams{Priority: "critical"})
	require.NoError(t, err)
	require.Len(t, critical.Properties, 1)
	assert.Equal(t, 92.8, critical.Properties[0].TotalScore)
	assert.Equal(t, props[0].Strengths, critical.Properties[0].Strengths)

	got, err := store.GetProperty(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Ostuni", got.Location)
	assert.True(t, got.Evaluated())

	_, err = store.GetProperty(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	similar, err := store.SimilarProperties(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "b", similar[0].ID)

	runs, err := store.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunCompleted, runs[0].Status)
	require.Len(t, runs[0].FailedSites, 1)
	assert.Equal(t, "Fasano", runs[0].FailedSites[0].Location)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Critical)
	assert.InDelta(t, 1_566_666.67, stats.AvgPrice, 1)
	require.NotNil(t, stats.LastRun)

	all, err := store.AllProperties(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	strict := scoring.DefaultRubric()
	strict.Tiers.Critical = 95
	for i := range all {
		all[i] = scoring.Apply(all[i], strict)
	}
	updated, err := store.UpdateEvaluations(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	got, err = store.GetProperty(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, got.Priority)

	removed, err := store.PruneRuns(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
