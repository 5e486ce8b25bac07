package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/scoring"
)

type fakeScraper struct {
	name   string
	props  map[string][]models.PropertyRecord
	errs   map[string]error
	onCall func(location string)
	calls  []string
}

func (f *fakeScraper) Name() string { return f.name }

func (f *fakeScraper) ScrapeLocation(ctx context.Context, location string, limit int) ([]models.PropertyRecord, error) {
	f.calls = append(f.calls, location)
	if f.onCall != nil {
		f.onCall(location)
	}
	if err := f.errs[location]; err != nil {
		return nil, err
	}
	return f.props[location], nil
}

type savedRun struct {
	status models.RunStatus
	errors []string
	props  int
}

type fakeStore struct {
	mu      sync.Mutex
	started []string
	saved   []savedRun
	err     error
}

func (s *fakeStore) StartRun(ctx context.Context, run *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, run.RunID)
	return nil
}

func (s *fakeStore) SaveRun(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedRun{
		status: run.Status,
		errors: append([]string(nil), run.Errors...),
		props:  len(props),
	})
	return s.err
}

type fakeArtifacts struct {
	runs []string
	err  error
}

func (a *fakeArtifacts) WriteArtifact(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error {
	a.runs = append(a.runs, run.RunID)
	return a.err
}

type fakeNotifier struct {
	props []models.PropertyRecord
	err   error
}

func (n *fakeNotifier) NotifyCompletion(ctx context.Context, run *models.RunSummary, props []models.PropertyRecord) error {
	n.props = props
	return n.err
}

func listing(id string, location string, price int64, land int, seaView bool) models.PropertyRecord {
	url := "https://www.immobiliare.it/annunci/" + id + "/"
	return models.PropertyRecord{
		ID:           PropertyID(url),
		Title:        "Listing " + id,
		Location:     location,
		Price:        price,
		LandArea:     land,
		PropertyType: models.TypeMasseria,
		SeaView:      seaView,
		Masseria:     true,
		Historic:     true,
		URL:          url,
		Status:       models.StatusActive,
	}
}

func newTestPipeline(t *testing.T, sites []LocationScraper, locations []string) *Pipeline {
	p := NewPipeline(sites, locations, 50, scoring.DefaultRubric(), nil, zaptest.NewLogger(t))
	p.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return p
}

func TestPipeline_IsolatesSiteFailures(t *testing.T) {
	good := &fakeScraper{
		name: "site-a",
		props: map[string][]models.PropertyRecord{
			"Monopoli": {listing("1", "Monopoli", 1_200_000, 10_000, true)},
			"Ostuni":   {listing("2", "Ostuni", 1_000_000, 9_000, false)},
		},
	}
	flaky := &fakeScraper{
		name: "site-b",
		props: map[string][]models.PropertyRecord{
			"Monopoli": {listing("1", "Monopoli", 1_200_000, 10_000, true)},
		},
		errs: map[string]error{"Ostuni": &TransportError{URL: "u", StatusCode: 503}},
	}

	store := &fakeStore{}
	artifacts := &fakeArtifacts{}
	notifier := &fakeNotifier{}

	p := newTestPipeline(t, []LocationScraper{good, flaky}, []string{"Monopoli", "Ostuni"})
	var waits []time.Duration
	p.Pacer = &Pacer{BetweenSitesDelay: 5 * time.Second, Sleep: recordingSleep(&waits)}
	p.Store, p.Artifacts, p.Notifier = store, artifacts, notifier

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, "run_20240601_080000", s.RunID)
	assert.Equal(t, models.RunCompleted, s.Status)
	require.NotNil(t, s.EndTime)
	assert.Equal(t, []string{"site-a", "site-b"}, s.SuccessfulSites)
	assert.Equal(t, []string{"Monopoli", "Ostuni"}, s.LocationsScraped)
	require.Len(t, s.FailedSites, 1)
	assert.Equal(t, "site-b", s.FailedSites[0].Name)
	assert.Equal(t, "Ostuni", s.FailedSites[0].Location)
	assert.Contains(t, s.FailedSites[0].Error, "503")

	// duplicate across sites collapses to one
	require.Len(t, res.Properties, 2)
	assert.Equal(t, 2, s.PropertiesFound)
	for _, prop := range res.Properties {
		assert.True(t, prop.Evaluated())
	}
	assert.Equal(t, models.PriorityCritical, res.Properties[0].Priority)
	assert.Equal(t, 1, s.CriticalCount)
	assert.Contains(t, s.Errors, "WARNING: Only 2 properties (expected 50+)")

	assert.Equal(t, []string{"run_20240601_080000"}, store.started)
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.RunCompleted, store.saved[0].status)
	assert.Equal(t, 2, store.saved[0].props)
	assert.Equal(t, []string{s.RunID}, artifacts.runs)
	assert.Len(t, notifier.props, 2)

	// only successful site scrapes are followed by the between-sites wait
	assert.Len(t, waits, 3)
}

func TestPipeline_KeepsExistingEvaluation(t *testing.T) {
	pre := listing("9", "Monopoli", 1_200_000, 10_000, true)
	pre.EvaluationResult = &models.EvaluationResult{TotalScore: 12, Priority: models.PriorityLow}

	site := &fakeScraper{name: "a", props: map[string][]models.PropertyRecord{"Monopoli": {pre}}}
	res, err := newTestPipeline(t, []LocationScraper{site}, []string{"Monopoli"}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Properties, 1)
	assert.Equal(t, 12.0, res.Properties[0].TotalScore)
}

func TestPipeline_AllSitesFailingStillCompletes(t *testing.T) {
	site := &fakeScraper{name: "a", errs: map[string]error{"Monopoli": errors.New("boom")}}
	store := &fakeStore{}
	p := newTestPipeline(t, []LocationScraper{site}, []string{"Monopoli"})
	p.Store = store

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, res.Summary.Status)
	assert.Empty(t, res.Properties)
	assert.Equal(t, []string{"CRITICAL: Zero properties scraped"}, res.Summary.Errors)
	assert.Empty(t, res.Summary.SuccessfulSites)
}

func TestPipeline_StoreFailureIsFatal(t *testing.T) {
	site := &fakeScraper{name: "a", props: map[string][]models.PropertyRecord{
		"Monopoli": {listing("1", "Monopoli", 1_200_000, 10_000, true)},
	}}
	store := &fakeStore{err: errors.New("connection refused")}
	notifier := &fakeNotifier{}
	p := newTestPipeline(t, []LocationScraper{site}, []string{"Monopoli"})
	p.Store, p.Notifier = store, notifier

	res, err := p.Run(context.Background())
	assert.Nil(t, res)
	var fatal *FatalRunError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "run_20240601_080000", fatal.RunID)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, notifier.props)

	require.Len(t, store.saved, 2)
	assert.Equal(t, models.RunFailed, store.saved[1].status)
	assert.Equal(t, 0, store.saved[1].props)
}

func TestPipeline_ArtifactAndNotifyFailuresAreNotFatal(t *testing.T) {
	site := &fakeScraper{name: "a", props: map[string][]models.PropertyRecord{
		"Monopoli": {listing("1", "Monopoli", 1_200_000, 10_000, true)},
	}}
	p := newTestPipeline(t, []LocationScraper{site}, []string{"Monopoli"})
	p.Artifacts = &fakeArtifacts{err: errors.New("disk full")}
	p.Notifier = &fakeNotifier{err: errors.New("smtp down")}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, res.Summary.Status)
}

func TestPipeline_CancelAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site := &fakeScraper{name: "a"}
	site.onCall = func(location string) {
		if location == "Ostuni" {
			cancel()
		}
	}
	site.errs = map[string]error{"Ostuni": context.Canceled}
	store := &fakeStore{}
	p := newTestPipeline(t, []LocationScraper{site}, []string{"Monopoli", "Ostuni", "Fasano"})
	p.Store = store

	res, err := p.Run(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"Monopoli", "Ostuni"}, site.calls)

	require.Len(t, store.saved, 1)
	assert.Equal(t, models.RunFailed, store.saved[0].status)
	assert.Contains(t, store.saved[0].errors, "run interrupted")
}

type panickingScraper struct{}

func (panickingScraper) Name() string { return "broken" }

func (panickingScraper) ScrapeLocation(ctx context.Context, location string, limit int) ([]models.PropertyRecord, error) {
	panic(fmt.Sprintf("unexpected markup for %s", location))
}

func TestPipeline_PanicBecomesFatalRunError(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, []LocationScraper{panickingScraper{}}, []string{"Monopoli"})
	p.Store = store

	res, err := p.Run(context.Background())
	assert.Nil(t, res)
	var fatal *FatalRunError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, err.Error(), "unexpected markup for Monopoli")
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.RunFailed, store.saved[0].status)
}
