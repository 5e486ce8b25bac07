package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/scoring"
)

// Pipeline runs one scrape: every location against every site, in order,
// followed by dedupe, validation and hand-off to the collaborators.
type Pipeline struct {
	Sites       []LocationScraper
	Locations   []string
	MaxListings int
	Rubric      scoring.Rubric
	Pacer       *Pacer

	Store     RunStore
	Artifacts ArtifactWriter
	Notifier  Notifier

	logger *zap.Logger
	now    func() time.Time
}

func NewPipeline(sites []LocationScraper, locations []string, maxListings int, rubric scoring.Rubric, pacer *Pacer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		Sites:       sites,
		Locations:   locations,
		MaxListings: maxListings,
		Rubric:      rubric,
		Pacer:       pacer,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes a full scrape. Per-site failures are recorded in the
// summary and never stop the run. Context cancellation aborts with
// ctx.Err(); anything else unexpected comes back as a *FatalRunError.
func (p *Pipeline) Run(ctx context.Context) (result *RunResult, err error) {
	summary := models.NewRunSummary(p.now())
	log := p.logger.With(zap.String("run_id", summary.RunID))

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &FatalRunError{RunID: summary.RunID, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			p.markFailed(ctx, summary, err)
		}
	}()

	log.Info("scrape starting",
		zap.Int("locations", len(p.Locations)),
		zap.Int("sources", len(p.Sites)))
	p.recordStart(ctx, summary)

	var all []models.PropertyRecord
	for _, location := range p.Locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Info("processing location", zap.String("location", location))

		for _, site := range p.Sites {
			props, err := site.ScrapeLocation(ctx, location, p.MaxListings)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Error("scraper failed",
					zap.String("source", site.Name()),
					zap.String("location", location),
					zap.Error(err))
				summary.FailedSites = append(summary.FailedSites, models.FailedSite{
					Name:      site.Name(),
					Location:  location,
					Error:     err.Error(),
					Timestamp: p.now().UTC(),
				})
				continue
			}

			for _, prop := range props {
				if !prop.Evaluated() {
					prop = scoring.Apply(prop, p.Rubric)
				}
				all = append(all, prop)
			}
			summary.SuccessfulSites = appendUnique(summary.SuccessfulSites, site.Name())

			if err := p.Pacer.BetweenSites(ctx); err != nil {
				return nil, err
			}
		}
		summary.LocationsScraped = append(summary.LocationsScraped, location)
	}

	before := len(all)
	all = Dedupe(all)
	if removed := before - len(all); removed > 0 {
		log.Info("removed duplicate listings", zap.Int("removed", removed))
	}

	for _, issue := range Validate(all) {
		log.Warn("data quality issue", zap.String("issue", issue))
		summary.Errors = append(summary.Errors, issue)
	}

	finalize(summary, all, p.now())
	log.Info("scrape complete",
		zap.Int("total", summary.PropertiesFound),
		zap.Int("critical", summary.CriticalCount),
		zap.Int("high", summary.HighCount),
		zap.Int("failed_sites", len(summary.FailedSites)),
		zap.Duration("duration", summary.Duration()))

	if p.Store != nil {
		if err := p.Store.SaveRun(ctx, summary, all); err != nil {
			return nil, &FatalRunError{RunID: summary.RunID, Err: fmt.Errorf("save results: %w", err)}
		}
		log.Info("saved properties", zap.Int("count", len(all)))
	}

	if p.Artifacts != nil {
		if err := p.Artifacts.WriteArtifact(ctx, summary, all); err != nil {
			log.Error("failed to write run artifact", zap.Error(err))
		}
	}

	if p.Notifier != nil {
		if err := p.Notifier.NotifyCompletion(ctx, summary, all); err != nil {
			log.Error("failed to send completion alert", zap.Error(err))
		}
	}

	return &RunResult{Summary: summary, Properties: all}, nil
}

func finalize(s *models.RunSummary, props []models.PropertyRecord, at time.Time) {
	s.PropertiesFound = len(props)
	s.CriticalCount, s.HighCount = 0, 0
	for _, prop := range props {
		switch models.PriorityOf(prop) {
		case models.PriorityCritical:
			s.CriticalCount++
		case models.PriorityHigh:
			s.HighCount++
		}
	}
	end := at.UTC()
	s.EndTime = &end
	s.Status = models.RunCompleted
}

// runStarter is implemented by stores that track runs while they execute.
type runStarter interface {
	StartRun(ctx context.Context, run *models.RunSummary) error
}

func (p *Pipeline) recordStart(ctx context.Context, s *models.RunSummary) {
	if st, ok := p.Store.(runStarter); ok {
		if err := st.StartRun(ctx, s); err != nil {
			p.logger.Warn("failed to record run start", zap.String("run_id", s.RunID), zap.Error(err))
		}
	}
}

// markFailed records an aborted run without its properties.
func (p *Pipeline) markFailed(ctx context.Context, s *models.RunSummary, cause error) {
	end := p.now().UTC()
	s.EndTime = &end
	s.Status = models.RunFailed
	if errors.Is(cause, context.Canceled) {
		s.Errors = append(s.Errors, "run interrupted")
	} else {
		s.Errors = append(s.Errors, cause.Error())
	}

	if p.Store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.Store.SaveRun(saveCtx, s, nil); err != nil {
		p.logger.Warn("failed to record failed run", zap.String("run_id", s.RunID), zap.Error(err))
	}
}
