package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/db"
	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/report"
	"github.com/david/estate-finder/internal/scoring"
)

// Re-evaluates every stored property against the configured rubric, e.g.
// after the tier thresholds or weights change.
func main() {
	dryRun := flag.Bool("dry-run", false, "Print the new scores without writing them")
	top := flag.Int("top", 20, "Number of properties to print")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, nil); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	store := db.NewStore(pool)
	props, err := store.AllProperties(ctx)
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	changed := 0
	for i, p := range props {
		before := models.PriorityOf(p)
		props[i] = scoring.Apply(p, cfg.Rubric)
		if models.PriorityOf(props[i]) != before {
			changed++
		}
	}
	log.Printf("Rescored %d properties, %d changed priority", len(props), changed)

	if !*dryRun {
		updated, err := store.UpdateEvaluations(ctx, props)
		if err != nil {
			log.Fatalf("update failed: %v", err)
		}
		log.Printf("Updated %d rows", updated)
	}

	report.Properties(os.Stdout, props, *top)
}
