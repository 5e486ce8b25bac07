package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/estate-finder/internal/artifact"
	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/db"
	"github.com/david/estate-finder/internal/report"
)

func main() {
	limit := flag.Int("limit", 10, "Number of recent runs to show")
	pruneDays := flag.Int("prune-days", 0, "Delete run records older than this many days (0 keeps everything)")
	history := flag.Bool("history", false, "Also list the stored run artifacts, newest first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	if *pruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -*pruneDays)
		removed, err := store.PruneRuns(ctx, cutoff)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Pruned %d runs started before %s", removed, cutoff.Format("2006-01-02"))
	}

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}
	report.Runs(os.Stdout, runs)

	for _, r := range runs {
		for _, f := range r.FailedSites {
			log.Printf("%s: %s/%s failed: %s", r.RunID, f.Name, f.Location, f.Error)
		}
	}

	if *history {
		blobs, err := artifact.NewFSStore(cfg.Storage.ArtifactDir)
		if err != nil {
			log.Fatal(err)
		}
		keys, err := artifact.History(ctx, blobs, *limit)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("\nArtifacts in %s:\n", cfg.Storage.ArtifactDir)
		for _, k := range keys {
			fmt.Println("  " + k)
		}
	}
}
