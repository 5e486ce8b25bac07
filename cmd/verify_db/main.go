package main

import (
	"context"
	"fmt"
	"log"

	"github.com/david/estate-finder/internal/config"
	"github.com/david/estate-finder/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var count, scored, withEmbedding, withDescription int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(total_score),
			count(embedding),
			count(NULLIF(description, ''))
		FROM properties
	`).Scan(&count, &scored, &withEmbedding, &withDescription)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	stats, err := db.NewStore(pool).Stats(ctx)
	if err != nil {
		log.Fatalf("Stats failed: %v", err)
	}

	fmt.Printf("Total properties: %d\n", count)
	fmt.Printf("Scored: %d\n", scored)
	fmt.Printf("With embedding: %d\n", withEmbedding)
	fmt.Printf("With description: %d\n", withDescription)
	fmt.Printf("CRITICAL/HIGH/MEDIUM/LOW: %d/%d/%d/%d\n", stats.Critical, stats.High, stats.Medium, stats.Low)
	fmt.Printf("Average price: €%.0f, average match: %.1f%%\n", stats.AvgPrice, stats.AvgMatch)
	if stats.LastRun != nil {
		fmt.Printf("Last run: %s (%s)\n", stats.LastRun.RunID, stats.LastRun.Status)
	}
}
