package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacer_Waits(t *testing.T) {
	var waits []time.Duration
	p := DefaultPacer()
	p.Sleep = recordingSleep(&waits)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		assert.NoError(t, p.BeforeLocation(ctx))
		assert.NoError(t, p.AfterListing(ctx))
	}
	assert.NoError(t, p.BetweenSites(ctx))

	for i := 0; i < 100; i += 2 {
		assert.GreaterOrEqual(t, waits[i], 2*time.Second)
		assert.LessOrEqual(t, waits[i], 4*time.Second)
		assert.GreaterOrEqual(t, waits[i+1], time.Second)
		assert.LessOrEqual(t, waits[i+1], 2*time.Second)
	}
	assert.Equal(t, 5*time.Second, waits[100])
}

func TestPacer_NilDoesNotWait(t *testing.T) {
	var p *Pacer
	assert.NoError(t, p.BeforeLocation(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.AfterListing(ctx), context.Canceled)
}

func TestPacer_RealSleepHonoursCancel(t *testing.T) {
	p := &Pacer{BetweenSitesDelay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.ErrorIs(t, p.BetweenSites(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
}
