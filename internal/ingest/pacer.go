package ingest

import (
	"context"
	"math/rand"
	"time"
)

// Pacer inserts the jittered waits that keep request rates under the
// thresholds listing sites enforce. A nil *Pacer does not wait.
type Pacer struct {
	LocationMin, LocationMax time.Duration
	ListingMin, ListingMax   time.Duration
	BetweenSitesDelay        time.Duration

	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPacer waits 2-4s before each location, 1-2s after each listing and 5s between sites.
func DefaultPacer() *Pacer {
	return &Pacer{
		LocationMin:       2 * time.Second,
		LocationMax:       4 * time.Second,
		ListingMin:        1 * time.Second,
		ListingMax:        2 * time.Second,
		BetweenSitesDelay: 5 * time.Second,
	}
}

func (p *Pacer) BeforeLocation(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.wait(ctx, jitter(p.LocationMin, p.LocationMax))
}

func (p *Pacer) AfterListing(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.wait(ctx, jitter(p.ListingMin, p.ListingMax))
}

func (p *Pacer) BetweenSites(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.wait(ctx, p.BetweenSitesDelay)
}

func (p *Pacer) wait(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// jitter returns a uniformly distributed duration in [lo, hi].
func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}
