package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ResilientFetcher composes a single-attempt transport with a retry
// policy and a circuit breaker. The breaker is checked before every call
// and records one failure per exhausted retry budget.
type ResilientFetcher struct {
	Transport Fetcher
	Policy    RetryPolicy
	Breaker   *Breaker
	logger    *zap.Logger
}

func NewResilientFetcher(transport Fetcher, policy RetryPolicy, breaker *Breaker, logger *zap.Logger) *ResilientFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &ResilientFetcher{
		Transport: transport,
		Policy:    policy,
		Breaker:   breaker,
		logger:    logger,
	}
	if f.Policy.OnRetry == nil {
		f.Policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			f.logger.Warn("fetch attempt failed, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
	}
	return f
}

// NewSourceFetcher builds the transport, retry policy and breaker described
// by a source's fetch settings.
func NewSourceFetcher(src SourceConfig, logger *zap.Logger) *ResilientFetcher {
	cfg := src.Fetch

	var transport Fetcher
	if cfg.Transport == "colly" {
		transport = NewCollyFetcher(cfg)
	} else {
		transport = NewHTTPFetcher(cfg)
	}

	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelayMS > 0 {
		policy.BaseDelay = time.Duration(cfg.BaseDelayMS) * time.Millisecond
	}
	if cfg.MaxDelayMS > 0 {
		policy.MaxDelay = time.Duration(cfg.MaxDelayMS) * time.Millisecond
	}
	if cfg.RateLimitDelayMS > 0 {
		policy.RateLimitDelay = time.Duration(cfg.RateLimitDelayMS) * time.Millisecond
	}

	breaker := NewBreaker(src.Name, cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownS)*time.Second)

	if logger == nil {
		logger = zap.NewNop()
	}
	return NewResilientFetcher(transport, policy, breaker, logger.With(zap.String("source", src.Name)))
}

func (f *ResilientFetcher) Fetch(ctx context.Context, url string) (*FetchedDocument, error) {
	if f.Breaker != nil {
		if err := f.Breaker.Allow(); err != nil {
			return nil, err
		}
	}

	doc, err := DoWithResult(ctx, f.Policy, func(ctx context.Context) (*FetchedDocument, error) {
		return f.Transport.Fetch(ctx, url)
	})
	if err != nil {
		// an interrupted or timed-out run says nothing about the source's health
		if f.Breaker != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			f.Breaker.Failure()
			if f.Breaker.Open() {
				f.logger.Error("circuit opened", zap.Int("failures", f.Breaker.Failures()))
			}
		}
		return nil, err
	}

	if f.Breaker != nil {
		f.Breaker.Success()
	}
	return doc, nil
}

// Allow reports a *CircuitOpenError while the source's breaker is open.
func (f *ResilientFetcher) Allow() error {
	if f.Breaker == nil {
		return nil
	}
	return f.Breaker.Allow()
}
