// Package marketdata: Provider composes Store (Postgres) and Cache (Redis)
// into the read-through Price & Calendar Source, Beta provider and Index
// Membership provider the simulation core consumes, per SPEC_FULL.md §6.
// A nil Cache degrades to Store-only reads -- the same graceful-degradation
// posture the cache layer itself uses when Redis is unreachable.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"dcasim/internal/dca"
	"dcasim/internal/logging"
)

// Provider is the single entry point the HTTP and batch/portfolio layers
// use to resolve bars, beta and membership for a symbol.
type Provider struct {
	store *Store
	cache *Cache
	log   *logging.Logger
}

// NewProvider builds a Provider. cache may be nil to run without a Redis
// tier.
func NewProvider(store *Store, cache *Cache) *Provider {
	return &Provider{store: store, cache: cache, log: logging.Default().WithComponent("marketdata")}
}

// Bars resolves the daily bar window [start, end] for symbol, trying the
// cache first and falling back to Postgres on a miss or a degraded cache.
func (p *Provider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]dca.Bar, error) {
	if p.cache != nil {
		if bars, err := p.cache.GetBars(ctx, symbol, start, end); err == nil {
			return bars, nil
		}
	}

	bars, err := p.store.QueryBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetBars(ctx, symbol, start, end, bars); err != nil {
			p.log.Warn("failed to populate bar cache", "symbol", symbol, "error", err.Error())
		}
	}
	return bars, nil
}

// Beta resolves the current beta for symbol. Returns nil when no beta is
// recorded -- the caller (the Beta Scaler) treats an unavailable beta as
// "scaling disabled for this symbol", not an error.
func (p *Provider) Beta(ctx context.Context, symbol string) (*dca.Beta, error) {
	if p.cache != nil {
		if b, err := p.cache.GetBeta(ctx, symbol); err == nil {
			return b, nil
		}
	}

	b, err := p.store.QueryBeta(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}

	if p.cache != nil {
		if err := p.cache.SetBeta(ctx, symbol, *b); err != nil {
			p.log.Warn("failed to populate beta cache", "symbol", symbol, "error", err.Error())
		}
	}
	return b, nil
}

// HealthCheck pings the store and, if a cache is present, reports its
// circuit-breaker state (no ping), returning one error per dependency keyed
// by name -- used by the /healthz liveness endpoint.
func (p *Provider) HealthCheck(ctx context.Context) map[string]error {
	checks := map[string]error{
		"postgres": p.store.HealthCheck(ctx),
	}
	if p.cache != nil {
		if !p.cache.IsHealthy() {
			checks["redis"] = fmt.Errorf("cache circuit breaker open")
		} else {
			checks["redis"] = nil
		}
	}
	return checks
}

// Membership resolves every index-constituency window recorded for symbol.
func (p *Provider) Membership(ctx context.Context, symbol string) ([]dca.IndexMembership, error) {
	if p.cache != nil {
		if w, err := p.cache.GetMembership(ctx, symbol); err == nil {
			return w, nil
		}
	}

	windows, err := p.store.QueryMembership(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetMembership(ctx, symbol, windows); err != nil {
			p.log.Warn("failed to populate membership cache", "symbol", symbol, "error", err.Error())
		}
	}
	return windows, nil
}
