package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	CacheKey        = "yield_opportunities"
	DefaultCacheTTL = 5 * time.Minute

	fetchTimeout = 30 * time.Second
)

// Fetcher returns raw pools from an upstream yield index.
type Fetcher interface {
	FetchPools(ctx context.Context) ([]Pool, error)
}

// Snapshot persists the last good catalog so a cold process can serve
// something while the feed is down.
type Snapshot interface {
	Load(ctx context.Context) ([]yield.Opportunity, error)
	Save(ctx context.Context, opps []yield.Opportunity) error
}

// Status describes the catalog cache for health reporting.
type Status struct {
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"lastError,omitempty"`
}

// Catalog caches normalized opportunities. Concurrent refreshes collapse into
// a single upstream fetch and a failed fetch serves the previous result.
type Catalog struct {
	fetcher  Fetcher
	snapshot Snapshot
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	opps      []yield.Opportunity
	fetchedAt time.Time
	lastErr   error
}

// New creates a Catalog. snapshot may be nil.
func New(fetcher Fetcher, snapshot Snapshot, logger *slog.Logger) *Catalog {
	return &Catalog{
		fetcher:  fetcher,
		snapshot: snapshot,
		logger:   logger,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
	}
}

// SetTTL overrides the cache window.
func (c *Catalog) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl = ttl
	}
}

// Opportunities returns the cached catalog, refreshing it when older than the
// cache window. It never fails: an unavailable feed yields the last good
// result, then the persisted snapshot, then an empty list.
func (c *Catalog) Opportunities(ctx context.Context) []yield.Opportunity {
	c.mu.RLock()
	opps, fetchedAt := c.opps, c.fetchedAt
	c.mu.RUnlock()

	if !fetchedAt.IsZero() && c.now().Sub(fetchedAt) < c.ttl {
		metrics.CatalogServedTotal.WithLabelValues("fresh").Inc()
		return clone(opps)
	}

	fresh, err := c.refresh(ctx)
	if err == nil {
		metrics.CatalogServedTotal.WithLabelValues("fresh").Inc()
		return clone(fresh)
	}

	if !fetchedAt.IsZero() {
		c.logger.Warn("serving stale catalog", "age", c.now().Sub(fetchedAt).String(), "error", err)
		metrics.CatalogServedTotal.WithLabelValues("stale").Inc()
		return clone(opps)
	}

	if c.snapshot != nil {
		snap, serr := c.snapshot.Load(ctx)
		if serr != nil {
			c.logger.Warn("catalog snapshot load failed", "error", serr)
		} else if len(snap) > 0 {
			metrics.CatalogServedTotal.WithLabelValues("snapshot").Inc()
			return snap
		}
	}

	metrics.CatalogServedTotal.WithLabelValues("empty").Inc()
	return []yield.Opportunity{}
}

// Refresh forces an upstream fetch regardless of cache age.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

func (c *Catalog) refresh(ctx context.Context) ([]yield.Opportunity, error) {
	v, err, _ := c.group.Do(CacheKey, func() (any, error) {
		// Waiters share this fetch, so it must outlive the caller that started it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		start := time.Now()
		pools, err := c.fetcher.FetchPools(ctx)
		metrics.CatalogFetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CatalogFetchTotal.WithLabelValues("error").Inc()
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			return nil, yield.NewSourceError("yield feed", err)
		}
		metrics.CatalogFetchTotal.WithLabelValues("success").Inc()

		now := c.now()
		opps := Normalize(pools, now)
		c.mu.Lock()
		c.opps = opps
		c.fetchedAt = now
		c.lastErr = nil
		c.mu.Unlock()

		metrics.OpportunitiesCount.Set(float64(len(opps)))
		metrics.CatalogLastSuccess.Set(float64(now.Unix()))
		c.logger.Info("catalog refreshed", "pools", len(pools), "opportunities", len(opps))

		if c.snapshot != nil {
			if err := c.snapshot.Save(ctx, opps); err != nil {
				c.logger.Warn("catalog snapshot save failed", "error", err)
			}
		}
		return opps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]yield.Opportunity), nil
}

// Status reports the cache state.
func (c *Catalog) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Status{
		Count:     len(c.opps),
		FetchedAt: c.fetchedAt,
		Stale:     c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

func clone(opps []yield.Opportunity) []yield.Opportunity {
	out := make([]yield.Opportunity, len(opps))
	copy(out, opps)
	return out
}
