// Package oracle snapshots per-chain gas prices and the native token price
// used for cost estimation. Reads never fail; missing data falls back to the
// defaults in package yield.
package oracle

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	DefaultCacheTTL = 30 * time.Second
	fetchTimeout    = 5 * time.Second
)

// PriorityFeeWei is added on top of the base gas price.
var PriorityFeeWei = big.NewInt(2_000_000_000)

type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

type NativePricer interface {
	NativePriceUSD(ctx context.Context) (float64, error)
}

type cachedGas struct {
	price *big.Int
	at    time.Time
}

// Oracle serves gas quotes with a short cache.
type Oracle struct {
	rpcs   map[yield.Chain]GasPricer
	prices NativePricer
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	gas      map[yield.Chain]cachedGas
	native   float64
	nativeAt time.Time
}

// New creates an Oracle. Chains without a GasPricer and a nil prices client
// always use defaults.
func New(rpcs map[yield.Chain]GasPricer, prices NativePricer, logger *slog.Logger) *Oracle {
	return &Oracle{
		rpcs:   rpcs,
		prices: prices,
		logger: logger,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		gas:    make(map[yield.Chain]cachedGas),
	}
}

// Quote returns gas prices for chains and the native token price.
func (o *Oracle) Quote(ctx context.Context, chains ...yield.Chain) yield.GasQuote {
	q := yield.GasQuote{GasPrices: make(map[yield.Chain]*big.Int, len(chains))}
	var qmu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, c := range chains {
		c := c
		g.Go(func() error {
			if p := o.gasPrice(gctx, c); p != nil {
				qmu.Lock()
				q.GasPrices[c] = p
				qmu.Unlock()
			}
			return nil
		})
	}
	g.Go(func() error {
		q.NativePriceUSD = o.nativePrice(gctx)
		return nil
	})
	_ = g.Wait()
	return q
}

func (o *Oracle) gasPrice(ctx context.Context, c yield.Chain) *big.Int {
	o.mu.Lock()
	if e, ok := o.gas[c]; ok && o.now().Sub(e.at) < o.ttl {
		o.mu.Unlock()
		return e.price
	}
	o.mu.Unlock()

	rpc, ok := o.rpcs[c]
	if !ok {
		metrics.OracleFallbackTotal.WithLabelValues("gas").Inc()
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	base, err := rpc.GasPrice(ctx)
	if err != nil {
		o.logger.Warn("gas price unavailable, using default", "chain", c.String(), "error", err)
		metrics.OracleFallbackTotal.WithLabelValues("gas").Inc()
		return nil
	}
	price := new(big.Int).Add(base, PriorityFeeWei)

	o.mu.Lock()
	o.gas[c] = cachedGas{price: price, at: o.now()}
	o.mu.Unlock()
	return price
}

func (o *Oracle) nativePrice(ctx context.Context) float64 {
	o.mu.Lock()
	if o.native > 0 && o.now().Sub(o.nativeAt) < o.ttl {
		p := o.native
		o.mu.Unlock()
		return p
	}
	o.mu.Unlock()

	if o.prices == nil {
		metrics.OracleFallbackTotal.WithLabelValues("price").Inc()
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	p, err := o.prices.NativePriceUSD(ctx)
	if err != nil {
		o.logger.Warn("native price unavailable, using default", "error", err)
		metrics.OracleFallbackTotal.WithLabelValues("price").Inc()
		return 0
	}

	o.mu.Lock()
	o.native, o.nativeAt = p, o.now()
	o.mu.Unlock()
	return p
}
