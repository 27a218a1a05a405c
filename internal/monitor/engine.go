// Package monitor watches wallets in the background: it re-analyzes every
// watched wallet on an interval, alerts on newly approved rebalance intents
// and sends a scheduled digest.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/web3-frozen/stable-yield/internal/dedup"
	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/store"
	"github.com/web3-frozen/stable-yield/internal/telegram"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	DefaultPollInterval = 5 * time.Minute
	// 08:00 HKT.
	DefaultDigestCron = "0 0 * * *"
)

// AlertFunc sends a message to a Telegram chat.
type AlertFunc func(chatID int64, message string) error

type WatchList interface {
	ListWatchers(ctx context.Context) ([]store.Watcher, error)
}

type Analyst interface {
	Analyze(ctx context.Context, address string) (yield.Analysis, error)
}

// Refresher forces a catalog refresh ahead of a poll round.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Deduper interface {
	AlreadySent(ctx context.Context, key string) bool
	Record(ctx context.Context, key string, ttl time.Duration)
}

// Engine polls watched wallets and delivers alerts.
type Engine struct {
	watchers WatchList
	analyst  Analyst
	catalog  Refresher
	dedup    Deduper
	alertFn  AlertFunc
	logger   *slog.Logger
	interval time.Duration
	digest   string
	now      func() time.Time
}

// NewEngine creates an Engine. catalog may be nil.
func NewEngine(w WatchList, analyst Analyst, catalog Refresher, d Deduper, alertFn AlertFunc, logger *slog.Logger) *Engine {
	return &Engine{
		watchers: w,
		analyst:  analyst,
		catalog:  catalog,
		dedup:    d,
		alertFn:  alertFn,
		logger:   logger,
		interval: DefaultPollInterval,
		digest:   DefaultDigestCron,
		now:      time.Now,
	}
}

// SetSchedule overrides the poll interval and digest cron spec. Empty or
// zero values keep the defaults.
func (e *Engine) SetSchedule(interval time.Duration, digestCron string) {
	if interval > 0 {
		e.interval = interval
	}
	if digestCron != "" {
		e.digest = digestCron
	}
}

// Run polls until ctx is cancelled and sends digests on the cron schedule.
func (e *Engine) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(e.digest, func() { e.SendDigests(ctx) }); err != nil {
		return fmt.Errorf("register digest schedule %q: %w", e.digest, err)
	}
	c.Start()
	defer c.Stop()
	e.logger.Info("monitor started", "interval", e.interval.String(), "digest_cron", e.digest)

	e.Poll(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Poll(ctx)
		}
	}
}

// Poll analyzes every watched wallet once and alerts on approved intents
// not alerted in the last day.
func (e *Engine) Poll(ctx context.Context) {
	if e.catalog != nil {
		if err := e.catalog.Refresh(ctx); err != nil {
			e.logger.Warn("catalog refresh failed", "error", err)
		}
	}

	byAddress, err := e.watchedWallets(ctx)
	if err != nil {
		e.logger.Error("list watchers failed", "error", err)
		return
	}

	for _, address := range sortedKeys(byAddress) {
		a, err := e.analyst.Analyze(ctx, address)
		if err != nil {
			e.logger.Error("analysis failed", "address", address, "error", err)
			continue
		}
		for _, in := range a.RebalanceIntents {
			key := dedup.IntentKey(address, in.ID)
			if e.dedup.AlreadySent(ctx, key) {
				metrics.AlertsDeduplicatedTotal.WithLabelValues("intent").Inc()
				continue
			}
			if e.broadcast("intent", byAddress[address], telegram.FormatIntentAlert(address, in)) {
				e.dedup.Record(ctx, key, dedup.IntentAlertTTL)
			}
		}
	}
}

// SendDigests sends each watcher a summary of every wallet it watches, at
// most once per chat and wallet per day.
func (e *Engine) SendDigests(ctx context.Context) {
	byAddress, err := e.watchedWallets(ctx)
	if err != nil {
		e.logger.Error("list watchers failed", "error", err)
		return
	}
	today := e.now()
	for _, address := range sortedKeys(byAddress) {
		a, err := e.analyst.Analyze(ctx, address)
		if err != nil {
			e.logger.Error("digest analysis failed", "address", address, "error", err)
			continue
		}
		msg := telegram.FormatDigest(address, a)
		for _, chatID := range byAddress[address] {
			key := dedup.DigestKey(chatID, today) + ":" + address
			if e.dedup.AlreadySent(ctx, key) {
				metrics.AlertsDeduplicatedTotal.WithLabelValues("digest").Inc()
				continue
			}
			if e.broadcast("digest", []int64{chatID}, msg) {
				e.dedup.Record(ctx, key, 24*time.Hour)
			}
		}
	}
	e.logger.Info("digests sent", "wallets", len(byAddress))
}

func (e *Engine) watchedWallets(ctx context.Context) (map[string][]int64, error) {
	watchers, err := e.watchers.ListWatchers(ctx)
	if err != nil {
		return nil, err
	}
	byAddress := make(map[string][]int64)
	for _, w := range watchers {
		byAddress[w.Address] = append(byAddress[w.Address], w.TgChatID)
	}
	metrics.WatchedAddresses.Set(float64(len(byAddress)))
	return byAddress, nil
}

// broadcast reports whether at least one chat received the message.
func (e *Engine) broadcast(kind string, chatIDs []int64, msg string) bool {
	delivered := false
	for _, chatID := range chatIDs {
		if err := e.alertFn(chatID, msg); err != nil {
			metrics.AlertsFailedTotal.WithLabelValues(kind).Inc()
			e.logger.Error("send alert failed", "type", kind, "chat_id", chatID, "error", err)
			continue
		}
		metrics.AlertsSentTotal.WithLabelValues(kind).Inc()
		delivered = true
	}
	return delivered
}

func sortedKeys(m map[string][]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
