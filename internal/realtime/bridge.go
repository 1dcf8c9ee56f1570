package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/cache"
)

// invalidations maps a table to the cache keys its writes make untrustworthy. Each
// table's own root comes first; the rest are views that embed or derive from it.
var invalidations = map[string][]cache.Key{
	TablePatients: {
		cache.Root(cache.KindPatients),
		cache.Root(cache.KindDashboard),
		cache.List(cache.KindAppointments),
		{Kind: cache.KindAppointments, Scope: cache.ScopeDetail},
	},
	TableDoctors: {
		cache.Root(cache.KindDoctors),
		cache.Root(cache.KindDashboard),
		cache.List(cache.KindAppointments),
		{Kind: cache.KindAppointments, Scope: cache.ScopeDetail},
		{Kind: cache.KindAppointments, Scope: cache.ScopeSlots},
	},
	TableAppointments: {
		cache.Root(cache.KindAppointments),
		cache.Root(cache.KindDashboard),
	},
}

// Bridge subscribes to every table's change stream and invalidates the cache on each
// event. Event payloads are never merged into the cache; the next read refetches.
type Bridge struct {
	feed   Feed
	cache  *cache.Cache
	logger zerolog.Logger

	mu   sync.Mutex
	subs []Subscription
}

func NewBridge(feed Feed, c *cache.Cache, logger zerolog.Logger) *Bridge {
	return &Bridge{
		feed:   feed,
		cache:  c,
		logger: logger.With().Str("component", "realtime-bridge").Logger(),
	}
}

// Start opens one subscription per table. If any subscription fails, the ones
// already opened are closed again.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs) > 0 {
		return errors.New("bridge already started")
	}

	for _, table := range Tables {
		sub, err := b.feed.Subscribe(ctx, table, b.Handle)
		if err != nil {
			b.closeLocked()
			return fmt.Errorf("subscribe to %s changes: %w", table, err)
		}
		b.subs = append(b.subs, sub)
	}

	b.logger.Info().Strs("tables", Tables).Msg("realtime bridge started")
	return nil
}

// Stop tears down every subscription. It is safe to call more than once.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.closeLocked()
	b.logger.Info().Msg("realtime bridge stopped")
	return err
}

func (b *Bridge) closeLocked() error {
	var errs []error
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

// Handle applies one change event.
func (b *Bridge) Handle(ev Event) {
	keys, ok := invalidations[ev.Table]
	if !ok {
		b.logger.Warn().Str("table", ev.Table).Str("operation", string(ev.Operation)).Msg("ignoring change on unknown table")
		return
	}

	n := b.cache.Invalidate(keys...)
	b.logger.Debug().
		Str("table", ev.Table).
		Str("operation", string(ev.Operation)).
		Int("invalidated", n).
		Msg("change event applied")
}

// Resync invalidates everything, for use after the feed was disconnected and events
// may have been missed.
func (b *Bridge) Resync() int {
	return b.cache.Invalidate(
		cache.Root(cache.KindPatients),
		cache.Root(cache.KindDoctors),
		cache.Root(cache.KindAppointments),
		cache.Root(cache.KindDashboard),
	)
}
