package blacklist

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/domain"
	"gatehouse/internal/support"
)

const refreshLockKey = "gatehouse:leader:blacklist_refresh"

// cachedEntry mirrors the enforcement-relevant part of a BlacklistEntry. A
// nil until means permanent.
type cachedEntry struct {
	until *time.Time
}

var (
	cache       atomicEntryMap
	refreshOnce singleflight.Group
)

type atomicEntryMap struct {
	val atomic.Value
}

func (a *atomicEntryMap) Load() map[string]cachedEntry {
	raw, ok := a.val.Load().(map[string]cachedEntry)
	if !ok || raw == nil {
		empty := make(map[string]cachedEntry)
		a.val.Store(empty)
		return empty
	}
	return raw
}

func (a *atomicEntryMap) Store(m map[string]cachedEntry) {
	a.val.Store(m)
}

func init() {
	cache.Store(make(map[string]cachedEntry))
}

// Initialize hydrates the in-memory snapshot from the database.
func Initialize(ctx context.Context) error {
	return LoadCache(ctx)
}

// LoadCache replaces the in-memory snapshot with the current database state.
// Concurrent callers share a single reload.
func LoadCache(ctx context.Context) error {
	_, err, _ := refreshOnce.Do("load", func() (interface{}, error) {
		entries, err := database.ListBlacklistEntries(ctx)
		if err != nil {
			return nil, err
		}

		next := make(map[string]cachedEntry, len(entries))
		for _, entry := range entries {
			next[entry.Address] = cachedEntry{until: entry.BlockedUntil}
		}
		cache.Store(next)
		return nil, nil
	})
	return err
}

// IsBlocked reports whether the address has an active ban. Expiry is
// evaluated here against the cached blocked-until, so an entry whose window
// has passed stops blocking without waiting for a refresh. Side-effect free.
func IsBlocked(address string) bool {
	normalized := normalizeAddress(address)
	if normalized == "" {
		return false
	}

	entry, found := cache.Load()[normalized]
	if !found {
		return false
	}
	return entry.until == nil || entry.until.After(time.Now())
}

// Ban persists a new (or refreshed) entry and updates the snapshot.
func Ban(ctx context.Context, entry domain.BlacklistEntry) error {
	if err := database.UpsertBlacklistEntry(ctx, entry); err != nil {
		return err
	}
	return LoadCache(ctx)
}

// Unban removes the entry for the address. Returns false when no row existed.
func Unban(ctx context.Context, address string) (bool, error) {
	removed, err := database.DeleteBlacklistEntry(ctx, address)
	if err != nil {
		return false, err
	}
	if err := LoadCache(ctx); err != nil {
		return removed > 0, err
	}
	return removed > 0, nil
}

// StartRefreshRoutine keeps the snapshot in sync with the database on a
// leader-elected loop, so bans created by another instance (or directly in
// the store) take effect everywhere. Reschedules when the configured
// interval changes.
func StartRefreshRoutine(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	err := support.RunWithLeader(ctx, refreshLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		runRefreshLoop(leaderCtx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Blacklist refresh routine stopped", "error", err)
	}
}

func runRefreshLoop(ctx context.Context) {
	updates := config.BlacklistIntervalUpdates()
	current := config.GetBlacklistRefreshInterval()

	ticker := time.NewTicker(current)
	defer ticker.Stop()

	refresh(ctx, "leader-start")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh(ctx, "scheduled")
		case newInterval := <-updates:
			if newInterval <= 0 || newInterval == current {
				continue
			}
			drainTicker(ticker)
			current = newInterval
			ticker.Reset(current)
			log.Debug("Blacklist refresh rescheduled", "interval", current)
		}
	}
}

func refresh(ctx context.Context, reason string) {
	if err := LoadCache(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Blacklist refresh canceled", "reason", reason)
			return
		}
		log.Error("Blacklist refresh failed", "reason", reason, "error", err)
		return
	}
	log.Debug("Blacklist refresh completed", "reason", reason, "cached_entries", len(cache.Load()))
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}

func normalizeAddress(raw string) string {
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}
