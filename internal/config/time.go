package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultBlacklistRefreshInterval = 5 * time.Minute

var (
	blacklistRefreshInterval   atomic.Value
	blacklistIntervalListeners []chan time.Duration
	listenersMu                sync.Mutex
)

func init() {
	blacklistRefreshInterval.Store(defaultBlacklistRefreshInterval)
}

// RecomputeIntervals re-derives every interval from the current config.
// Called after each config update so running loops can reschedule.
func RecomputeIntervals() {
	setBlacklistRefreshInterval(calculateBlacklistRefreshInterval(GetConfig()))
}

// CalculateBetweenTime converts a Timer into a duration, enforcing a one
// second minimum.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func GetBlacklistRefreshInterval() time.Duration {
	return blacklistRefreshInterval.Load().(time.Duration)
}

// BlacklistIntervalUpdates registers a listener channel that receives the
// current interval immediately and every later change.
func BlacklistIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	blacklistIntervalListeners = append(blacklistIntervalListeners, ch)
	listenersMu.Unlock()

	ch <- GetBlacklistRefreshInterval()
	return ch
}

func setBlacklistRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultBlacklistRefreshInterval
	}

	if GetBlacklistRefreshInterval() == interval {
		return
	}

	blacklistRefreshInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range blacklistIntervalListeners {
		select {
		case ch <- interval:
		default:
		}
	}
}

func calculateBlacklistRefreshInterval(cfg Config) time.Duration {
	timer := cfg.BlacklistTimer
	if timer.Days == 0 && timer.Hours == 0 && timer.Minutes == 0 && timer.Seconds == 0 {
		return defaultBlacklistRefreshInterval
	}
	return CalculateBetweenTime(timer)
}
