package events

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/domain"
	"gatehouse/internal/geolite"
)

const insertTimeout = 5 * time.Second

var (
	mu      sync.Mutex
	queue   chan domain.SecurityEvent
	done    chan struct{}
	started bool
)

// Start launches the sink worker. Events recorded before Start (or after
// Close) are dropped; the audit log is best-effort by design.
func Start() {
	mu.Lock()
	defer mu.Unlock()

	if started {
		return
	}

	queue = make(chan domain.SecurityEvent, config.EventBufferSize())
	done = make(chan struct{})
	started = true

	go worker(queue, done)
	log.Debug("Security event sink started", "buffer", cap(queue))
}

// Record appends one audit event without ever blocking or failing the
// triggering request. A full buffer drops the event with a warning.
func Record(address, userID, kind, severity, details, endpoint string) {
	event := domain.SecurityEvent{
		Address:  address,
		UserID:   userID,
		Kind:     kind,
		Severity: severity,
		Details:  details,
		Endpoint: endpoint,
	}

	mu.Lock()
	target := queue
	running := started
	mu.Unlock()

	if !running {
		log.Debug("Security event sink not running, dropping event", "kind", kind)
		return
	}

	select {
	case target <- event:
	default:
		log.Warn("Security event buffer full, dropping event", "kind", kind, "address", address)
	}
}

// Close stops accepting events and drains what is already buffered.
func Close() {
	mu.Lock()
	if !started {
		mu.Unlock()
		return
	}
	started = false
	target := queue
	finished := done
	queue = nil
	mu.Unlock()

	close(target)
	<-finished
}

func worker(events <-chan domain.SecurityEvent, finished chan<- struct{}) {
	defer close(finished)

	for event := range events {
		event.Country = geolite.Country(event.Address)

		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := database.InsertSecurityEvent(ctx, event); err != nil {
			log.Warn("Failed to persist security event", "kind", event.Kind, "error", err)
		}
		cancel()
	}
}
