package bus

import (
	"sync"
	"time"

	"github.com/glyph-labs/glyphflow/runtime"
)

// ThrottleConfig controls the behavior of ThrottledHandler.
type ThrottleConfig struct {
	// CoalesceInterval is how often to flush coalesced trigger events.
	// Default: 100ms
	CoalesceInterval time.Duration
}

// ThrottledHandler wraps a runtime.EventHandler and coalesces high-frequency
// trigger.enqueued events. A fast timer node can fire hundreds of triggers a
// second; an observer usually only needs to know the node is firing, not see
// every enqueue. Other event kinds pass through immediately. Trigger events
// are coalesced per instance: only the latest event for each instance is
// kept within each coalesce interval, annotated with a "coalesced" payload
// count when more than one was absorbed. A background ticker flushes at the
// configured interval.
type ThrottledHandler struct {
	next     runtime.EventHandler
	interval time.Duration

	mu      sync.Mutex
	pending map[runtime.InstanceID]coalesced // instance -> latest trigger event
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type coalesced struct {
	event runtime.Event
	count int
}

// NewThrottledHandler creates a new ThrottledHandler that wraps the given
// handler and coalesces EventTriggerEnqueued events at the configured interval.
func NewThrottledHandler(next runtime.EventHandler, cfg ThrottleConfig) *ThrottledHandler {
	interval := cfg.CoalesceInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	th := &ThrottledHandler{
		next:     next,
		interval: interval,
		pending:  make(map[runtime.InstanceID]coalesced),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go th.run()

	return th
}

// Handle sends an event through the throttled handler. Non-trigger events
// pass through immediately to the wrapped handler. Trigger events
// (EventTriggerEnqueued) are coalesced: only the latest per instance is kept
// and flushed at the configured interval.
func (th *ThrottledHandler) Handle(e runtime.Event) {
	if e.Kind != runtime.EventTriggerEnqueued {
		// Non-trigger events pass through immediately.
		th.next(e)
		return
	}

	// Trigger events are coalesced per instance.
	th.mu.Lock()
	defer th.mu.Unlock()

	if th.closed {
		return
	}

	c := th.pending[e.Instance]
	c.event = e
	c.count++
	th.pending[e.Instance] = c
}

// Close flushes any pending trigger events and stops the background ticker.
// It is safe to call Close multiple times.
func (th *ThrottledHandler) Close() {
	th.mu.Lock()
	if th.closed {
		th.mu.Unlock()
		return
	}
	th.closed = true
	th.mu.Unlock()

	// Signal the background goroutine to stop.
	close(th.stopCh)

	// Wait for the background goroutine to finish.
	<-th.doneCh
}

// run is the background goroutine that periodically flushes coalesced triggers.
func (th *ThrottledHandler) run() {
	defer close(th.doneCh)

	ticker := time.NewTicker(th.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			th.flush()
		case <-th.stopCh:
			// Flush any remaining pending events before exiting.
			th.flush()
			return
		}
	}
}

// flush sends all pending coalesced trigger events to the wrapped handler
// and clears the pending map.
func (th *ThrottledHandler) flush() {
	th.mu.Lock()
	if len(th.pending) == 0 {
		th.mu.Unlock()
		return
	}

	// Swap out the pending map so we can release the lock during delivery.
	toFlush := th.pending
	th.pending = make(map[runtime.InstanceID]coalesced)
	th.mu.Unlock()

	for _, c := range toFlush {
		e := c.event
		if c.count > 1 {
			e = e.WithPayload("coalesced", c.count)
		}
		th.next(e)
	}
}
