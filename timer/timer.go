// Package timer implements the host-owned timer subsystem. Timers fire
// periodically on host-managed timing goroutines; destroying a timer
// synchronizes with any in-flight callback, so after Destroy returns no
// further firing can occur. Hot reload and instance teardown depend on that
// guarantee.
package timer

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/core"
)

// standard five-field cron parser, matching the schedule syntax accepted
// from plugins.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// entry is one registered timer. Its mutex is the destroy fence: callbacks
// run with mu held, and Destroy flips stopped under the same mutex, so a
// returned Destroy means no callback body is running or will run.
type entry struct {
	mu      sync.Mutex
	stopped bool
	fn      func()

	cancel func() // stops the ticker goroutine or removes the cron job
}

// fire runs the callback once, behind the containment barrier: a fault in a
// timer callback is logged and swallowed like any other boundary fault.
func (t *entry) fire(log zerolog.Logger, handle core.TimerHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Uint64("timer", uint64(handle)).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("timer callback fault contained")
		}
	}()
	t.fn()
}

// Service maps opaque timer handles to callback registrations.
// Safe for concurrent use from the graph loop and plugin-driven threads.
type Service struct {
	log zerolog.Logger

	mu     sync.Mutex
	timers map[core.TimerHandle]*entry
	nextID core.TimerHandle
	closed bool

	cronOnce sync.Once
	cron     *cron.Cron
}

// NewService creates an empty timer service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log:    log,
		timers: make(map[core.TimerHandle]*entry),
		nextID: 1,
	}
}

// Create registers fn to fire every interval. Returns zero when interval is
// not positive or the service is closed.
func (s *Service) Create(interval time.Duration, fn func()) core.TimerHandle {
	if interval <= 0 || fn == nil {
		return 0
	}

	t := &entry{fn: fn}
	handle, ok := s.add(t)
	if !ok {
		return 0
	}

	stop := make(chan struct{})
	t.cancel = func() { close(stop) }

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.fire(s.log, handle)
			}
		}
	}()

	return handle
}

// CreateCron registers fn on a cron schedule (five-field syntax or
// descriptors such as "@every 5s"). Returns zero when the expression does
// not parse or the service is closed.
func (s *Service) CreateCron(spec string, fn func()) core.TimerHandle {
	if fn == nil {
		return 0
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		s.log.Warn().Str("spec", spec).Err(err).Msg("invalid cron expression")
		return 0
	}

	t := &entry{fn: fn}
	handle, ok := s.add(t)
	if !ok {
		return 0
	}

	runner := s.cronRunner()
	entryID := runner.Schedule(schedule, cron.FuncJob(func() {
		t.fire(s.log, handle)
	}))
	t.cancel = func() { runner.Remove(entryID) }

	return handle
}

// Destroy stops a timer. When it returns, the callback is guaranteed not to
// fire again: destruction synchronizes with the timing thread through the
// entry mutex. Destroying an unknown or already destroyed handle is a no-op.
//
// Destroy must not be called from inside the timer's own callback; the
// quiescence fence would wait on the running callback. A one-shot callback
// guards itself and leaves handle destruction to its owner.
func (s *Service) Destroy(handle core.TimerHandle) {
	s.mu.Lock()
	t, ok := s.timers[handle]
	delete(s.timers, handle)
	s.mu.Unlock()
	if !ok {
		return
	}

	// Taking the entry mutex waits out any in-flight callback; setting
	// stopped under it fences all future ones.
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
}

// Len returns the number of live timers.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close destroys all timers and stops the cron runner. The service refuses
// new registrations afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	handles := make([]core.TimerHandle, 0, len(s.timers))
	for h := range s.timers {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.Destroy(h)
	}

	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Service) add(t *entry) (core.TimerHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	handle := s.nextID
	s.nextID++
	s.timers[handle] = t
	return handle, true
}

// cronRunner lazily starts the shared cron scheduler.
func (s *Service) cronRunner() *cron.Cron {
	s.cronOnce.Do(func() {
		c := cron.New(cron.WithParser(cronParser))
		c.Start()
		s.mu.Lock()
		s.cron = c
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron
}
