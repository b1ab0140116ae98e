// Package job implements the host-owned asynchronous work queue. It is a
// cooperative, poll-based primitive: submitters return immediately and
// discover completion by polling, never by blocking. Cancellation is
// best-effort and only suppresses future scheduling.
package job

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/core"
)

// job states, tracked atomically so Poll never takes the service lock path
// for a hot loop.
const (
	statePending int32 = iota
	stateRunning
	stateDone
	stateCanceled
)

type task struct {
	fn         func()
	onComplete func(success bool)
	state      atomic.Int32
}

// finished reports whether the job reached a terminal state.
func (t *task) finished() bool {
	s := t.state.Load()
	return s == stateDone || s == stateCanceled
}

// Service runs submitted work on a fixed pool of host-owned workers.
// Safe for concurrent use from any thread.
type Service struct {
	log zerolog.Logger

	mu     sync.Mutex
	jobs   map[core.JobHandle]*task
	nextID core.JobHandle
	closed bool

	queue chan queued
	wg    sync.WaitGroup
}

// queued pairs a handle with its task so a job stays runnable even after an
// early Poll pruned it from the lookup map.
type queued struct {
	handle core.JobHandle
	t      *task
}

// NewService starts a job service with the given worker count (minimum 1)
// and queue depth (minimum 16).
func NewService(workers, queueDepth int, log zerolog.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 16 {
		queueDepth = 16
	}
	s := &Service{
		log:    log,
		jobs:   make(map[core.JobHandle]*task),
		nextID: 1,
		queue:  make(chan queued, queueDepth),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Submit queues fn for off-thread execution. onComplete, if non-nil, runs on
// the worker after fn returns; success is false when fn faulted or the job
// was canceled before running. Returns zero when the queue is full or the
// service is closed — a soft failure the submitter should log and absorb.
func (s *Service) Submit(fn func(), onComplete func(success bool)) core.JobHandle {
	if fn == nil {
		return 0
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	handle := s.nextID
	s.nextID++
	t := &task{fn: fn, onComplete: onComplete}

	// The send happens under the lock so it is ordered against Close
	// flipping closed: once closed is set, no Submit can reach the
	// channel, and Close only closes it after taking the lock itself.
	select {
	case s.queue <- queued{handle: handle, t: t}:
		s.jobs[handle] = t
		s.mu.Unlock()
		return handle
	default:
		s.mu.Unlock()
		s.log.Warn().Msg("job queue full, submission rejected")
		return 0
	}
}

// Poll reports whether the job has finished, including canceled and faulted
// jobs. Unknown handles report true, so completion stays idempotent after
// the service forgets a finished job.
func (s *Service) Poll(handle core.JobHandle) bool {
	s.mu.Lock()
	t, ok := s.jobs[handle]
	s.mu.Unlock()
	if !ok {
		return true
	}
	if !t.finished() {
		return false
	}

	// A finished job that has been observed can be forgotten.
	s.mu.Lock()
	delete(s.jobs, handle)
	s.mu.Unlock()
	return true
}

// Cancel suppresses future scheduling of a pending job. A job that already
// started runs to completion and still invokes its completion callback.
func (s *Service) Cancel(handle core.JobHandle) {
	s.mu.Lock()
	t, ok := s.jobs[handle]
	s.mu.Unlock()
	if !ok {
		return
	}
	t.state.CompareAndSwap(statePending, stateCanceled)
}

// Close drains the queue and stops the workers. Pending jobs are canceled.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, t := range s.jobs {
		t.state.CompareAndSwap(statePending, stateCanceled)
	}
	s.mu.Unlock()

	close(s.queue)
	s.wg.Wait()
}

func (s *Service) worker() {
	defer s.wg.Done()
	for q := range s.queue {
		s.run(q.handle, q.t)
	}
}

// run executes one job behind the containment barrier and reports
// completion. Canceled jobs skip fn but still report (success=false).
func (s *Service) run(handle core.JobHandle, t *task) {
	success := false
	if t.state.CompareAndSwap(statePending, stateRunning) {
		success = s.invoke(handle, t.fn)
		t.state.Store(stateDone)
	}

	if t.onComplete != nil {
		cb := t.onComplete
		s.contain(handle, "completion callback", func() { cb(success) })
	}
}

// invoke runs the job function, converting a panic into success=false.
func (s *Service) invoke(handle core.JobHandle, fn func()) (ok bool) {
	ok = true
	s.containWith(handle, "job function", fn, func() { ok = false })
	return ok
}

func (s *Service) contain(handle core.JobHandle, what string, fn func()) {
	s.containWith(handle, what, fn, nil)
}

func (s *Service) containWith(handle core.JobHandle, what string, fn func(), onFault func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Uint64("job", uint64(handle)).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msgf("%s fault contained", what)
			if onFault != nil {
				onFault()
			}
		}
	}()
	fn()
}
