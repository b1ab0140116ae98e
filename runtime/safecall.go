package runtime

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// contain invokes one plugin capability behind the failure-containment
// barrier. A panic inside fn is caught at this call site, logged, reported
// through the event stream, and converted to a failed call; it never unwinds
// host frames.
func (e *Engine) contain(op string, inst InstanceID, typ string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("op", op).
				Str("type", typ).
				Uint64("instance", uint64(inst)).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("plugin fault contained")
			e.emit(NewEvent(EventFaultContained, inst, typ).
				WithPayload("op", op).
				WithPayload("panic", fmt.Sprint(r)))
			ok = false
		}
	}()
	return fn()
}

// Contain is the standalone containment barrier used for boundary calls made
// outside an engine, such as plugin lifecycle hooks. It reports whether fn
// completed without faulting and returned true.
func Contain(log zerolog.Logger, op string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("op", op).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("plugin fault contained")
			ok = false
		}
	}()
	return fn()
}
