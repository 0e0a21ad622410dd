// internal/browser/context.go
package browser

import "context"

// CombineContext derives a context from sessionCtx, which carries the CDP target, that is
// also canceled when opCtx is done and inherits opCtx's deadline.
func CombineContext(sessionCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(sessionCtx)
	if deadline, ok := opCtx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}

	stop := context.AfterFunc(opCtx, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
