package async

import (
	"context"
	"time"

	"github.com/quillback/taskdeck/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery and a timeout.
// The child context keeps the parent's values (request id, logger) but
// not its cancellation, so the task outlives the request that started
// it. Panics and errors are logged through the context logger, never
// propagated.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	detached := context.WithoutCancel(parentCtx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		logger := observability.FromContext(ctx).WithField("task", taskName)
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("Background task failed")
		}
	}()
}
