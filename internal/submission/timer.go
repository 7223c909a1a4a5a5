package submission

import (
	"context"
	"time"
)

// AutoSubmitTimer forces a submit when a timed test's limit runs out. The
// fire is non-cancelable once the deadline passes, but the timer itself must
// be stopped when the student leaves the flow so no stray submit lands later.
type AutoSubmitTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartAutoSubmit schedules fire after d. Cancelling the returned timer (or
// the parent context) before the deadline suppresses the submit.
func StartAutoSubmit(ctx context.Context, d time.Duration, fire func(ctx context.Context)) *AutoSubmitTimer {
	ctx, cancel := context.WithCancel(ctx)
	t := &AutoSubmitTimer{cancel: cancel, done: make(chan struct{})}
	timer := time.NewTimer(d)
	go func() {
		defer close(t.done)
		defer timer.Stop()
		select {
		case <-timer.C:
			fire(context.WithoutCancel(ctx))
		case <-ctx.Done():
		}
	}()
	return t
}

// Stop cancels a pending auto-submit and waits for the goroutine to exit. A
// fire already in flight completes.
func (t *AutoSubmitTimer) Stop() {
	t.cancel()
	<-t.done
}
