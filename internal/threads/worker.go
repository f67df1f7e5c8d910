package threads

import (
	"context"
	"runtime"
)

// StartManaged runs fn on a dedicated kernel thread registered under the
// given name. The goroutine is pinned with runtime.LockOSThread for its
// whole lifetime, so scheduling attributes applied to the thread stick to
// fn. The registration is dropped when fn returns.
func (r *Registry) StartManaged(ctx context.Context, name string, fn func(context.Context, *Thread)) error {
	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		// Never unlock: a thread that carried real-time attributes must
		// not return to the scheduler pool for other goroutines.

		t, err := r.Register(name)
		errCh <- err
		if err != nil {
			return
		}
		defer r.Unregister(t)
		fn(ctx, t)
	}()
	return <-errCh
}

// Park blocks until the context is cancelled. It is the body for worker
// threads that exist only to hold scheduling attributes; they show as
// suspended in listings for as long as they sit here.
func Park(ctx context.Context, t *Thread) {
	t.SetSuspended(true)
	defer t.SetSuspended(false)
	<-ctx.Done()
}
