package printer

import (
	"context"
	"sync"
)

// outcome is a one-shot result cell. The first Resolve wins; later calls,
// such as duplicate completion notifications, are ignored.
type outcome struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

// Resolve sets the result and reports whether this call set it
func (o *outcome) Resolve(err error) bool {
	resolved := false
	o.once.Do(func() {
		o.err = err
		close(o.done)
		resolved = true
	})
	return resolved
}

// Wait blocks until the cell is resolved or ctx is done
func (o *outcome) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the result once Done is closed
func (o *outcome) Err() error {
	<-o.done
	return o.err
}

// Done returns a channel closed on resolution
func (o *outcome) Done() <-chan struct{} {
	return o.done
}
