package typedevent

import "context"

// Completion is the completion signal returned by InvokeAsync.
// It settles exactly once, after every started handler has settled.
type Completion struct {
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// settled returns a Completion that is already done.
func settled(err error) *Completion {
	c := newCompletion()
	c.resolve(err)
	return c
}

func (c *Completion) resolve(err error) {
	c.err = err
	close(c.done)
}

// Done returns a channel that is closed once the invocation has settled.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err blocks until the invocation settles and returns its error.
func (c *Completion) Err() error {
	<-c.done
	return c.err
}

// Wait blocks until the invocation settles or ctx is done.
// Giving up on ctx does not cancel any running handler.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settled reports whether the invocation has finished, without blocking.
func (c *Completion) Settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
