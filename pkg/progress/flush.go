package progress

import "context"

// Flush is the result of the durable write scheduled by a mutation.
// Callers may wait on it, inspect it later, or drop it.
type Flush struct {
	done chan struct{}
	err  error
}

func newFlush() *Flush {
	return &Flush{done: make(chan struct{})}
}

// resolvedFlush returns a Flush that has already finished with err.
func resolvedFlush(err error) *Flush {
	f := newFlush()
	f.resolve(err)
	return f
}

func (f *Flush) resolve(err error) {
	f.err = err
	close(f.done)
}

// Done is closed once the write has finished.
func (f *Flush) Done() <-chan struct{} {
	return f.done
}

// Err returns the write error. It is only meaningful after Done is closed.
func (f *Flush) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx ends.
func (f *Flush) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
