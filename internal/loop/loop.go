// Package loop provides a single-threaded event loop. Every callback posted
// to a Loop runs on the goroutine that called Run, one at a time, so state
// touched only from callbacks needs no locking.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Invoke when the loop is no longer running.
var ErrStopped = errors.New("loop: stopped")

// Loop serializes callbacks onto a single goroutine.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once

	mu  sync.Mutex
	err error
}

// New creates a Loop. queueSize bounds the number of pending callbacks
// before Post blocks; values <= 0 use 64.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Run dispatches callbacks until Quit is called or ctx is cancelled.
// It returns the error passed to Quit, or nil when ctx ended the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Quit(nil)
			return l.Err()
		case <-l.done:
			return l.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Quit stops the loop. Only the first call has an effect; its err is what
// Run returns. Safe to call from any goroutine, including loop callbacks.
func (l *Loop) Quit(err error) {
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
	})
}

// Err returns the error the loop was stopped with.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed once the loop has been asked to stop.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop and returns immediately. It reports
// false if the loop has stopped and fn will never run.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Invoke runs fn on the loop and waits for it to finish.
// It must not be called from a loop callback.
func (l *Loop) Invoke(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// fn may still have been dequeued before the loop noticed done.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// AddTimeout calls fn on the loop every interval for as long as fn returns
// true. Returning false is the only way to cancel the timeout. The next
// interval starts after fn has returned.
func (l *Loop) AddTimeout(interval time.Duration, fn func() bool) {
	time.AfterFunc(interval, func() {
		posted := l.Post(func() {
			if fn() {
				l.AddTimeout(interval, fn)
			}
		})
		if !posted {
			slog.Debug("[LOOP] timeout dropped, loop stopped", "interval", interval)
		}
	})
}
