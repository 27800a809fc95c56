package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// runLoop starts l.Run in the background and returns a channel with its result.
func runLoop(t *testing.T, l *Loop, ctx context.Context) <-chan error {
	t.Helper()
	ch := make(chan error, 1)
	go func() { ch <- l.Run(ctx) }()
	return ch
}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func TestInvokeRunsInOrder(t *testing.T) {
	l := New(0)
	result := runLoop(t, l, context.Background())

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Invoke(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
	}

	l.Quit(nil)
	if err := waitResult(t, result); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want callbacks in posting order", got)
		}
	}
}

func TestCallbacksNeverOverlap(t *testing.T) {
	l := New(0)
	result := runLoop(t, l, context.Background())

	var (
		active  int
		overlap bool
		counter int
	)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Invoke(func() {
				active++
				if active > 1 {
					overlap = true
				}
				counter++
				time.Sleep(time.Millisecond)
				active--
			})
		}()
	}
	wg.Wait()
	l.Quit(nil)
	waitResult(t, result)

	if overlap {
		t.Error("two callbacks ran at the same time")
	}
	if counter != 20 {
		t.Errorf("counter = %d, want 20", counter)
	}
}

func TestQuitErrorIsReturnedByRun(t *testing.T) {
	l := New(0)
	result := runLoop(t, l, context.Background())

	boom := errors.New("boom")
	// Invoke returns once the first Quit has run, either via the finished
	// callback or via done; its error is irrelevant here.
	_ = l.Invoke(func() { l.Quit(boom) })
	l.Quit(errors.New("ignored, second call"))

	if err := waitResult(t, result); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
}

func TestContextCancelStopsLoop(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	result := runLoop(t, l, ctx)

	cancel()
	if err := waitResult(t, result); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	select {
	case <-l.Done():
	default:
		t.Error("Done() should be closed after cancellation")
	}
}

func TestPostAndInvokeAfterQuit(t *testing.T) {
	l := New(0)
	l.Quit(nil)

	if l.Post(func() {}) {
		t.Error("Post() after Quit should report false")
	}
	if err := l.Invoke(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Invoke() after Quit = %v, want ErrStopped", err)
	}
}

func TestAddTimeoutStopsWhenCallbackReturnsFalse(t *testing.T) {
	l := New(0)
	result := runLoop(t, l, context.Background())

	fired := make(chan int, 10)
	calls := 0
	l.AddTimeout(5*time.Millisecond, func() bool {
		calls++
		fired <- calls
		return calls < 3
	})

	for want := 1; want <= 3; want++ {
		select {
		case got := <-fired:
			if got != want {
				t.Fatalf("tick %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("tick %d never fired", want)
		}
	}

	select {
	case got := <-fired:
		t.Errorf("tick %d fired after callback returned false", got)
	case <-time.After(50 * time.Millisecond):
	}

	l.Quit(nil)
	waitResult(t, result)
}
