package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done, err := l.Start(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Start() = %v", err)
	}
	t.Cleanup(cancel)
	return l, cancel, done
}

func TestPostBeforeRunIsRejected(t *testing.T) {
	l := NewLoop(nil)
	if err := l.Post(func(context.Context) {}); !errors.Is(err, ErrLoopNotRunning) {
		t.Fatalf("Post() = %v, want ErrLoopNotRunning", err)
	}
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l, _, _ := startLoop(t)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		if err := l.Post(func(context.Context) {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Post(%d) = %v", i, err)
		}
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("task order %v, want ascending", got)
		}
	}
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	l, _, _ := startLoop(t)

	ran := make(chan struct{})
	_ = l.Post(func(context.Context) { panic("boom") })
	_ = l.Post(func(context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("task after panic never ran")
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	l, cancel, done := startLoop(t)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if err := l.Post(func(context.Context) {}); !errors.Is(err, ErrLoopNotRunning) {
		t.Fatalf("Post after stop = %v, want ErrLoopNotRunning", err)
	}
}

func TestRunTwiceFails(t *testing.T) {
	l, _, _ := startLoop(t)
	if err := l.Run(context.Background()); err == nil {
		t.Fatalf("second Run() returned nil")
	}
	if _, err := l.Start(context.Background()); err == nil {
		t.Fatalf("second Start() returned nil")
	}
}

func TestRunBlocksUntilCancel(t *testing.T) {
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !l.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("loop did not start")
		}
		time.Sleep(time.Millisecond)
	}
	ran := make(chan struct{})
	if err := l.Post(func(context.Context) { close(ran) }); err != nil {
		t.Fatalf("Post() = %v", err)
	}
	<-ran

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

type countingHub struct {
	mu    sync.Mutex
	calls []string
	seen  chan struct{}
}

func (c *countingHub) Broadcast(msg string) int {
	c.mu.Lock()
	c.calls = append(c.calls, msg)
	c.mu.Unlock()
	if c.seen != nil {
		c.seen <- struct{}{}
	}
	return 1
}

func (c *countingHub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestNotifyChangedDropsWhenLoopStopped(t *testing.T) {
	h := &countingHub{}
	b := New(NewLoop(nil), h, "update", nil, nil)

	b.NotifyChanged() // must neither block nor panic

	if h.count() != 0 {
		t.Fatalf("hub broadcast %d times with loop stopped", h.count())
	}
}

func TestNotifyChangedBroadcastsOnLoop(t *testing.T) {
	l, _, _ := startLoop(t)
	h := &countingHub{seen: make(chan struct{}, 8)}
	b := New(l, h, "update", nil, nil)

	b.NotifyChanged()
	b.NotifyChanged()

	for i := 0; i < 2; i++ {
		select {
		case <-h.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("broadcast %d never ran", i+1)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) != 2 || h.calls[0] != "update" {
		t.Fatalf("broadcast calls = %v", h.calls)
	}
}

type failingPoster struct{}

func (failingPoster) Post(Task) error { return errors.New("queue exploded") }

func TestNotifyChangedSwallowsSchedulingErrors(t *testing.T) {
	h := &countingHub{}
	New(failingPoster{}, h, "update", nil, nil).NotifyChanged()
	if h.count() != 0 {
		t.Fatalf("unexpected broadcast")
	}
}
