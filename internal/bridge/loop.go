// Package bridge carries registry change signals from whatever goroutine
// mutates the registry into the serving side's event loop.
//
// The Loop is a single goroutine with a run queue. Anything that touches the
// hub is posted to it as a Task; callers never run hub work inline.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/harrylevesque/aviator/internal/utils"
)

// ErrLoopNotRunning is returned by Post before Run starts or after it returns.
var ErrLoopNotRunning = errors.New("bridge: loop not running")

// Task is a unit of work executed on the loop goroutine.
type Task func(ctx context.Context)

// Loop executes posted tasks one at a time in posting order.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []Task
	running bool
	wake    chan struct{}
}

func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Post enqueues t. It never blocks and never drops a task while the loop is
// running; the queue grows as needed.
func (l *Loop) Post(t Task) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrLoopNotRunning
	}
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default: // a wakeup is already pending
	}
	return nil
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Run drains the queue until ctx is done. Tasks still queued at that point
// are discarded. Run returns an error if the loop is already running.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.begin(); err != nil {
		return err
	}
	return l.serve(ctx)
}

// Start marks the loop running before returning, so Post succeeds as soon as
// Start does, and runs it on a new goroutine. The channel receives Run's
// result.
func (l *Loop) Start(ctx context.Context) (<-chan error, error) {
	if err := l.begin(); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() { done <- l.serve(ctx) }()
	return done, nil
}

func (l *Loop) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("bridge: loop already running")
	}
	l.running = true
	return nil
}

func (l *Loop) serve(ctx context.Context) error {
	l.logger.Debug("bridge: loop started")
	defer func() {
		l.mu.Lock()
		l.running = false
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		l.logger.Debug("bridge: loop stopped", "dropped", dropped)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
		for {
			t, ok := l.next()
			if !ok {
				break
			}
			l.exec(ctx, t)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	t := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return t, true
}

func (l *Loop) exec(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("bridge: task panicked", "panic", r)
		}
	}()
	t(ctx)
}
