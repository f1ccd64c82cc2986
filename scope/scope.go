// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package scope

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-jstimers/interval"
	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
)

// Scope owns one [oneshot.Registry] and [interval.Timers], see the package
// documentation. It must be constructed using [New].
type Scope struct {
	// Prevent copying
	_ [0]func()

	registry *oneshot.Registry
	timers   *interval.Timers
	logger   *logiface.Logger[logiface.Event]
	env      oneshot.Environment

	wakes      chan oneshot.Event
	wakeNotify chan struct{}
	notify     chan struct{}
	closed     chan struct{}
	done       chan struct{}

	// latestWake is the newest token received, zero once consumed
	latestWake atomic.Uint64

	mu    sync.Mutex
	queue []func()

	closeOnce       sync.Once
	loopGoroutineID atomic.Uint64
	running         atomic.Bool
	stopping        atomic.Bool
}

var (
	// compile time assertions

	_ oneshot.Environment = (*Scope)(nil)
)

// New constructs a [Scope], the registry of which schedules wake-ups via
// scheduler. It must be started using [Scope.Run] or [Scope.RunUntilIdle].
func New(scheduler oneshot.Scheduler, opts ...Option) (*Scope, error) {
	options, err := resolveScopeOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &Scope{
		logger: options.logger,
		env:    options.environment,
		wakes:      make(chan oneshot.Event, options.wakeBufferSize),
		wakeNotify: make(chan struct{}, 1),
		notify:     make(chan struct{}, 1),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	registryOpts := append([]oneshot.Option{oneshot.WithLogger(options.logger)}, options.registryOpts...)
	registryOpts = append(registryOpts, oneshot.WithEnvironment(x))
	if x.registry, err = oneshot.New(scheduler, registryOpts...); err != nil {
		return nil, err
	}
	if err := x.registry.SetupScheduling(x.wakes); err != nil {
		return nil, err
	}

	timersOpts := append([]interval.Option{interval.WithLogger(options.logger)}, options.timersOpts...)
	if x.timers, err = interval.New(x.registry, timersOpts...); err != nil {
		return nil, err
	}

	return x, nil
}

// Registry returns the registry owned by the scope.
func (x *Scope) Registry() *oneshot.Registry { return x.registry }

// Timers returns the timers owned by the scope.
func (x *Scope) Timers() *interval.Timers { return x.timers }

// CanContinue implements [oneshot.Environment], returning false once the
// scope has begun tearing down, or per [WithEnvironment].
func (x *Scope) CanContinue() bool {
	if x.stopping.Load() {
		return false
	}
	return x.env == nil || x.env.CanContinue()
}

// Done is closed once the loop has exited.
func (x *Scope) Done() <-chan struct{} { return x.done }

// Idle reports whether no timers are pending. It must be called from the
// loop goroutine.
func (x *Scope) Idle() bool { return x.registry.Len() == 0 }

// Submit queues fn to be run on the loop goroutine. It never blocks, and
// may be called from any goroutine, including the loop goroutine.
func (x *Scope) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	select {
	case <-x.closed:
		return ErrScopeClosed
	case <-x.done:
		return ErrScopeClosed
	default:
	}

	x.mu.Lock()
	x.queue = append(x.queue, fn)
	x.mu.Unlock()

	select {
	case x.notify <- struct{}{}:
	default:
	}

	return nil
}

// Close begins tearing down the scope, aborting any in-progress firing pass
// (see [Scope.CanContinue]), and stopping the loop. Queued tasks are
// discarded. It is safe to call Close multiple times, from any goroutine.
func (x *Scope) Close() error {
	x.closeOnce.Do(func() {
		x.stopping.Store(true)
		close(x.closed)
		x.logger.Debug().Log("scope: closing")
	})
	return nil
}

// Run runs the loop until ctx is canceled, or the scope is closed. It
// returns nil if closed, or the context's error.
func (x *Scope) Run(ctx context.Context) error {
	return x.run(ctx, false)
}

// RunUntilIdle is [Scope.Run], but also returns nil once there are no
// queued tasks, and no pending timers.
func (x *Scope) RunUntilIdle(ctx context.Context) error {
	return x.run(ctx, true)
}

func (x *Scope) run(ctx context.Context, untilIdle bool) error {
	if x.isLoopGoroutine() {
		return ErrReentrantRun
	}
	if !x.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(x.done)

	x.loopGoroutineID.Store(getGoroutineID())
	defer x.loopGoroutineID.Store(0)

	x.logger.Debug().Log("scope: loop started")
	defer x.logger.Debug().Log("scope: loop stopped")

	go x.receiveWakes()

	for {
		if untilIdle && x.Idle() && x.queueLen() == 0 {
			x.stopping.Store(true)
			return nil
		}

		select {
		case <-ctx.Done():
			x.stopping.Store(true)
			return ctx.Err()

		case <-x.closed:
			return nil

		case <-x.notify:
			x.drainQueue()

		case <-x.wakeNotify:
			if id := oneshot.EventID(x.latestWake.Swap(0)); id != 0 {
				x.registry.Fire(id)
			}
		}
	}
}

// receiveWakes keeps the reply channel drained until the loop exits, even
// while the loop is busy, so that the wake source never finds it full.
// Tokens increase monotonically, and only the newest issued is accepted by
// the registry, so only the newest received is retained.
func (x *Scope) receiveWakes() {
	for {
		select {
		case <-x.done:
			return

		case event := <-x.wakes:
			x.logger.Trace().
				Uint64("event_id", uint64(event.EventID)).
				Stringer("source", event.Source).
				Log("scope: wake-up received")

			for {
				latest := x.latestWake.Load()
				if uint64(event.EventID) <= latest ||
					x.latestWake.CompareAndSwap(latest, uint64(event.EventID)) {
					break
				}
			}

			select {
			case x.wakeNotify <- struct{}{}:
			default:
			}
		}
	}
}

func (x *Scope) queueLen() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.queue)
}

// drainQueue runs the tasks queued at the time of the call, leaving any
// queued by those tasks for the next pass.
func (x *Scope) drainQueue() {
	x.mu.Lock()
	tasks := x.queue
	x.queue = nil
	x.mu.Unlock()

	for i, fn := range tasks {
		if x.stopping.Load() {
			x.logger.Debug().
				Int("discarded", len(tasks)-i).
				Log("scope: discarding queued tasks")
			return
		}
		x.safeExecute(fn)
	}
}

// safeExecute runs fn, recovering and logging any panic.
func (x *Scope) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Any("panic", r).
				Log("scope: task panicked")
		}
	}()
	fn()
}

func (x *Scope) isLoopGoroutine() bool {
	id := x.loopGoroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

// getGoroutineID parses the current goroutine's ID from its stack header.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
