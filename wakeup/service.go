// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package wakeup

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
)

// Service is a wake-up source, see the package documentation. It must be
// constructed using [New].
type Service struct {
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]
	notify chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	ingress []wake

	pending  atomic.Int64
	running  atomic.Bool
	seq      atomic.Uint64
	blocking bool
}

// wake is a single pending request
type wake struct {
	when time.Time
	req  oneshot.Request
	// seq orders requests with the same deadline by arrival
	seq uint64
}

// wakeHeap is a min-heap of pending requests
type wakeHeap []wake

var (
	// compile time assertions

	_ oneshot.Scheduler = (*Service)(nil)
	_ heap.Interface    = (*wakeHeap)(nil)
)

func (h wakeHeap) Len() int { return len(h) }
func (h wakeHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h wakeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *wakeHeap) Push(x any) {
	*h = append(*h, x.(wake))
}

func (h *wakeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = wake{}
	*h = old[:n-1]
	return x
}

// New constructs a [Service]. It must be started using [Service.Run].
func New(opts ...Option) (*Service, error) {
	options, err := resolveServiceOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:   options.logger,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		blocking: options.blocking,
	}, nil
}

// ScheduleWake accepts a request, the deadline of which is calculated
// immediately. It never blocks, and drops the request if the service has
// stopped.
func (x *Service) ScheduleWake(req oneshot.Request) {
	select {
	case <-x.done:
		x.logger.Debug().
			Uint64("event_id", uint64(req.EventID)).
			Log("wakeup: service stopped, dropping request")
		return
	default:
	}

	if req.Delay < 0 {
		req.Delay = 0
	}

	x.mu.Lock()
	x.ingress = append(x.ingress, wake{
		when: time.Now().Add(req.Delay),
		req:  req,
		seq:  x.seq.Add(1),
	})
	x.mu.Unlock()

	select {
	case x.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of requests waiting to be delivered, excluding
// any not yet received by the service goroutine.
func (x *Service) Pending() int { return int(x.pending.Load()) }

// Done is closed once [Service.Run] has returned.
func (x *Service) Done() <-chan struct{} { return x.done }

// Run runs the service until ctx is canceled, returning the context's
// error. It may only be called once.
func (x *Service) Run(ctx context.Context) error {
	if !x.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(x.done)

	x.logger.Debug().Log("wakeup: service started")
	defer x.logger.Debug().Log("wakeup: service stopped")

	var wakes wakeHeap

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var fire <-chan time.Time
		if len(wakes) != 0 {
			delay := time.Until(wakes[0].when)
			if delay < 0 {
				delay = 0
			}
			timer.Reset(delay)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			x.pending.Store(0)
			return ctx.Err()

		case <-x.notify:
			x.mu.Lock()
			ingress := x.ingress
			x.ingress = nil
			x.mu.Unlock()
			for _, w := range ingress {
				heap.Push(&wakes, w)
			}
			x.pending.Store(int64(len(wakes)))

		case now := <-fire:
			for len(wakes) != 0 && !wakes[0].when.After(now) {
				w := heap.Pop(&wakes).(wake)
				x.pending.Store(int64(len(wakes)))
				if !x.deliver(ctx, w.req) {
					x.pending.Store(0)
					return ctx.Err()
				}
			}
		}

		timer.Stop()
	}
}

// deliver sends the event for req, returning false if ctx was canceled.
func (x *Service) deliver(ctx context.Context, req oneshot.Request) bool {
	if req.Reply == nil {
		x.logger.Warning().
			Uint64("event_id", uint64(req.EventID)).
			Stringer("source", req.Source).
			Log("wakeup: dropping request without a reply channel")
		return true
	}

	event := oneshot.Event{
		Source:  req.Source,
		EventID: req.EventID,
	}

	// requests are still accepted while blocked, see ScheduleWake
	if x.blocking {
		select {
		case req.Reply <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	select {
	case req.Reply <- event:
	default:
		x.logger.Warning().
			Uint64("event_id", uint64(req.EventID)).
			Stringer("source", req.Source).
			Log("wakeup: reply channel full, dropping event")
	}
	return true
}
