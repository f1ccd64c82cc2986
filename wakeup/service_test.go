package wakeup

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startService(t *testing.T, opts ...Option) (*Service, context.CancelFunc) {
	t.Helper()
	svc, err := New(opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Error("service did not stop")
		}
	})
	return svc, cancel
}

func receive(t *testing.T, ch <-chan oneshot.Event) oneshot.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		panic("unreachable")
	}
}

func TestNew_nilOption(t *testing.T) {
	svc, err := New(nil, WithBlockingDelivery(true))
	require.NoError(t, err)
	assert.True(t, svc.blocking)
}

func TestService_deliversInDeadlineOrder(t *testing.T) {
	svc, _ := startService(t)
	reply := make(chan oneshot.Event, 3)

	svc.ScheduleWake(oneshot.Request{Reply: reply, Source: oneshot.SourceWindow, EventID: 1, Delay: 60 * time.Millisecond})
	svc.ScheduleWake(oneshot.Request{Reply: reply, Source: oneshot.SourceWorker, EventID: 2, Delay: 20 * time.Millisecond})
	svc.ScheduleWake(oneshot.Request{Reply: reply, Source: oneshot.SourceWindow, EventID: 3, Delay: 40 * time.Millisecond})

	assert.Equal(t, oneshot.Event{Source: oneshot.SourceWorker, EventID: 2}, receive(t, reply))
	assert.Equal(t, oneshot.Event{Source: oneshot.SourceWindow, EventID: 3}, receive(t, reply))
	assert.Equal(t, oneshot.Event{Source: oneshot.SourceWindow, EventID: 1}, receive(t, reply))
}

func TestService_equalDeadlinesInArrivalOrder(t *testing.T) {
	svc, _ := startService(t)
	reply := make(chan oneshot.Event, 8)
	for i := 1; i <= 8; i++ {
		svc.ScheduleWake(oneshot.Request{Reply: reply, EventID: oneshot.EventID(i), Delay: -time.Second})
	}
	for i := 1; i <= 8; i++ {
		assert.Equal(t, oneshot.EventID(i), receive(t, reply).EventID)
	}
}

func TestService_dropsWhenReplyFull(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelWarning),
	).Logger()

	svc, cancel := startService(t, WithLogger(logger))
	full := make(chan oneshot.Event)
	reply := make(chan oneshot.Event, 1)

	svc.ScheduleWake(oneshot.Request{Reply: full, EventID: 1})
	svc.ScheduleWake(oneshot.Request{Reply: nil, EventID: 2})
	svc.ScheduleWake(oneshot.Request{Reply: reply, EventID: 3, Delay: 10 * time.Millisecond})

	assert.Equal(t, oneshot.EventID(3), receive(t, reply).EventID)
	assert.Zero(t, svc.Pending())

	cancel()
	<-svc.Done()
	assert.Contains(t, buf.String(), `"msg":"wakeup: reply channel full, dropping event"`)
	assert.Contains(t, buf.String(), `"msg":"wakeup: dropping request without a reply channel"`)
}

func TestService_blockingDelivery(t *testing.T) {
	svc, _ := startService(t, WithBlockingDelivery(true))
	reply := make(chan oneshot.Event)

	svc.ScheduleWake(oneshot.Request{Reply: reply, EventID: 1})
	svc.ScheduleWake(oneshot.Request{Reply: reply, EventID: 2})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, oneshot.EventID(1), receive(t, reply).EventID)
	assert.Equal(t, oneshot.EventID(2), receive(t, reply).EventID)
}

func TestService_ScheduleWake_neverBlocks(t *testing.T) {
	svc, _ := startService(t, WithBlockingDelivery(true))
	reply := make(chan oneshot.Event)

	// the service goroutine blocks delivering this one
	svc.ScheduleWake(oneshot.Request{Reply: reply, EventID: 1})
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 2; i <= 100; i++ {
			svc.ScheduleWake(oneshot.Request{Reply: reply, EventID: oneshot.EventID(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ScheduleWake blocked while delivery was blocked")
	}

	for i := 1; i <= 100; i++ {
		assert.Equal(t, oneshot.EventID(i), receive(t, reply).EventID)
	}
}

func TestService_Run_alreadyRunning(t *testing.T) {
	svc, _ := startService(t)
	assert.Eventually(t, func() bool { return svc.running.Load() }, 5*time.Second, time.Millisecond)
	assert.ErrorIs(t, svc.Run(context.Background()), ErrAlreadyRunning)
}

func TestService_ScheduleWake_afterStop(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.ScheduleWake(oneshot.Request{Reply: make(chan oneshot.Event, 1), EventID: 1})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ScheduleWake blocked after stop")
	}
}

func TestService_drivesRegistry(t *testing.T) {
	svc, _ := startService(t)

	registry, err := oneshot.New(svc)
	require.NoError(t, err)
	reply := make(chan oneshot.Event, 4)
	require.NoError(t, registry.SetupScheduling(reply))

	var order []int
	record := func(v int) oneshot.Callback {
		return oneshot.CallbackFunc(func() { order = append(order, v) })
	}
	registry.Schedule(record(3), 30*time.Millisecond, oneshot.SourceWindow)
	registry.Schedule(record(1), 10*time.Millisecond, oneshot.SourceWindow)
	registry.Schedule(record(2), 20*time.Millisecond, oneshot.SourceWindow)

	for registry.Len() != 0 {
		registry.Fire(receive(t, reply).EventID)
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}
