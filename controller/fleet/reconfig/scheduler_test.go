// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package reconfig_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/fleet/reconfig"
)

type call struct {
	customerID customers.ID
	deactivate bool
}

// fakeActivator records activations and signals each one.
type fakeActivator struct {
	mu    sync.Mutex
	calls []call
	fired chan struct{}
}

func newFakeActivator() *fakeActivator {
	return &fakeActivator{fired: make(chan struct{}, 64)}
}

func (activator *fakeActivator) record(c call) {
	activator.mu.Lock()
	activator.calls = append(activator.calls, c)
	activator.mu.Unlock()
	activator.fired <- struct{}{}
}

func (activator *fakeActivator) Activate(ctx context.Context, customerID customers.ID) error {
	activator.record(call{customerID, false})
	return nil
}

func (activator *fakeActivator) Deactivate(ctx context.Context, customerID customers.ID) error {
	activator.record(call{customerID, true})
	return nil
}

func (activator *fakeActivator) snapshot() []call {
	activator.mu.Lock()
	defer activator.mu.Unlock()
	return append([]call(nil), activator.calls...)
}

func (activator *fakeActivator) wait(t *testing.T) {
	select {
	case <-activator.fired:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for a reconfiguration push")
	}
}

func startScheduler(ctx *testcontext.Context, t *testing.T, debounce time.Duration) (*reconfig.Scheduler, *fakeActivator) {
	activator := newFakeActivator()
	scheduler := reconfig.NewScheduler(zaptest.NewLogger(t), activator, reconfig.Config{
		Debounce:  debounce,
		QueueSize: 64,
	})
	ctx.Go(func() error { return scheduler.Run(ctx) })
	return scheduler, activator
}

func TestScheduleCoalesces(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	scheduler, activator := startScheduler(ctx, t, 100*time.Millisecond)
	defer ctx.Check(scheduler.Close)

	// rapid edits for one customer collapse into a single push
	for i := 0; i < 5; i++ {
		scheduler.Schedule(42, false)
	}
	activator.wait(t)

	// let any stray timer fire
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, []call{{42, false}}, activator.snapshot())
}

func TestScheduleLastRequestWins(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	scheduler, activator := startScheduler(ctx, t, 100*time.Millisecond)
	defer ctx.Check(scheduler.Close)

	scheduler.Schedule(7, false)
	scheduler.Schedule(7, true)
	activator.wait(t)

	time.Sleep(300 * time.Millisecond)
	require.Equal(t, []call{{7, true}}, activator.snapshot())
}

func TestScheduleIndependentCustomers(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	scheduler, activator := startScheduler(ctx, t, 50*time.Millisecond)
	defer ctx.Check(scheduler.Close)

	scheduler.Schedule(1, false)
	scheduler.Schedule(2, true)
	scheduler.Schedule(3, false)
	activator.wait(t)
	activator.wait(t)
	activator.wait(t)

	calls := activator.snapshot()
	require.Len(t, calls, 3)
	require.ElementsMatch(t, []call{{1, false}, {2, true}, {3, false}}, calls)
}

func TestScheduleAfterClose(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	scheduler, activator := startScheduler(ctx, t, 10*time.Millisecond)
	require.NoError(t, scheduler.Close())

	// must not block or fire
	scheduler.Schedule(1, false)
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, activator.snapshot())
}
