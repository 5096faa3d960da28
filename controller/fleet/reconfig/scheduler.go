// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package reconfig coalesces per-customer reconfiguration pushes so rapid
// edits collapse into one.
package reconfig

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
)

var (
	// Error is the reconfig errs class.
	Error = errs.Class("reconfig")
	mon   = monkit.Package()
)

// Activator applies a due reconfiguration. Implemented by the fleet service.
type Activator interface {
	Activate(ctx context.Context, customerID customers.ID) error
	Deactivate(ctx context.Context, customerID customers.ID) error
}

// Config holds configurable values for the scheduler.
type Config struct {
	Debounce  time.Duration `help:"how long edits for one customer coalesce before the push fires" default:"10s"`
	QueueSize int           `help:"pending schedule requests buffered before new ones are dropped" default:"1024"`
}

// request is one schedule call in flight to the run loop.
type request struct {
	customerID customers.ID
	deactivate bool
}

// Scheduler owns the debounce state on a single goroutine. Cross-thread
// callers enqueue through a channel; the loop completes the due batch before
// rearming its timer.
//
// architecture: Service
type Scheduler struct {
	log       *zap.Logger
	activator Activator
	config    Config

	requests chan request
	closed   chan struct{}
	once     sync.Once

	nowFn func() time.Time

	// Owned by the run loop: pending entries per fire time and the reverse
	// index from customer to its currently scheduled slot.
	buckets    map[time.Time]map[customers.ID]bool
	byCustomer map[customers.ID]time.Time
}

// NewScheduler creates a new deferred scheduler.
func NewScheduler(log *zap.Logger, activator Activator, config Config) *Scheduler {
	return &Scheduler{
		log:       log,
		activator: activator,
		config:    config,

		requests: make(chan request, config.QueueSize),
		closed:   make(chan struct{}),

		nowFn: time.Now,

		buckets:    make(map[time.Time]map[customers.ID]bool),
		byCustomer: make(map[customers.ID]time.Time),
	}
}

// Schedule requests a reconfiguration push for the customer after the
// debounce. A later call within the window supersedes the earlier one.
func (scheduler *Scheduler) Schedule(customerID customers.ID, deactivate bool) {
	select {
	case scheduler.requests <- request{customerID, deactivate}:
	case <-scheduler.closed:
	default:
		scheduler.log.Warn("schedule queue full, push request dropped",
			zap.Int32("customer_id", int32(customerID)))
	}
}

// TestingSetNow allows tests to have the scheduler act as if the current
// time is whatever they want.
func (scheduler *Scheduler) TestingSetNow(nowFn func() time.Time) {
	scheduler.nowFn = nowFn
}

// Run services schedule requests and fires due batches until the context is
// canceled or the scheduler is closed.
func (scheduler *Scheduler) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	armed := false

	rearm := func() {
		if armed {
			stopTimer(timer)
			armed = false
		}
		next, ok := scheduler.nextFire()
		if !ok {
			return
		}
		delay := next.Sub(scheduler.nowFn())
		if delay < 0 {
			delay = 0
		}
		timer.Reset(delay)
		armed = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-scheduler.closed:
			return nil
		case req := <-scheduler.requests:
			scheduler.insert(req)
			rearm()
		case <-timer.C:
			armed = false
			scheduler.fire(ctx)
			rearm()
		}
	}
}

// Close stops the run loop.
func (scheduler *Scheduler) Close() error {
	scheduler.once.Do(func() { close(scheduler.closed) })
	return nil
}

// insert slots the request at now + debounce, superseding the customer's
// earlier slot.
func (scheduler *Scheduler) insert(req request) {
	if prev, ok := scheduler.byCustomer[req.customerID]; ok {
		bucket := scheduler.buckets[prev]
		delete(bucket, req.customerID)
		if len(bucket) == 0 {
			delete(scheduler.buckets, prev)
		}
	}

	fireAt := scheduler.nowFn().Add(scheduler.config.Debounce)
	bucket, ok := scheduler.buckets[fireAt]
	if !ok {
		bucket = make(map[customers.ID]bool)
		scheduler.buckets[fireAt] = bucket
	}
	bucket[req.customerID] = req.deactivate
	scheduler.byCustomer[req.customerID] = fireAt
}

// nextFire returns the earliest pending slot.
func (scheduler *Scheduler) nextFire() (next time.Time, ok bool) {
	for fireAt := range scheduler.buckets {
		if !ok || fireAt.Before(next) {
			next, ok = fireAt, true
		}
	}
	return next, ok
}

// fire pops every due bucket and applies its entries in customer order.
func (scheduler *Scheduler) fire(ctx context.Context) {
	now := scheduler.nowFn()

	var due []time.Time
	for fireAt := range scheduler.buckets {
		if !fireAt.After(now) {
			due = append(due, fireAt)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Before(due[j]) })

	for _, fireAt := range due {
		bucket := scheduler.buckets[fireAt]
		delete(scheduler.buckets, fireAt)

		ids := make([]customers.ID, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			delete(scheduler.byCustomer, id)

			var err error
			if bucket[id] {
				err = scheduler.activator.Deactivate(ctx, id)
			} else {
				err = scheduler.activator.Activate(ctx, id)
			}
			if err != nil {
				scheduler.log.Error("reconfiguration push failed",
					zap.Int32("customer_id", int32(id)),
					zap.Bool("deactivate", bucket[id]),
					zap.Error(err))
			}
		}
	}
}

// stopTimer stops the timer and drains a pending tick.
func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
