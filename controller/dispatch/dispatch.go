// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package dispatch delivers HTTP POSTs to workers, one ordered queue per
// worker identifier.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// Error is the dispatch errs class.
	Error = errs.Class("dispatch")
	mon   = monkit.Package()
)

// Config holds configurable values for outbound delivery.
type Config struct {
	Scheme         string        `help:"scheme used to reach workers (http or https)" default:"https"`
	Port           int           `help:"port workers listen on" default:"8090"`
	UserAgent      string        `help:"user agent sent on worker requests" default:"zoran-controller"`
	Credential     string        `help:"shared bearer credential presented to every worker"`
	RequestTimeout time.Duration `help:"timeout for a single delivery attempt" default:"10s"`
	MaxElapsedTime time.Duration `help:"total retry window before a post is dropped" default:"30s"`
	MaxConcurrent  int64         `help:"cap on in-flight deliveries across all workers" default:"64"`
	QueueSize      int           `help:"posts buffered per worker before new ones are dropped" default:"256"`
}

// Callback receives the parsed response of a delivered post, or the delivery
// error. It runs on the worker's queue goroutine.
type Callback func(response json.RawMessage, err error)

// post is one enqueued delivery.
type post struct {
	endpoint string
	body     []byte
	logText  string
	callback Callback
}

// queue serializes deliveries to a single worker.
type queue struct {
	posts chan post
}

// Dispatcher owns the outbound queues. Posts to one identifier are delivered
// in order; distinct identifiers proceed concurrently under a global
// in-flight cap.
//
// architecture: Service
type Dispatcher struct {
	log    *zap.Logger
	config Config
	client *http.Client
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]*queue
	closed bool
}

// New creates a dispatcher. Queues materialize on first post.
func New(log *zap.Logger, config Config) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		log:    log,
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		sem:    semaphore.NewWeighted(config.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[string]*queue),
	}
}

// Post enqueues an HTTP POST with a JSON body to the worker and returns
// immediately. Delivery is best-effort: after the retry window the post is
// dropped and logText logged at warn level.
func (dispatcher *Dispatcher) Post(identifier, endpoint string, body interface{}, logText string) {
	dispatcher.PostWithCallback(identifier, endpoint, body, logText, nil)
}

// PostWithCallback is Post with a completion callback. The callback runs on
// the worker's queue goroutine with the raw response or the delivery error.
func (dispatcher *Dispatcher) PostWithCallback(identifier, endpoint string, body interface{}, logText string, callback Callback) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			dispatcher.log.Error("encoding post body failed",
				zap.String("identifier", identifier),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			if callback != nil {
				callback(nil, Error.Wrap(err))
			}
			return
		}
	}
	dispatcher.enqueue(identifier, post{endpoint, encoded, logText, callback})
}

// PostState enqueues an empty-body lifecycle command.
func (dispatcher *Dispatcher) PostState(identifier, endpoint, logText string) {
	dispatcher.enqueue(identifier, post{endpoint: endpoint, logText: logText})
}

// Expunge tears down the worker's queue. The next post recreates it.
func (dispatcher *Dispatcher) Expunge(identifier string) {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()

	if q, ok := dispatcher.queues[identifier]; ok {
		close(q.posts)
		delete(dispatcher.queues, identifier)
	}
}

// Close stops accepting posts, aborts in-flight deliveries and waits for the
// queue goroutines to exit.
func (dispatcher *Dispatcher) Close() error {
	dispatcher.mu.Lock()
	if dispatcher.closed {
		dispatcher.mu.Unlock()
		return nil
	}
	dispatcher.closed = true
	for identifier, q := range dispatcher.queues {
		close(q.posts)
		delete(dispatcher.queues, identifier)
	}
	dispatcher.mu.Unlock()

	dispatcher.cancel()
	dispatcher.wg.Wait()
	return nil
}

// enqueue hands the post to the identifier's queue, materializing the queue
// on first use. A full queue drops the post.
func (dispatcher *Dispatcher) enqueue(identifier string, p post) {
	dispatcher.mu.Lock()
	if dispatcher.closed {
		dispatcher.mu.Unlock()
		dispatcher.log.Warn("post after close dropped",
			zap.String("identifier", identifier), zap.String("log_text", p.logText))
		return
	}
	q, ok := dispatcher.queues[identifier]
	if !ok {
		q = &queue{posts: make(chan post, dispatcher.config.QueueSize)}
		dispatcher.queues[identifier] = q
		dispatcher.wg.Add(1)
		go dispatcher.drain(identifier, q)
	}
	// The lock stays held through the send so an Expunge cannot close the
	// channel mid-enqueue. The send never blocks.
	defer dispatcher.mu.Unlock()

	select {
	case q.posts <- p:
	default:
		dispatcher.log.Warn("worker queue full, post dropped",
			zap.String("identifier", identifier), zap.String("log_text", p.logText))
		if p.callback != nil {
			p.callback(nil, Error.New("queue full for %q", identifier))
		}
	}
}

// drain delivers the queue's posts one at a time.
func (dispatcher *Dispatcher) drain(identifier string, q *queue) {
	defer dispatcher.wg.Done()
	for p := range q.posts {
		response, err := dispatcher.deliver(dispatcher.ctx, identifier, p)
		if err != nil {
			dispatcher.log.Warn(p.logText,
				zap.String("identifier", identifier),
				zap.String("endpoint", p.endpoint),
				zap.Error(err))
		}
		if p.callback != nil {
			p.callback(response, err)
		}
	}
}

// deliver posts once with bounded retry, respecting the global in-flight cap.
func (dispatcher *Dispatcher) deliver(ctx context.Context, identifier string, p post) (_ json.RawMessage, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := dispatcher.sem.Acquire(ctx, 1); err != nil {
		return nil, Error.Wrap(err)
	}
	defer dispatcher.sem.Release(1)

	target := fmt.Sprintf("%s://%s:%d%s", dispatcher.config.Scheme, identifier, dispatcher.config.Port, p.endpoint)

	var response json.RawMessage
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(p.body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", dispatcher.config.UserAgent)
		if dispatcher.config.Credential != "" {
			req.Header.Set("Authorization", "Bearer "+dispatcher.config.Credential)
		}

		resp, err := dispatcher.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return errs.New("worker returned %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(errs.New("worker rejected post: %s", resp.Status))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		response = body
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dispatcher.config.MaxElapsedTime
	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return nil, Error.Wrap(err)
	}
	return response, nil
}
