// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package dispatch_test

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"zoran.io/zoran/controller/dispatch"
)

// worker is a fake worker HTTP endpoint recording what it receives.
type worker struct {
	mu       sync.Mutex
	requests []receivedRequest
	handler  func(w http.ResponseWriter, r *http.Request)

	server *httptest.Server
	host   string
	port   int
}

type receivedRequest struct {
	endpoint string
	body     []byte
	auth     string
}

func newWorker(t *testing.T) *worker {
	wk := &worker{}
	wk.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		wk.mu.Lock()
		wk.requests = append(wk.requests, receivedRequest{
			endpoint: r.URL.Path,
			body:     body,
			auth:     r.Header.Get("Authorization"),
		})
		handler := wk.handler
		wk.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(wk.server.Close)

	host, portText, err := net.SplitHostPort(wk.server.Listener.Addr().String())
	require.NoError(t, err)
	wk.host = host
	wk.port, err = strconv.Atoi(portText)
	require.NoError(t, err)
	return wk
}

func (wk *worker) received() []receivedRequest {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	return append([]receivedRequest(nil), wk.requests...)
}

func (wk *worker) setHandler(handler func(w http.ResponseWriter, r *http.Request)) {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	wk.handler = handler
}

func newDispatcher(t *testing.T, wk *worker) *dispatch.Dispatcher {
	dispatcher := dispatch.New(zaptest.NewLogger(t), dispatch.Config{
		Scheme:         "http",
		Port:           wk.port,
		UserAgent:      "zoran-test",
		Credential:     "hunter2",
		RequestTimeout: 5 * time.Second,
		MaxElapsedTime: 10 * time.Second,
		MaxConcurrent:  4,
		QueueSize:      16,
	})
	t.Cleanup(func() { _ = dispatcher.Close() })
	return dispatcher
}

func waitCallback(t *testing.T, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for delivery callback")
		return nil
	}
}

func TestPostDeliversInOrder(t *testing.T) {
	wk := newWorker(t)
	dispatcher := newDispatcher(t, wk)

	dispatcher.Post(wk.host, "/customer/add", map[string]int{"seq": 1}, "customer add failed")
	dispatcher.Post(wk.host, "/customer/add", map[string]int{"seq": 2}, "customer add failed")

	done := make(chan error, 1)
	dispatcher.PostWithCallback(wk.host, "/customer/remove", map[string]int{"seq": 3},
		"customer remove failed", func(response json.RawMessage, err error) {
			done <- err
		})
	require.NoError(t, waitCallback(t, done))

	requests := wk.received()
	require.Len(t, requests, 3)
	require.Equal(t, "/customer/add", requests[0].endpoint)
	require.Equal(t, "/customer/add", requests[1].endpoint)
	require.Equal(t, "/customer/remove", requests[2].endpoint)
	require.JSONEq(t, `{"seq":1}`, string(requests[0].body))
	require.JSONEq(t, `{"seq":2}`, string(requests[1].body))
	require.Equal(t, "Bearer hunter2", requests[0].auth)
}

func TestPostStateSendsEmptyBody(t *testing.T) {
	wk := newWorker(t)
	dispatcher := newDispatcher(t, wk)

	dispatcher.PostState(wk.host, "/state/active", "state push failed")

	done := make(chan error, 1)
	dispatcher.PostWithCallback(wk.host, "/state/inactive", nil, "state push failed",
		func(response json.RawMessage, err error) { done <- err })
	require.NoError(t, waitCallback(t, done))

	requests := wk.received()
	require.Len(t, requests, 2)
	require.Equal(t, "/state/active", requests[0].endpoint)
	require.Empty(t, requests[0].body)
}

func TestPostClientErrorIsPermanent(t *testing.T) {
	wk := newWorker(t)
	wk.setHandler(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	dispatcher := newDispatcher(t, wk)

	done := make(chan error, 1)
	dispatcher.PostWithCallback(wk.host, "/customer/add", map[string]int{"seq": 1},
		"customer add failed", func(response json.RawMessage, err error) { done <- err })
	require.Error(t, waitCallback(t, done))

	// a rejection is not retried
	require.Len(t, wk.received(), 1)
}

func TestPostRetriesServerError(t *testing.T) {
	wk := newWorker(t)
	var calls int
	wk.setHandler(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"retried":true}`))
	})
	dispatcher := newDispatcher(t, wk)

	done := make(chan error, 1)
	var response json.RawMessage
	dispatcher.PostWithCallback(wk.host, "/customer/add", map[string]int{"seq": 1},
		"customer add failed", func(resp json.RawMessage, err error) {
			response = resp
			done <- err
		})
	require.NoError(t, waitCallback(t, done))
	require.JSONEq(t, `{"retried":true}`, string(response))
	require.Len(t, wk.received(), 2)
}

func TestCloseDropsLatePosts(t *testing.T) {
	wk := newWorker(t)
	dispatcher := newDispatcher(t, wk)

	require.NoError(t, dispatcher.Close())
	require.NoError(t, dispatcher.Close())

	// dropped silently, nothing reaches the worker
	dispatcher.Post(wk.host, "/customer/add", map[string]int{"seq": 1}, "customer add failed")
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, wk.received())
}

func TestExpungeRecreatesQueue(t *testing.T) {
	wk := newWorker(t)
	dispatcher := newDispatcher(t, wk)

	done := make(chan error, 1)
	dispatcher.PostWithCallback(wk.host, "/customer/add", map[string]int{"seq": 1},
		"customer add failed", func(response json.RawMessage, err error) { done <- err })
	require.NoError(t, waitCallback(t, done))

	dispatcher.Expunge(wk.host)

	// the next post materializes a fresh queue
	dispatcher.PostWithCallback(wk.host, "/customer/add", map[string]int{"seq": 2},
		"customer add failed", func(response json.RawMessage, err error) { done <- err })
	require.NoError(t, waitCallback(t, done))
	require.Len(t, wk.received(), 2)
}
