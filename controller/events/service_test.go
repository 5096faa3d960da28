// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package events_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/controldb/controldbtest"
	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/monitors"
)

// recordingNotifier captures upstream notifications instead of dispatching.
type recordingNotifier struct {
	mu    sync.Mutex
	posts []events.Notification
}

func (notifier *recordingNotifier) Post(identifier, endpoint string, body interface{}, logText string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if note, ok := body.(events.Notification); ok {
		notifier.posts = append(notifier.posts, note)
	}
}

func (notifier *recordingNotifier) count() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return len(notifier.posts)
}

func (notifier *recordingNotifier) last() events.Notification {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return notifier.posts[len(notifier.posts)-1]
}

func newTestService(t *testing.T, db controller.DB) (*events.Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	service := events.NewService(zaptest.NewLogger(t), db.Events(), db.Monitors(), notifier, events.Config{
		UpstreamIdentifier: "upstream",
		UpstreamEndpoint:   "/event/notify",
		HistoryLimit:       100,
	})
	return service, notifier
}

func setupMonitor(ctx *testcontext.Context, t *testing.T, db controller.DB) monitors.Monitor {
	customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
	require.NoError(t, err)

	hsID, err := db.Monitors().CreateHostScheme(ctx,
		monitors.HostScheme{CustomerID: customerID, URL: "https://example.com"})
	require.NoError(t, err)

	m := monitors.Monitor{CustomerID: customerID, HostSchemeID: hsID, Slug: "/status"}
	m.ID, err = db.Monitors().CreateMonitor(ctx, m)
	require.NoError(t, err)
	return m
}

func TestReportFirstWorkingRecordsSilently(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)
		now := events.EpochStart + 1000

		// first WORKING on a fresh monitor is recorded without notifying
		err := service.Report(ctx, m.ID, now, events.KindWorking, events.StatusUnknown, "", nil)
		require.NoError(t, err)
		require.Zero(t, notifier.count())

		history, err := service.HistoryByMonitor(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Equal(t, events.KindWorking, history[0].Kind)

		status, err := service.Status(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, events.StatusWorking, status)

		// a repeat WORKING is a duplicate
		err = service.Report(ctx, m.ID, now+60, events.KindWorking, events.StatusWorking, "", nil)
		require.NoError(t, err)
		history, err = service.HistoryByMonitor(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Zero(t, notifier.count())
	})
}

func TestReportWorkingIgnoredWithoutHistory(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)

		// the worker believes the monitor already works, so there is
		// nothing worth recording
		err := service.Report(ctx, m.ID, events.EpochStart+1000,
			events.KindWorking, events.StatusWorking, "", nil)
		require.NoError(t, err)

		history, err := service.HistoryByMonitor(ctx, m.ID)
		require.NoError(t, err)
		require.Empty(t, history)
		require.Zero(t, notifier.count())
	})
}

func TestReportFailureAndRecovery(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)
		now := events.EpochStart + 1000

		// the first failure is reported even with no history
		err := service.Report(ctx, m.ID, now, events.KindNoResponse, events.StatusUnknown, "connect timeout", nil)
		require.NoError(t, err)
		require.Equal(t, 1, notifier.count())

		note := notifier.last()
		require.Equal(t, "no_response", note.EventType)
		require.Equal(t, "/status", note.Path)
		require.Equal(t, "https://example.com", note.Authority)
		require.Equal(t, "connect timeout", note.Message)

		status, err := service.Status(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, events.StatusFailed, status)

		// a repeat failure is suppressed
		err = service.Report(ctx, m.ID, now+60, events.KindNoResponse, events.StatusFailed, "connect timeout", nil)
		require.NoError(t, err)
		require.Equal(t, 1, notifier.count())

		// recovery is reported
		err = service.Report(ctx, m.ID, now+120, events.KindWorking, events.StatusFailed, "", nil)
		require.NoError(t, err)
		require.Equal(t, 2, notifier.count())
		require.Equal(t, "working", notifier.last().EventType)

		status, err = service.Status(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, events.StatusWorking, status)
	})
}

func TestReportContentChangedDeduplicatesByHash(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)
		now := events.EpochStart + 1000

		hashA := []byte{0xaa, 0xaa}
		hashB := []byte{0xbb, 0xbb}

		err := service.Report(ctx, m.ID, now, events.KindContentChanged, events.StatusWorking, "content changed", hashA)
		require.NoError(t, err)
		require.Equal(t, 1, notifier.count())

		// same hash again is a duplicate
		err = service.Report(ctx, m.ID, now+60, events.KindContentChanged, events.StatusWorking, "content changed", hashA)
		require.NoError(t, err)
		require.Equal(t, 1, notifier.count())

		// a different hash is a new change
		err = service.Report(ctx, m.ID, now+120, events.KindContentChanged, events.StatusWorking, "content changed", hashB)
		require.NoError(t, err)
		require.Equal(t, 2, notifier.count())

		history, err := service.HistoryByMonitor(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
	})
}

func TestReportCustomerKindsAlwaysNotify(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)
		now := events.EpochStart + 1000

		for i := 0; i < 3; i++ {
			err := service.Report(ctx, m.ID, now+int64(i), events.KindTransaction, events.StatusWorking, "purchase", nil)
			require.NoError(t, err)
		}
		require.Equal(t, 3, notifier.count())
		require.Equal(t, "transaction", notifier.last().EventType)
	})
}

func TestReportUnknownMonitorAccepted(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)

		err := service.Report(ctx, m.ID+1000, events.EpochStart+1000,
			events.KindNoResponse, events.StatusUnknown, "", nil)
		require.NoError(t, err)
		require.Zero(t, notifier.count())

		history, err := service.HistoryByCustomer(ctx, m.CustomerID)
		require.NoError(t, err)
		require.Empty(t, history)
	})
}

func TestReportUnclassifiableKind(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, _ := newTestService(t, db)
		m := setupMonitor(ctx, t, db)

		err := service.Report(ctx, m.ID, events.EpochStart+1000,
			events.KindInvalid, events.StatusUnknown, "", nil)
		require.Error(t, err)
	})
}

func TestRaiseBypassesDisposition(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, notifier := newTestService(t, db)
		m := setupMonitor(ctx, t, db)
		now := events.EpochStart + 1000

		// Raise records and notifies even for back to back duplicates.
		for i := 0; i < 2; i++ {
			err := service.Raise(ctx, m, now+int64(i),
				events.KindSSLCertificateExpiring, "certificate expires soon")
			require.NoError(t, err)
		}
		require.Equal(t, 2, notifier.count())

		history, err := service.HistoryByMonitor(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
	})
}
