// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package sslexpiry_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/controldb/controldbtest"
	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/events/sslexpiry"
	"zoran.io/zoran/controller/monitors"
)

// countingNotifier counts upstream notifications by event type.
type countingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (notifier *countingNotifier) Post(identifier, endpoint string, body interface{}, logText string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if note, ok := body.(events.Notification); ok {
		notifier.kinds = append(notifier.kinds, note.EventType)
	}
}

func (notifier *countingNotifier) all() []string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return append([]string(nil), notifier.kinds...)
}

func startChore(ctx *testcontext.Context, t *testing.T, db controller.DB, now time.Time) (*sslexpiry.Chore, *countingNotifier) {
	notifier := &countingNotifier{}
	eventsService := events.NewService(zaptest.NewLogger(t), db.Events(), db.Monitors(), notifier,
		events.Config{HistoryLimit: 100})

	chore := sslexpiry.NewChore(zaptest.NewLogger(t), sslexpiry.Config{
		Interval:  time.Minute,
		Threshold: 72 * time.Hour,
		Enabled:   true,
	}, db.Monitors(), eventsService)
	chore.TestingSetNow(func() time.Time { return now })
	chore.Loop.Pause()

	ctx.Go(func() error { return chore.Run(ctx) })
	return chore, notifier
}

func TestChoreReportsThresholdCrossings(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)

		now := time.Unix(events.EpochStart+1000000, 0)
		hsID, err := db.Monitors().CreateHostScheme(ctx, monitors.HostScheme{
			CustomerID:   customerID,
			URL:          "https://example.com",
			SSLExpiresAt: now.Add(48 * time.Hour).Unix(),
		})
		require.NoError(t, err)
		_, err = db.Monitors().CreateMonitor(ctx, monitors.Monitor{
			CustomerID:   customerID,
			HostSchemeID: hsID,
			Slug:         "/",
		})
		require.NoError(t, err)

		chore, notifier := startChore(ctx, t, db, now)
		defer ctx.Check(chore.Close)

		// the certificate is inside the threshold: one expiring event
		chore.Loop.TriggerWait()
		require.Equal(t, []string{"ssl_certificate_expiring"}, notifier.all())

		// repeated sweeps stay quiet
		chore.Loop.TriggerWait()
		chore.Loop.TriggerWait()
		require.Equal(t, []string{"ssl_certificate_expiring"}, notifier.all())

		// a renewal crosses back out of the threshold
		require.NoError(t, db.Monitors().SetSSLExpiration(ctx, hsID, now.Add(1000*time.Hour).Unix()))
		chore.Loop.TriggerWait()
		require.Equal(t, []string{"ssl_certificate_expiring", "ssl_certificate_renewed"}, notifier.all())

		chore.Loop.TriggerWait()
		require.Equal(t, []string{"ssl_certificate_expiring", "ssl_certificate_renewed"}, notifier.all())
	})
}

func TestChoreSkipsHostSchemesWithoutMonitors(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)

		now := time.Unix(events.EpochStart+1000000, 0)
		hsID, err := db.Monitors().CreateHostScheme(ctx, monitors.HostScheme{
			CustomerID:   customerID,
			URL:          "https://example.com",
			SSLExpiresAt: now.Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		chore, notifier := startChore(ctx, t, db, now)
		defer ctx.Check(chore.Close)

		// nothing to attach the event to yet
		chore.Loop.TriggerWait()
		require.Empty(t, notifier.all())

		// once a monitor exists the pending transition fires
		_, err = db.Monitors().CreateMonitor(ctx, monitors.Monitor{
			CustomerID:   customerID,
			HostSchemeID: hsID,
			Slug:         "/",
		})
		require.NoError(t, err)
		chore.Loop.TriggerWait()
		require.Equal(t, []string{"ssl_certificate_expiring"}, notifier.all())
	})
}
