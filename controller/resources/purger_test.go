// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package resources_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/controldb/controldbtest"
	"zoran.io/zoran/controller/resources"
)

func TestPurgerDeletesAgedSamples(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service := newService(t, db, 10)
		customerID := createCustomer(ctx, t, db)

		now := time.Unix(1000*3600, 0)
		old := now.Add(-48 * time.Hour).Unix()
		fresh := now.Add(-time.Hour).Unix()

		require.NoError(t, service.Record(ctx, resources.NewResource(customerID, 1, 1, old)))
		require.NoError(t, service.Record(ctx, resources.NewResource(customerID, 2, 2, fresh)))

		purger := resources.NewPurger(zaptest.NewLogger(t), resources.PurgerConfig{
			Interval: time.Minute,
			MaxAge:   24 * time.Hour,
		}, db.Resources(), service)
		purger.TestingSetNow(func() time.Time { return now })
		purger.Loop.Pause()
		ctx.Go(func() error { return purger.Run(ctx) })
		defer ctx.Check(purger.Close)

		purger.Loop.TriggerWait()

		list, err := service.List(ctx, customerID, 1, 0, now.Unix())
		require.NoError(t, err)
		require.Empty(t, list)
		list, err = service.List(ctx, customerID, 2, 0, now.Unix())
		require.NoError(t, err)
		require.Len(t, list, 1)

		// the purge evicted the cached bitset, so the stale type is gone
		active, err := service.Available(ctx, customerID)
		require.NoError(t, err)
		require.Equal(t, []uint8{2}, active.Values())
	})
}
