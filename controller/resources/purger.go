// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package resources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storj.io/common/sync2"
)

// PurgerConfig contains configurable values for aged sample cleanup.
type PurgerConfig struct {
	Interval time.Duration `help:"the time between purge runs" default:"24h"`
	MaxAge   time.Duration `help:"samples older than this are deleted, 0 disables purging" default:"0"`
}

// Purger deletes aged resource samples and evicts the affected customers'
// cached bitsets.
//
// architecture: Chore
type Purger struct {
	log     *zap.Logger
	config  PurgerConfig
	db      DB
	service *Service

	nowFn func() time.Time
	Loop  *sync2.Cycle
}

// NewPurger creates a new instance of the resource purger.
func NewPurger(log *zap.Logger, config PurgerConfig, db DB, service *Service) *Purger {
	return &Purger{
		log:     log,
		config:  config,
		db:      db,
		service: service,

		nowFn: time.Now,
		Loop:  sync2.NewCycle(config.Interval),
	}
}

// Run starts the purger loop service.
func (purger *Purger) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if purger.config.MaxAge <= 0 {
		return nil
	}

	return purger.Loop.Run(ctx, purger.purge)
}

// Close stops the purger.
func (purger *Purger) Close() error {
	purger.Loop.Close()
	return nil
}

// TestingSetNow allows tests to have the purger act as if the current time
// is whatever they want.
func (purger *Purger) TestingSetNow(nowFn func() time.Time) {
	purger.nowFn = nowFn
}

func (purger *Purger) purge(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	before := purger.nowFn().Add(-purger.config.MaxAge).Unix()
	affected, err := purger.db.DeleteOlderThan(ctx, before)
	if err != nil {
		return Error.Wrap(err)
	}
	for _, customerID := range affected {
		purger.service.Evict(customerID)
	}
	if len(affected) > 0 {
		purger.log.Info("purged aged resource samples",
			zap.Int("customers", len(affected)))
	}
	return nil
}
