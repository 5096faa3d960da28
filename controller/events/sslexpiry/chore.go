// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package sslexpiry detects certificates that are about to expire.
package sslexpiry

import (
	"context"
	"fmt"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/sync2"

	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/monitors"
)

var (
	// Error defines the sslexpiry chore errors class.
	Error = errs.Class("sslexpiry chore")
	mon   = monkit.Package()
)

// Config contains configurable values for the SSL expiration sweeper.
type Config struct {
	Interval  time.Duration `help:"the time between expiration sweeps" releaseDefault:"2s" devDefault:"2s"`
	Threshold time.Duration `help:"how long before expiration a certificate is reported as expiring" default:"72h"`
	Enabled   bool          `help:"set if the SSL expiration sweeper is enabled or not" default:"true"`
}

// Chore sweeps host/schemes with a known certificate expiration and raises
// one event per threshold crossing, in either direction.
//
// architecture: Chore
type Chore struct {
	log      *zap.Logger
	config   Config
	monitors monitors.DB
	events   *events.Service

	// expiring tracks which host/schemes were below the threshold on the
	// previous sweep, to suppress repeats across ticks.
	expiring map[monitors.HostSchemeID]bool

	nowFn func() time.Time
	Loop  *sync2.Cycle
}

// NewChore creates a new instance of the sslexpiry chore.
func NewChore(log *zap.Logger, config Config, monitorsDB monitors.DB, eventsService *events.Service) *Chore {
	return &Chore{
		log:      log,
		config:   config,
		monitors: monitorsDB,
		events:   eventsService,

		expiring: make(map[monitors.HostSchemeID]bool),

		nowFn: time.Now,
		Loop:  sync2.NewCycle(config.Interval),
	}
}

// Run starts the sslexpiry loop service.
func (chore *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !chore.config.Enabled {
		return nil
	}

	return chore.Loop.Run(ctx, chore.sweep)
}

// Close stops the sslexpiry chore.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}

// TestingSetNow allows tests to have the chore act as if the current time is
// whatever they want.
func (chore *Chore) TestingSetNow(nowFn func() time.Time) {
	chore.nowFn = nowFn
}

func (chore *Chore) sweep(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	hostSchemes, err := chore.monitors.ListHostSchemesWithCertificate(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	now := chore.nowFn()
	deadline := now.Add(chore.config.Threshold).Unix()

	seen := make(map[monitors.HostSchemeID]bool, len(hostSchemes))
	for _, hs := range hostSchemes {
		seen[hs.ID] = true
		expiring := hs.SSLExpiresAt < deadline
		if expiring == chore.expiring[hs.ID] {
			continue
		}

		listed, err := chore.monitors.ListMonitorsByHostScheme(ctx, hs.ID)
		if err != nil {
			return Error.Wrap(err)
		}
		if len(listed) == 0 {
			// Nothing to attach the event to; retry once the
			// host/scheme has a monitor again.
			continue
		}

		kind := events.KindSSLCertificateRenewed
		message := fmt.Sprintf("certificate for %s no longer expires soon", hs.URL)
		if expiring {
			kind = events.KindSSLCertificateExpiring
			message = fmt.Sprintf("certificate for %s expires %s", hs.URL, time.Unix(hs.SSLExpiresAt, 0).UTC().Format(time.RFC3339))
		}

		if err := chore.events.Raise(ctx, listed[0], now.Unix(), kind, message); err != nil {
			return Error.Wrap(err)
		}
		chore.expiring[hs.ID] = expiring
	}

	// Forget host/schemes that disappeared or lost their certificate.
	for id := range chore.expiring {
		if !seen[id] {
			delete(chore.expiring, id)
		}
	}
	return nil
}
