// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package controller is the control plane of the monitoring service: it owns
// customer capabilities, monitor configuration, the worker fleet, event
// disposition and resource samples, and exposes the REST surface workers and
// integrations talk to.
package controller

import (
	"context"
	"net"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zoran.io/zoran/controller/api"
	"zoran.io/zoran/controller/dispatch"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/events/sslexpiry"
	"zoran.io/zoran/controller/fleet"
	"zoran.io/zoran/controller/fleet/reconfig"
	"zoran.io/zoran/controller/monitors"
	"zoran.io/zoran/controller/resources"
	"zoran.io/zoran/private/lifecycle"
)

var (
	// Error is the controller peer errs class.
	Error = errs.Class("controller")

	mon = monkit.Package()
)

// Config is the complete configuration of the control plane.
type Config struct {
	Dispatch  dispatch.Config
	Events    events.Config
	SSLExpiry sslexpiry.Config
	Resources resources.Config
	Purger    resources.PurgerConfig
	Reconfig  reconfig.Config
	API       api.Config
}

// Peer is the control plane process.
//
// architecture: Peer
type Peer struct {
	Log *zap.Logger
	DB  DB

	Servers  *lifecycle.Group
	Services *lifecycle.Group

	Dispatch struct {
		Dispatcher *dispatch.Dispatcher
	}

	Fleet struct {
		Service   *fleet.Service
		Scheduler *reconfig.Scheduler
	}

	Monitors struct {
		Service *monitors.Service
	}

	Events struct {
		Service *events.Service
		Expiry  *sslexpiry.Chore
	}

	Resources struct {
		Service *resources.Service
		Purger  *resources.Purger
	}

	API struct {
		Listener net.Listener
		Server   *api.Server
	}
}

// New creates a new control plane peer.
func New(log *zap.Logger, db DB, config Config) (*Peer, error) {
	peer := &Peer{
		Log: log,
		DB:  db,

		Servers:  lifecycle.NewGroup(log.Named("servers")),
		Services: lifecycle.NewGroup(log.Named("services")),
	}

	{ // setup dispatch
		peer.Dispatch.Dispatcher = dispatch.New(log.Named("dispatch"), config.Dispatch)

		peer.Services.Add(lifecycle.Item{
			Name:  "dispatch",
			Close: peer.Dispatch.Dispatcher.Close,
		})
	}

	{ // setup fleet
		peer.Fleet.Service = fleet.NewService(log.Named("fleet"),
			db.Fleet(), db.Customers(), db.Monitors(), peer.Dispatch.Dispatcher)

		peer.Fleet.Scheduler = reconfig.NewScheduler(log.Named("fleet:reconfig"),
			peer.Fleet.Service, config.Reconfig)

		peer.Services.Add(lifecycle.Item{
			Name:  "fleet:reconfig",
			Run:   peer.Fleet.Scheduler.Run,
			Close: peer.Fleet.Scheduler.Close,
		})
	}

	{ // setup monitors
		peer.Monitors.Service = monitors.NewService(log.Named("monitors"),
			db.Monitors(), db.Customers(), peer.Fleet.Scheduler)
	}

	{ // setup events
		peer.Events.Service = events.NewService(log.Named("events"),
			db.Events(), db.Monitors(), peer.Dispatch.Dispatcher, config.Events)

		peer.Events.Expiry = sslexpiry.NewChore(log.Named("events:sslexpiry"),
			config.SSLExpiry, db.Monitors(), peer.Events.Service)

		peer.Services.Add(lifecycle.Item{
			Name:  "events:sslexpiry",
			Run:   peer.Events.Expiry.Run,
			Close: peer.Events.Expiry.Close,
		})
	}

	{ // setup resources
		peer.Resources.Service = resources.NewService(log.Named("resources"),
			db.Resources(), config.Resources)

		peer.Resources.Purger = resources.NewPurger(log.Named("resources:purger"),
			config.Purger, db.Resources(), peer.Resources.Service)

		peer.Services.Add(lifecycle.Item{
			Name:  "resources:purger",
			Run:   peer.Resources.Purger.Run,
			Close: peer.Resources.Purger.Close,
		})
	}

	{ // setup api
		var err error
		peer.API.Listener, err = net.Listen("tcp", config.API.Address)
		if err != nil {
			return nil, Error.Wrap(err)
		}

		peer.API.Server = api.NewServer(log.Named("api"),
			peer.API.Listener,
			db.Customers(),
			peer.Monitors.Service,
			peer.Events.Service,
			peer.Fleet.Service,
			peer.Resources.Service,
			peer.Fleet.Scheduler,
			config.API)

		peer.Servers.Add(lifecycle.Item{
			Name:  "api",
			Run:   peer.API.Server.Run,
			Close: peer.API.Server.Close,
		})
	}

	return peer, nil
}

// Run runs the peer until it is either closed or it errors.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	group, ctx := errgroup.WithContext(ctx)

	peer.Servers.Run(ctx, group)
	peer.Services.Run(ctx, group)

	return group.Wait()
}

// Close closes all the resources.
func (peer *Peer) Close() error {
	return errs.Combine(
		peer.Servers.Close(),
		peer.Services.Close(),
	)
}
