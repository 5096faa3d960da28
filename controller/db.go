// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controller

import (
	"context"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/fleet"
	"zoran.io/zoran/controller/monitors"
	"zoran.io/zoran/controller/resources"
)

// DB is the master database of the control plane.
//
// architecture: Master Database
type DB interface {
	// MigrateToLatest initializes or upgrades the schema.
	MigrateToLatest(ctx context.Context) error
	// Close closes the database.
	Close() error

	// Customers returns the database for customer capabilities.
	Customers() customers.DB
	// Monitors returns the database for host/schemes and monitors.
	Monitors() monitors.DB
	// Events returns the database for events and monitor statuses.
	Events() events.DB
	// Fleet returns the database for servers, regions and mappings.
	Fleet() fleet.DB
	// Resources returns the database for resource samples.
	Resources() resources.DB
}
