// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package controldb implements the control plane databases over SQL.
package controldb

import (
	"context"
	"database/sql"

	// registers the postgres driver.
	_ "github.com/jackc/pgx/v4/stdlib"
	// registers the sqlite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/fleet"
	"zoran.io/zoran/controller/monitors"
	"zoran.io/zoran/controller/resources"
	"zoran.io/zoran/private/dbutil"
)

var (
	// Error is the controldb errs class.
	Error = errs.Class("controldb")

	mon = monkit.Package()
)

// database implements controller.DB over database/sql.
type database struct {
	log  *zap.Logger
	db   *sql.DB
	impl dbutil.Implementation
}

// Open connects to the database selected by the URL. Supported schemes are
// postgres:// and sqlite3://.
func Open(ctx context.Context, log *zap.Logger, databaseURL string) (controller.DB, error) {
	driver, source, impl, err := dbutil.SplitConnStr(databaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	if impl == dbutil.SQLite {
		// Cascades depend on foreign key enforcement.
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			return nil, Error.Wrap(errs.Combine(err, db.Close()))
		}
		// The sqlite driver misbehaves with concurrent writes on one
		// connection pool unless serialized.
		db.SetMaxOpenConns(1)
	}

	return &database{log: log, db: db, impl: impl}, nil
}

// BeginTx starts a transaction, satisfying the migrate and txutil DB
// surfaces.
func (db *database) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, opts)
}

// Rebind converts `?` placeholders to the dialect of the open database.
func (db *database) Rebind(query string) string {
	return dbutil.Rebind(db.impl, query)
}

// Customers returns the customer capabilities database.
func (db *database) Customers() customers.DB { return &customersDB{db} }

// Monitors returns the host/scheme and monitor database.
func (db *database) Monitors() monitors.DB { return &monitorsDB{db} }

// Events returns the event database.
func (db *database) Events() events.DB { return &eventsDB{db} }

// Fleet returns the server, region and mapping database.
func (db *database) Fleet() fleet.DB { return &fleetDB{db} }

// Resources returns the resource sample database.
func (db *database) Resources() resources.DB { return &resourcesDB{db} }

// MigrateToLatest brings the schema up to the current version.
func (db *database) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	return db.migration().Run(ctx, db.log.Named("migrate"))
}

// Close releases the underlying connections.
func (db *database) Close() error {
	return Error.Wrap(db.db.Close())
}

// insertReturningID runs an insert and returns the generated id. Postgres
// uses RETURNING; sqlite reports the last insert id.
func (db *database) insertReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if db.impl == dbutil.Postgres {
		var id int64
		err := db.db.QueryRowContext(ctx, db.Rebind(query+` RETURNING id`), args...).Scan(&id)
		return id, Error.Wrap(err)
	}
	result, err := db.db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	id, err := result.LastInsertId()
	return id, Error.Wrap(err)
}
