// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
)

// customersDB implements customers.DB.
type customersDB struct {
	*database
}

func (db *customersDB) Get(ctx context.Context, id customers.ID) (_ customers.Capabilities, err error) {
	defer mon.Task()(&ctx)(&err)

	row := db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT id, polling_interval, active, paused,
			supports_post, supports_content_match, supports_keywords,
			supports_ping, supports_ssl_expiration, supports_latency,
			supports_maintenance, supports_multi_region
		FROM customer_capabilities WHERE id = ?`), id)

	caps, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return customers.Capabilities{}, customers.ErrNotFound.New("%d", id)
	}
	return caps, Error.Wrap(err)
}

func (db *customersDB) Create(ctx context.Context, caps customers.Capabilities) (_ customers.ID, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := db.insertReturningID(ctx, `
		INSERT INTO customer_capabilities (
			polling_interval, active, paused,
			supports_post, supports_content_match, supports_keywords,
			supports_ping, supports_ssl_expiration, supports_latency,
			supports_maintenance, supports_multi_region
		) VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? )`,
		caps.PollingInterval, caps.Active, caps.Paused,
		caps.SupportsPost, caps.SupportsContentMatch, caps.SupportsKeywords,
		caps.SupportsPing, caps.SupportsSSLExpiration, caps.SupportsLatency,
		caps.SupportsMaintenance, caps.SupportsMultiRegion)
	return customers.ID(id), err
}

func (db *customersDB) Update(ctx context.Context, caps customers.Capabilities) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`
		UPDATE customer_capabilities SET
			polling_interval = ?, active = ?, paused = ?,
			supports_post = ?, supports_content_match = ?, supports_keywords = ?,
			supports_ping = ?, supports_ssl_expiration = ?, supports_latency = ?,
			supports_maintenance = ?, supports_multi_region = ?
		WHERE id = ?`),
		caps.PollingInterval, caps.Active, caps.Paused,
		caps.SupportsPost, caps.SupportsContentMatch, caps.SupportsKeywords,
		caps.SupportsPing, caps.SupportsSSLExpiration, caps.SupportsLatency,
		caps.SupportsMaintenance, caps.SupportsMultiRegion,
		caps.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, customers.ErrNotFound.New("%d", caps.ID))
}

func (db *customersDB) SetPaused(ctx context.Context, id customers.ID, paused bool) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx,
		db.Rebind(`UPDATE customer_capabilities SET paused = ? WHERE id = ?`), paused, id)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, customers.ErrNotFound.New("%d", id))
}

func (db *customersDB) Delete(ctx context.Context, id customers.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx,
		db.Rebind(`DELETE FROM customer_capabilities WHERE id = ?`), id)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, customers.ErrNotFound.New("%d", id))
}

func (db *customersDB) List(ctx context.Context) (_ []customers.Capabilities, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, polling_interval, active, paused,
			supports_post, supports_content_match, supports_keywords,
			supports_ping, supports_ssl_expiration, supports_latency,
			supports_maintenance, supports_multi_region
		FROM customer_capabilities ORDER BY id`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []customers.Capabilities
	for rows.Next() {
		caps, err := scanCustomer(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, caps)
	}
	return list, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row scanner) (caps customers.Capabilities, err error) {
	err = row.Scan(&caps.ID, &caps.PollingInterval, &caps.Active, &caps.Paused,
		&caps.SupportsPost, &caps.SupportsContentMatch, &caps.SupportsKeywords,
		&caps.SupportsPing, &caps.SupportsSSLExpiration, &caps.SupportsLatency,
		&caps.SupportsMaintenance, &caps.SupportsMultiRegion)
	return caps, err
}

// requireRow maps a zero-row update or delete to the given error.
func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
