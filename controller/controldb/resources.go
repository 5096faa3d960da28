// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"

	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/resources"
	"zoran.io/zoran/private/dbutil/txutil"
)

// resourcesDB implements resources.DB.
type resourcesDB struct {
	*database
}

func (db *resourcesDB) Upsert(ctx context.Context, resource resources.Resource) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx, db.Rebind(`
		INSERT INTO resources ( customer_id, value_type, value, timestamp1, timestamp2 )
		VALUES ( ?, ?, ?, ?, ? )
		ON CONFLICT ( customer_id, value_type, timestamp1 )
		DO UPDATE SET value = ?, timestamp2 = ?`),
		resource.CustomerID, resource.ValueType, resource.Value, resource.Timestamp1, resource.Timestamp2,
		resource.Value, resource.Timestamp2)
	return Error.Wrap(err)
}

func (db *resourcesDB) DistinctValueTypes(ctx context.Context, customerID customers.ID) (_ []uint8, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, db.Rebind(`
		SELECT DISTINCT value_type FROM resources WHERE customer_id = ? ORDER BY value_type`), customerID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var valueTypes []uint8
	for rows.Next() {
		var valueType uint8
		if err := rows.Scan(&valueType); err != nil {
			return nil, Error.Wrap(err)
		}
		valueTypes = append(valueTypes, valueType)
	}
	return valueTypes, nil
}

func (db *resourcesDB) List(ctx context.Context, customerID customers.ID, valueType uint8, fromUnix, toUnix int64) (_ []resources.Resource, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, db.Rebind(`
		SELECT customer_id, value_type, value, timestamp1, timestamp2
		FROM resources
		WHERE customer_id = ? AND value_type = ? AND timestamp1 >= ? AND timestamp1 <= ?
		ORDER BY timestamp1`),
		customerID, valueType, fromUnix/3600, toUnix/3600)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []resources.Resource
	for rows.Next() {
		var resource resources.Resource
		if err := rows.Scan(&resource.CustomerID, &resource.ValueType, &resource.Value,
			&resource.Timestamp1, &resource.Timestamp2); err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, resource)
	}
	return list, nil
}

func (db *resourcesDB) DeleteByCustomer(ctx context.Context, customerID customers.ID) (deleted int64, err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx,
		db.Rebind(`DELETE FROM resources WHERE customer_id = ?`), customerID)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	deleted, err = result.RowsAffected()
	return deleted, Error.Wrap(err)
}

func (db *resourcesDB) DeleteOlderThan(ctx context.Context, beforeUnix int64) (affected []customers.ID, err error) {
	defer mon.Task()(&ctx)(&err)

	err = txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		affected = affected[:0]

		rows, err := tx.QueryContext(ctx, db.Rebind(`
			SELECT DISTINCT customer_id FROM resources WHERE timestamp1 < ?`), beforeUnix/3600)
		if err != nil {
			return err
		}
		for rows.Next() {
			var customerID customers.ID
			if err := rows.Scan(&customerID); err != nil {
				return errs.Combine(err, rows.Close())
			}
			affected = append(affected, customerID)
		}
		if err := errs.Combine(rows.Err(), rows.Close()); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			db.Rebind(`DELETE FROM resources WHERE timestamp1 < ?`), beforeUnix/3600)
		return err
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return affected, nil
}
