// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/monitors"
	"zoran.io/zoran/private/dbutil"
	"zoran.io/zoran/private/dbutil/txutil"
)

// eventsDB implements events.DB.
type eventsDB struct {
	*database
}

func (db *eventsDB) Record(ctx context.Context, event events.Event) (id events.ID, err error) {
	defer mon.Task()(&ctx)(&err)

	err = txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if db.impl == dbutil.Postgres {
			err := tx.QueryRowContext(ctx, db.Rebind(`
				INSERT INTO event ( monitor_id, customer_id, timestamp, event_type, message, hash )
				VALUES ( ?, ?, ?, ?, ?, ? ) RETURNING id`),
				event.MonitorID, event.CustomerID, event.Timestamp, event.Kind, event.Message, event.Hash).
				Scan(&id)
			if err != nil {
				return err
			}
		} else {
			result, err := tx.ExecContext(ctx, db.Rebind(`
				INSERT INTO event ( monitor_id, customer_id, timestamp, event_type, message, hash )
				VALUES ( ?, ?, ?, ?, ?, ? )`),
				event.MonitorID, event.CustomerID, event.Timestamp, event.Kind, event.Message, event.Hash)
			if err != nil {
				return err
			}
			inserted, err := result.LastInsertId()
			if err != nil {
				return err
			}
			id = events.ID(inserted)
		}

		status, ok := event.Kind.StatusTransition()
		if !ok {
			return nil
		}
		_, err := tx.ExecContext(ctx, db.Rebind(`
			INSERT INTO monitor_status ( monitor_id, status ) VALUES ( ?, ? )
			ON CONFLICT ( monitor_id ) DO UPDATE SET status = ?`),
			event.MonitorID, status, status)
		return err
	})
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return id, nil
}

func (db *eventsDB) Get(ctx context.Context, id events.ID) (_ events.Event, err error) {
	defer mon.Task()(&ctx)(&err)

	row := db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT id, monitor_id, customer_id, timestamp, event_type, message, hash
		FROM event WHERE id = ?`), id)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, events.ErrNotFound.New("event %d", id)
	}
	return event, Error.Wrap(err)
}

func (db *eventsDB) ListByMonitor(ctx context.Context, monitorID monitors.MonitorID, limit int) (_ []events.Event, err error) {
	defer mon.Task()(&ctx)(&err)
	return db.queryEvents(ctx, db.Rebind(`
		SELECT id, monitor_id, customer_id, timestamp, event_type, message, hash
		FROM event WHERE monitor_id = ? ORDER BY id DESC LIMIT ?`), monitorID, limit)
}

func (db *eventsDB) ListByCustomer(ctx context.Context, customerID customers.ID, limit int) (_ []events.Event, err error) {
	defer mon.Task()(&ctx)(&err)
	return db.queryEvents(ctx, db.Rebind(`
		SELECT id, monitor_id, customer_id, timestamp, event_type, message, hash
		FROM event WHERE customer_id = ? ORDER BY id DESC LIMIT ?`), customerID, limit)
}

func (db *eventsDB) LatestByMonitor(ctx context.Context, monitorID monitors.MonitorID, kinds []events.Kind) (_ events.Event, err error) {
	defer mon.Task()(&ctx)(&err)

	args := append([]interface{}{monitorID}, kindArgs(kinds)...)
	row := db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT id, monitor_id, customer_id, timestamp, event_type, message, hash
		FROM event
		WHERE monitor_id = ? AND event_type IN (`+placeholders(len(kinds))+`)
		ORDER BY id DESC LIMIT 1`), args...)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, events.ErrNotFound.New("no matching event")
	}
	return event, Error.Wrap(err)
}

func (db *eventsDB) LatestByHostScheme(ctx context.Context, monitorID monitors.MonitorID, kinds []events.Kind) (_ events.Event, err error) {
	defer mon.Task()(&ctx)(&err)

	args := append([]interface{}{monitorID}, kindArgs(kinds)...)
	row := db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT e.id, e.monitor_id, e.customer_id, e.timestamp, e.event_type, e.message, e.hash
		FROM event e
		INNER JOIN monitor m ON m.id = e.monitor_id
		WHERE m.host_scheme_id = ( SELECT host_scheme_id FROM monitor WHERE id = ? )
			AND e.event_type IN (`+placeholders(len(kinds))+`)
		ORDER BY e.id DESC LIMIT 1`), args...)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, events.ErrNotFound.New("no matching event")
	}
	return event, Error.Wrap(err)
}

func (db *eventsDB) GetStatus(ctx context.Context, monitorID monitors.MonitorID) (_ events.Status, err error) {
	defer mon.Task()(&ctx)(&err)

	var status events.Status
	err = db.db.QueryRowContext(ctx,
		db.Rebind(`SELECT status FROM monitor_status WHERE monitor_id = ?`), monitorID).
		Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return events.StatusUnknown, nil
	}
	return status, Error.Wrap(err)
}

func (db *eventsDB) DeleteBefore(ctx context.Context, before uint32) (deleted int64, err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx,
		db.Rebind(`DELETE FROM event WHERE timestamp < ?`), before)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	deleted, err = result.RowsAffected()
	return deleted, Error.Wrap(err)
}

func (db *eventsDB) queryEvents(ctx context.Context, query string, args ...interface{}) (_ []events.Event, err error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, event)
	}
	return list, nil
}

func scanEvent(row scanner) (event events.Event, err error) {
	err = row.Scan(&event.ID, &event.MonitorID, &event.CustomerID,
		&event.Timestamp, &event.Kind, &event.Message, &event.Hash)
	return event, err
}

// placeholders returns n comma separated `?` marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func kindArgs(kinds []events.Kind) []interface{} {
	args := make([]interface{}, len(kinds))
	for i, kind := range kinds {
		args[i] = kind
	}
	return args
}
