// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

// monitorsDB implements monitors.DB.
type monitorsDB struct {
	*database
}

func (db *monitorsDB) GetHostScheme(ctx context.Context, id monitors.HostSchemeID) (_ monitors.HostScheme, err error) {
	defer mon.Task()(&ctx)(&err)

	var hs monitors.HostScheme
	err = db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT id, customer_id, url, ssl_expiration_timestamp
		FROM host_scheme WHERE id = ?`), id).
		Scan(&hs.ID, &hs.CustomerID, &hs.URL, &hs.SSLExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return monitors.HostScheme{}, monitors.ErrNotFound.New("host/scheme %d", id)
	}
	return hs, Error.Wrap(err)
}

func (db *monitorsDB) CreateHostScheme(ctx context.Context, hs monitors.HostScheme) (_ monitors.HostSchemeID, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := db.insertReturningID(ctx, `
		INSERT INTO host_scheme ( customer_id, url, ssl_expiration_timestamp )
		VALUES ( ?, ?, ? )`,
		hs.CustomerID, hs.URL, hs.SSLExpiresAt)
	return monitors.HostSchemeID(id), err
}

func (db *monitorsDB) UpdateHostScheme(ctx context.Context, hs monitors.HostScheme) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`
		UPDATE host_scheme SET url = ?, ssl_expiration_timestamp = ? WHERE id = ?`),
		hs.URL, hs.SSLExpiresAt, hs.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, monitors.ErrNotFound.New("host/scheme %d", hs.ID))
}

func (db *monitorsDB) SetSSLExpiration(ctx context.Context, id monitors.HostSchemeID, expiresAt int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`
		UPDATE host_scheme SET ssl_expiration_timestamp = ? WHERE id = ?`), expiresAt, id)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, monitors.ErrNotFound.New("host/scheme %d", id))
}

func (db *monitorsDB) DeleteHostScheme(ctx context.Context, id monitors.HostSchemeID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`DELETE FROM host_scheme WHERE id = ?`), id)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, monitors.ErrNotFound.New("host/scheme %d", id))
}

func (db *monitorsDB) DeleteHostSchemesByCustomer(ctx context.Context, customerID customers.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx,
		db.Rebind(`DELETE FROM host_scheme WHERE customer_id = ?`), customerID)
	return Error.Wrap(err)
}

func (db *monitorsDB) ListHostSchemes(ctx context.Context, customerID customers.ID) (_ []monitors.HostScheme, err error) {
	defer mon.Task()(&ctx)(&err)
	return db.queryHostSchemes(ctx, db.Rebind(`
		SELECT id, customer_id, url, ssl_expiration_timestamp
		FROM host_scheme WHERE customer_id = ? ORDER BY id`), customerID)
}

func (db *monitorsDB) ListHostSchemesWithCertificate(ctx context.Context) (_ []monitors.HostScheme, err error) {
	defer mon.Task()(&ctx)(&err)
	return db.queryHostSchemes(ctx, `
		SELECT id, customer_id, url, ssl_expiration_timestamp
		FROM host_scheme WHERE ssl_expiration_timestamp > 0 ORDER BY id`)
}

func (db *monitorsDB) queryHostSchemes(ctx context.Context, query string, args ...interface{}) (_ []monitors.HostScheme, err error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []monitors.HostScheme
	for rows.Next() {
		var hs monitors.HostScheme
		if err := rows.Scan(&hs.ID, &hs.CustomerID, &hs.URL, &hs.SSLExpiresAt); err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, hs)
	}
	return list, nil
}

func (db *monitorsDB) GetMonitor(ctx context.Context, id monitors.MonitorID) (_ monitors.Monitor, err error) {
	defer mon.Task()(&ctx)(&err)

	row := db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT id, customer_id, host_scheme_id, user_ordering, slug,
			method, content_check_mode, keywords, content_type, user_agent, post_content
		FROM monitor WHERE id = ?`), id)

	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return monitors.Monitor{}, monitors.ErrNotFound.New("monitor %d", id)
	}
	return m, Error.Wrap(err)
}

func (db *monitorsDB) CreateMonitor(ctx context.Context, m monitors.Monitor) (_ monitors.MonitorID, err error) {
	defer mon.Task()(&ctx)(&err)

	keywords, err := compressKeywords(m.Keywords)
	if err != nil {
		return 0, err
	}
	id, err := db.insertReturningID(ctx, `
		INSERT INTO monitor (
			customer_id, host_scheme_id, user_ordering, slug,
			method, content_check_mode, keywords, content_type, user_agent, post_content
		) VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ?, ? )`,
		m.CustomerID, m.HostSchemeID, m.UserOrdering, m.Slug,
		m.Method, m.ContentCheckMode, keywords, m.ContentType, m.UserAgent, m.PostContent)
	return monitors.MonitorID(id), err
}

func (db *monitorsDB) UpdateMonitor(ctx context.Context, m monitors.Monitor) (err error) {
	defer mon.Task()(&ctx)(&err)

	keywords, err := compressKeywords(m.Keywords)
	if err != nil {
		return err
	}
	result, err := db.db.ExecContext(ctx, db.Rebind(`
		UPDATE monitor SET
			customer_id = ?, host_scheme_id = ?, user_ordering = ?, slug = ?,
			method = ?, content_check_mode = ?, keywords = ?, content_type = ?,
			user_agent = ?, post_content = ?
		WHERE id = ?`),
		m.CustomerID, m.HostSchemeID, m.UserOrdering, m.Slug,
		m.Method, m.ContentCheckMode, keywords, m.ContentType,
		m.UserAgent, m.PostContent,
		m.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, monitors.ErrNotFound.New("monitor %d", m.ID))
}

func (db *monitorsDB) DeleteMonitor(ctx context.Context, id monitors.MonitorID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`DELETE FROM monitor WHERE id = ?`), id)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, monitors.ErrNotFound.New("monitor %d", id))
}

func (db *monitorsDB) ListMonitors(ctx context.Context, customerID customers.ID) (_ []monitors.Monitor, err error) {
	defer mon.Task()(&ctx)(&err)
	return db.queryMonitors(ctx, db.Rebind(`
		SELECT id, customer_id, host_scheme_id, user_ordering, slug,
			method, content_check_mode, keywords, content_type, user_agent, post_content
		FROM monitor WHERE customer_id = ? ORDER BY user_ordering`), customerID)
}

func (db *monitorsDB) ListMonitorsByHostScheme(ctx context.Context, id monitors.HostSchemeID) (_ []monitors.Monitor, err error) {
	defer mon.Task()(&ctx)(&err)
	return db.queryMonitors(ctx, db.Rebind(`
		SELECT id, customer_id, host_scheme_id, user_ordering, slug,
			method, content_check_mode, keywords, content_type, user_agent, post_content
		FROM monitor WHERE host_scheme_id = ? ORDER BY user_ordering`), id)
}

func (db *monitorsDB) queryMonitors(ctx context.Context, query string, args ...interface{}) (_ []monitors.Monitor, err error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []monitors.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, m)
	}
	return list, nil
}

func scanMonitor(row scanner) (m monitors.Monitor, err error) {
	var keywords []byte
	err = row.Scan(&m.ID, &m.CustomerID, &m.HostSchemeID, &m.UserOrdering, &m.Slug,
		&m.Method, &m.ContentCheckMode, &keywords, &m.ContentType, &m.UserAgent, &m.PostContent)
	if err != nil {
		return monitors.Monitor{}, err
	}
	m.Keywords, err = decompressKeywords(keywords)
	return m, err
}
