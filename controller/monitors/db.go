// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package monitors

import (
	"context"

	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
)

var (
	// Error is the monitors errs class.
	Error = errs.Class("monitors")
	// ErrValidation is returned for rejected monitor configuration entries.
	ErrValidation = errs.Class("monitor validation")
	// ErrNotFound is returned when a host/scheme or monitor does not exist.
	ErrNotFound = errs.Class("monitor not found")
)

// DB is the database for host/schemes and monitors.
//
// architecture: Database
type DB interface {
	// GetHostScheme returns a host/scheme by id.
	GetHostScheme(ctx context.Context, id HostSchemeID) (HostScheme, error)
	// CreateHostScheme inserts a host/scheme and returns its id.
	CreateHostScheme(ctx context.Context, hs HostScheme) (HostSchemeID, error)
	// UpdateHostScheme replaces the stored row.
	UpdateHostScheme(ctx context.Context, hs HostScheme) error
	// SetSSLExpiration updates only the certificate expiration column.
	SetSSLExpiration(ctx context.Context, id HostSchemeID, expiresAt int64) error
	// DeleteHostScheme removes the host/scheme and cascades to its monitors.
	DeleteHostScheme(ctx context.Context, id HostSchemeID) error
	// DeleteHostSchemesByCustomer removes every host/scheme of the customer.
	DeleteHostSchemesByCustomer(ctx context.Context, customerID customers.ID) error
	// ListHostSchemes returns the customer's host/schemes ordered by id.
	ListHostSchemes(ctx context.Context, customerID customers.ID) ([]HostScheme, error)
	// ListHostSchemesWithCertificate returns every host/scheme with a known
	// certificate expiration, across all customers.
	ListHostSchemesWithCertificate(ctx context.Context) ([]HostScheme, error)

	// GetMonitor returns a monitor by id.
	GetMonitor(ctx context.Context, id MonitorID) (Monitor, error)
	// CreateMonitor inserts a monitor and returns its id.
	CreateMonitor(ctx context.Context, m Monitor) (MonitorID, error)
	// UpdateMonitor replaces the stored row.
	UpdateMonitor(ctx context.Context, m Monitor) error
	// DeleteMonitor removes the monitor.
	DeleteMonitor(ctx context.Context, id MonitorID) error
	// ListMonitors returns the customer's monitors ordered by user ordering.
	ListMonitors(ctx context.Context, customerID customers.ID) ([]Monitor, error)
	// ListMonitorsByHostScheme returns the host/scheme's monitors ordered by
	// user ordering.
	ListMonitorsByHostScheme(ctx context.Context, id HostSchemeID) ([]Monitor, error)
}
