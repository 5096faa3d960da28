// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package events turns worker observations into durable history and
// upstream notifications.
package events

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

var (
	// Error is the events errs class.
	Error = errs.Class("events")
	// ErrNotFound is returned when an event or monitor status does not exist.
	ErrNotFound = errs.Class("event not found")

	mon = monkit.Package()
)

// ID identifies an event row. Zero is never a valid id.
type ID int32

// Event is a durable record of a notable probe outcome or administrative
// action. Events are immutable once written.
type Event struct {
	ID         ID
	MonitorID  monitors.MonitorID
	CustomerID customers.ID

	// Timestamp is in zoran seconds.
	Timestamp uint32

	Kind    Kind
	Message string

	// Hash is the content hash the worker observed; empty for kinds that
	// carry none.
	Hash []byte
}

// Status is the derived state of a monitor.
type Status int

// Monitor statuses.
const (
	StatusUnknown Status = iota
	StatusWorking
	StatusFailed
)

var statusNames = [...]string{"UNKNOWN", "WORKING", "FAILED"}

// String returns the wire string of the status.
func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return statusNames[StatusUnknown]
	}
	return statusNames[s]
}

// ParseStatus parses a wire string into a status. Parsing upper-cases the
// input and maps `-` to `_`; unknown strings yield an error.
func ParseStatus(s string) (Status, error) {
	switch normalizeWire(s) {
	case "UNKNOWN":
		return StatusUnknown, nil
	case "WORKING":
		return StatusWorking, nil
	case "FAILED":
		return StatusFailed, nil
	}
	return StatusUnknown, errs.New("unknown monitor status %q", s)
}

// DB is the database for events and per-monitor statuses.
//
// architecture: Database
type DB interface {
	// Record inserts the event and, when the kind transitions the
	// monitor's derived status, upserts the status row in the same
	// transaction.
	Record(ctx context.Context, event Event) (ID, error)

	// Get returns an event by id.
	Get(ctx context.Context, id ID) (Event, error)
	// ListByMonitor returns the monitor's newest events, newest first.
	ListByMonitor(ctx context.Context, monitorID monitors.MonitorID, limit int) ([]Event, error)
	// ListByCustomer returns the customer's newest events, newest first.
	ListByCustomer(ctx context.Context, customerID customers.ID, limit int) ([]Event, error)

	// LatestByMonitor returns the monitor's newest event whose kind is one
	// of kinds.
	LatestByMonitor(ctx context.Context, monitorID monitors.MonitorID, kinds []Kind) (Event, error)
	// LatestByHostScheme returns the newest event of any monitor sharing a
	// host/scheme with the given monitor whose kind is one of kinds.
	LatestByHostScheme(ctx context.Context, monitorID monitors.MonitorID, kinds []Kind) (Event, error)

	// GetStatus returns the derived status of the monitor; monitors that
	// never transitioned report StatusUnknown.
	GetStatus(ctx context.Context, monitorID monitors.MonitorID) (Status, error)

	// DeleteBefore removes events older than the given zoran timestamp and
	// returns how many were removed.
	DeleteBefore(ctx context.Context, before uint32) (int64, error)
}
