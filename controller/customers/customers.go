// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package customers contains customer capability records.
package customers

import (
	"context"

	"github.com/zeebo/errs"
)

// ErrNotFound is returned when a customer does not exist.
var ErrNotFound = errs.Class("customer not found")

// ID is a customer identifier. Zero is never a valid id.
type ID int32

// Capabilities describes a customer and the checks it is entitled to.
type Capabilities struct {
	ID ID

	// PollingInterval is how often workers probe this customer's monitors,
	// in seconds.
	PollingInterval int32

	Active bool
	Paused bool

	SupportsPost          bool
	SupportsContentMatch  bool
	SupportsKeywords      bool
	SupportsPing          bool
	SupportsSSLExpiration bool
	SupportsLatency       bool
	SupportsMaintenance   bool
	SupportsMultiRegion   bool
}

// DB is the database for customer capabilities.
//
// architecture: Database
type DB interface {
	// Get returns the capabilities for the given customer.
	Get(ctx context.Context, id ID) (Capabilities, error)
	// Create inserts a new customer and returns its id.
	Create(ctx context.Context, caps Capabilities) (ID, error)
	// Update replaces the stored capabilities row.
	Update(ctx context.Context, caps Capabilities) error
	// SetPaused flips only the paused flag.
	SetPaused(ctx context.Context, id ID, paused bool) error
	// Delete removes the customer and cascades to everything it owns.
	Delete(ctx context.Context, id ID) error
	// List returns all customers.
	List(ctx context.Context) ([]Capabilities, error)
}
