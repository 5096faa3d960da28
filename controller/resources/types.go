// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package resources stores per-customer resource samples and tracks which
// value types have data.
package resources

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
)

var (
	// Error is the resources errs class.
	Error = errs.Class("resources")

	mon = monkit.Package()
)

// Resource is one sample of a customer's resource stream. Samples are keyed
// by (customer, value type, hour): the unix timestamp is split into
// Timestamp1 = t/3600 and Timestamp2 = t%3600, and a later sample in the
// same hour replaces the earlier one.
type Resource struct {
	CustomerID customers.ID
	ValueType  uint8
	Value      float64
	Timestamp1 int64
	Timestamp2 int64
}

// NewResource builds a sample from a unix timestamp.
func NewResource(customerID customers.ID, valueType uint8, value float64, unix int64) Resource {
	return Resource{
		CustomerID: customerID,
		ValueType:  valueType,
		Value:      value,
		Timestamp1: unix / 3600,
		Timestamp2: unix % 3600,
	}
}

// Unix reassembles the sample's unix timestamp.
func (r Resource) Unix() int64 {
	return r.Timestamp1*3600 + r.Timestamp2
}

// DB is the database for resource samples.
//
// architecture: Database
type DB interface {
	// Upsert stores the sample, replacing an earlier one in the same hour.
	Upsert(ctx context.Context, resource Resource) error
	// DistinctValueTypes returns the value types the customer has samples
	// for, ascending.
	DistinctValueTypes(ctx context.Context, customerID customers.ID) ([]uint8, error)
	// List returns the customer's samples of one value type inside the
	// unix window, oldest first.
	List(ctx context.Context, customerID customers.ID, valueType uint8, fromUnix, toUnix int64) ([]Resource, error)
	// DeleteByCustomer removes every sample of the customer.
	DeleteByCustomer(ctx context.Context, customerID customers.ID) (int64, error)
	// DeleteOlderThan removes samples older than the unix timestamp and
	// returns which customers lost rows.
	DeleteOlderThan(ctx context.Context, beforeUnix int64) ([]customers.ID, error)
}
