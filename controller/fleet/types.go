// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package fleet administers the worker fleet and the customer to worker
// assignments.
package fleet

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
)

var (
	// Error is the fleet errs class.
	Error = errs.Class("fleet")
	// ErrNotFound is returned when a server, region or mapping does not exist.
	ErrNotFound = errs.Class("fleet not found")

	mon = monkit.Package()
)

// ServerID identifies a worker row. Zero is never a valid id.
type ServerID int32

// RegionID identifies a region row. Zero is never a valid id.
type RegionID int32

// ServerStatus is the lifecycle state of a worker.
type ServerStatus int

// Worker statuses.
const (
	StatusActive ServerStatus = iota
	StatusInactive
	StatusDefunct
)

var serverStatusNames = [...]string{"ACTIVE", "INACTIVE", "DEFUNCT"}

// String returns the wire string of the status.
func (s ServerStatus) String() string {
	if int(s) < 0 || int(s) >= len(serverStatusNames) {
		return serverStatusNames[StatusDefunct]
	}
	return serverStatusNames[s]
}

// ParseServerStatus parses a wire string into a worker status.
func ParseServerStatus(s string) (ServerStatus, error) {
	for i, name := range serverStatusNames {
		if name == s {
			return ServerStatus(i), nil
		}
	}
	return StatusDefunct, errs.New("unknown server status %q", s)
}

// Server is one polling worker.
type Server struct {
	ID       ServerID
	RegionID RegionID

	// Identifier is the host or address the worker is reached at. It keys
	// the dispatcher queue.
	Identifier string

	Status ServerStatus

	// CPULoading is the worker's self-reported load, used to pick the
	// least loaded worker during assignment.
	CPULoading float64
}

// Region is a namespace grouping workers.
type Region struct {
	ID    RegionID
	Label string
}

// Mapping assigns a customer to its workers. The primary is always a member.
type Mapping struct {
	CustomerID customers.ID
	Primary    ServerID
	Members    []ServerID
}

// HasMember reports whether the server is part of the mapping.
func (m Mapping) HasMember(id ServerID) bool {
	for _, member := range m.Members {
		if member == id {
			return true
		}
	}
	return false
}

// DB is the database for servers, regions and customer mappings.
//
// architecture: Database
type DB interface {
	// GetServer returns a server by id.
	GetServer(ctx context.Context, id ServerID) (Server, error)
	// CreateServer inserts a server and returns its id.
	CreateServer(ctx context.Context, server Server) (ServerID, error)
	// UpdateServer replaces the stored row.
	UpdateServer(ctx context.Context, server Server) error
	// DeleteServer removes the server.
	DeleteServer(ctx context.Context, id ServerID) error
	// ListServers returns every server ordered by id.
	ListServers(ctx context.Context) ([]Server, error)

	// CreateRegion inserts a region and returns its id.
	CreateRegion(ctx context.Context, region Region) (RegionID, error)
	// ListRegions returns every region ordered by id.
	ListRegions(ctx context.Context) ([]Region, error)

	// GetMapping returns the customer's mapping.
	GetMapping(ctx context.Context, customerID customers.ID) (Mapping, error)
	// SetMapping upserts the customer's mapping.
	SetMapping(ctx context.Context, mapping Mapping) error
	// DeleteMapping removes the customer's mapping.
	DeleteMapping(ctx context.Context, customerID customers.ID) error
	// ListMappingsByServer returns every mapping that includes the server.
	ListMappingsByServer(ctx context.Context, id ServerID) ([]Mapping, error)
}
