// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package fleet

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

// Dispatcher pushes commands to workers without blocking the caller.
type Dispatcher interface {
	Post(identifier, endpoint string, body interface{}, logText string)
	PostState(identifier, endpoint, logText string)
	Expunge(identifier string)
}

// Service administers the worker fleet. A single mutex guards the in-memory
// snapshot; every mutation updates the snapshot and the store inside the
// same critical section so the two never drift.
//
// architecture: Service
type Service struct {
	log        *zap.Logger
	db         DB
	customers  customers.DB
	monitors   monitors.DB
	dispatcher Dispatcher

	mu     sync.Mutex
	loaded bool

	serversByID      map[ServerID]Server
	serverIDByIdent  map[string]ServerID
	activeByRegion   map[RegionID]map[ServerID]struct{}
	inactiveByRegion map[RegionID]map[ServerID]struct{}
	defunctByRegion  map[RegionID]map[ServerID]struct{}
	regionIndexByID  map[RegionID]int
}

// NewService creates a new fleet service. The snapshot loads lazily on first
// use.
func NewService(log *zap.Logger, db DB, customersDB customers.DB, monitorsDB monitors.DB, dispatcher Dispatcher) *Service {
	return &Service{
		log:        log,
		db:         db,
		customers:  customersDB,
		monitors:   monitorsDB,
		dispatcher: dispatcher,
	}
}

// load rebuilds the snapshot from the store. Callers hold service.mu.
func (service *Service) load(ctx context.Context) error {
	if service.loaded {
		return nil
	}

	servers, err := service.db.ListServers(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	service.serversByID = make(map[ServerID]Server, len(servers))
	service.serverIDByIdent = make(map[string]ServerID, len(servers))
	service.activeByRegion = make(map[RegionID]map[ServerID]struct{})
	service.inactiveByRegion = make(map[RegionID]map[ServerID]struct{})
	service.defunctByRegion = make(map[RegionID]map[ServerID]struct{})

	for _, server := range servers {
		service.cacheServer(server)
	}
	service.recomputeRegionIndex()
	service.loaded = true
	return nil
}

// cacheServer inserts or replaces the server in the snapshot. Callers hold
// service.mu.
func (service *Service) cacheServer(server Server) {
	if prev, ok := service.serversByID[server.ID]; ok {
		delete(service.regionSet(prev.Status, prev.RegionID), prev.ID)
		if prev.Identifier != server.Identifier {
			delete(service.serverIDByIdent, prev.Identifier)
		}
	}
	service.serversByID[server.ID] = server
	service.serverIDByIdent[server.Identifier] = server.ID
	service.regionSet(server.Status, server.RegionID)[server.ID] = struct{}{}
}

// uncacheServer drops the server from the snapshot. Callers hold service.mu.
func (service *Service) uncacheServer(server Server) {
	delete(service.regionSet(server.Status, server.RegionID), server.ID)
	delete(service.serverIDByIdent, server.Identifier)
	delete(service.serversByID, server.ID)
}

// regionSet returns the per-region id set for the status, creating it on
// demand. Callers hold service.mu.
func (service *Service) regionSet(status ServerStatus, region RegionID) map[ServerID]struct{} {
	var byRegion map[RegionID]map[ServerID]struct{}
	switch status {
	case StatusActive:
		byRegion = service.activeByRegion
	case StatusInactive:
		byRegion = service.inactiveByRegion
	default:
		byRegion = service.defunctByRegion
	}
	set, ok := byRegion[region]
	if !ok {
		set = make(map[ServerID]struct{})
		byRegion[region] = set
	}
	return set
}

// recomputeRegionIndex reassigns the deterministic 0-based index of every
// region with at least one active worker, region id ascending. It reports
// whether the assignment changed. Callers hold service.mu.
func (service *Service) recomputeRegionIndex() (changed bool) {
	active := make([]RegionID, 0, len(service.activeByRegion))
	for region, set := range service.activeByRegion {
		if len(set) > 0 {
			active = append(active, region)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })

	index := make(map[RegionID]int, len(active))
	for i, region := range active {
		index[region] = i
	}

	if len(index) != len(service.regionIndexByID) {
		changed = true
	} else {
		for region, i := range index {
			if prev, ok := service.regionIndexByID[region]; !ok || prev != i {
				changed = true
				break
			}
		}
	}
	service.regionIndexByID = index
	return changed
}

// pushRegionChange sends the worker its region layout. Callers hold
// service.mu.
func (service *Service) pushRegionChange(server Server) {
	service.dispatcher.Post(server.Identifier, EndpointRegionChange,
		RegionChange{
			RegionIndex:   service.regionIndexByID[server.RegionID],
			NumberRegions: len(service.regionIndexByID),
		},
		"region change push")
}

// GetServer returns a server by id.
func (service *Service) GetServer(ctx context.Context, id ServerID) (_ Server, err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return Server{}, err
	}
	server, ok := service.serversByID[id]
	if !ok {
		return Server{}, ErrNotFound.New("server %d", id)
	}
	return server, nil
}

// ListServers returns every server ordered by id.
func (service *Service) ListServers(ctx context.Context) (_ []Server, err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return nil, err
	}
	servers := make([]Server, 0, len(service.serversByID))
	for _, server := range service.serversByID {
		servers = append(servers, server)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })
	return servers, nil
}

// AddServer stores a new worker and commands it inactive: a worker must
// introduce itself before going active.
func (service *Service) AddServer(ctx context.Context, server Server) (_ Server, err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return Server{}, err
	}
	if _, exists := service.serverIDByIdent[server.Identifier]; exists {
		return Server{}, Error.New("server identifier %q already in use", server.Identifier)
	}

	server.ID, err = service.db.CreateServer(ctx, server)
	if err != nil {
		return Server{}, Error.Wrap(err)
	}
	service.cacheServer(server)
	service.recomputeRegionIndex()

	service.dispatcher.PostState(server.Identifier, EndpointStateInactive, "initial inactive push")
	return server, nil
}

// ModifyServer updates a worker's region, identifier and loading. Only
// non-active workers may be modified; status changes go through
// SetServerStatus.
func (service *Service) ModifyServer(ctx context.Context, server Server) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}
	current, ok := service.serversByID[server.ID]
	if !ok {
		return ErrNotFound.New("server %d", server.ID)
	}
	if current.Status == StatusActive {
		return Error.New("server %d is active and cannot be modified", server.ID)
	}
	if other, exists := service.serverIDByIdent[server.Identifier]; exists && other != server.ID {
		return Error.New("server identifier %q already in use", server.Identifier)
	}

	server.Status = current.Status
	if err := service.db.UpdateServer(ctx, server); err != nil {
		return Error.Wrap(err)
	}
	service.cacheServer(server)
	return nil
}

// RemoveServer deletes a worker. Only defunct workers may be deleted.
func (service *Service) RemoveServer(ctx context.Context, id ServerID) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}
	server, ok := service.serversByID[id]
	if !ok {
		return ErrNotFound.New("server %d", id)
	}
	if server.Status != StatusDefunct {
		return Error.New("server %d is %s, only defunct servers may be deleted", id, server.Status)
	}

	if err := service.db.DeleteServer(ctx, id); err != nil {
		return Error.Wrap(err)
	}
	service.uncacheServer(server)
	service.dispatcher.Expunge(server.Identifier)
	return nil
}

// Heartbeat records a worker's self-reported CPU loading.
func (service *Service) Heartbeat(ctx context.Context, identifier string, cpuLoading float64) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}
	id, ok := service.serverIDByIdent[identifier]
	if !ok {
		return ErrNotFound.New("server %q", identifier)
	}
	server := service.serversByID[id]
	server.CPULoading = cpuLoading

	if err := service.db.UpdateServer(ctx, server); err != nil {
		return Error.Wrap(err)
	}
	service.cacheServer(server)
	return nil
}

// CreateRegion stores a new region namespace.
func (service *Service) CreateRegion(ctx context.Context, region Region) (_ RegionID, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := service.db.CreateRegion(ctx, region)
	return id, Error.Wrap(err)
}

// ListRegions returns every region ordered by id.
func (service *Service) ListRegions(ctx context.Context) (_ []Region, err error) {
	defer mon.Task()(&ctx)(&err)

	regions, err := service.db.ListRegions(ctx)
	return regions, Error.Wrap(err)
}

// SetServerStatus transitions a worker between lifecycle states and pushes
// the commands the transition requires.
func (service *Service) SetServerStatus(ctx context.Context, id ServerID, status ServerStatus) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	return service.setServerStatusLocked(ctx, id, status)
}

// setServerStatusLocked is SetServerStatus for callers already holding
// service.mu.
func (service *Service) setServerStatusLocked(ctx context.Context, id ServerID, status ServerStatus) (err error) {
	if err := service.load(ctx); err != nil {
		return err
	}
	server, ok := service.serversByID[id]
	if !ok {
		return ErrNotFound.New("server %d", id)
	}
	if server.Status == status {
		return nil
	}

	server.Status = status
	if err := service.db.UpdateServer(ctx, server); err != nil {
		return Error.Wrap(err)
	}
	service.cacheServer(server)
	layoutChanged := service.recomputeRegionIndex()

	switch status {
	case StatusActive:
		service.pushRegionChange(server)
		if err := service.pushMappedCustomers(ctx, server); err != nil {
			return err
		}
	case StatusInactive, StatusDefunct:
		service.dispatcher.PostState(server.Identifier, EndpointStateInactive, "inactive state push")
	}

	if layoutChanged {
		for otherID := range service.serversByID {
			other := service.serversByID[otherID]
			if other.Status == StatusActive && other.ID != id {
				service.pushRegionChange(other)
			}
		}
	}
	return nil
}

// pushMappedCustomers sends a configuration push for every customer mapped
// to the worker. Callers hold service.mu.
func (service *Service) pushMappedCustomers(ctx context.Context, server Server) error {
	mappings, err := service.db.ListMappingsByServer(ctx, server.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	for _, mapping := range mappings {
		caps, err := service.customers.Get(ctx, mapping.CustomerID)
		if err != nil {
			service.log.Warn("skipping customer push for unknown customer",
				zap.Int32("customer_id", int32(mapping.CustomerID)), zap.Error(err))
			continue
		}
		body, err := service.buildCustomerAdd(ctx, caps, mapping.Primary == server.ID)
		if err != nil {
			return err
		}
		service.dispatcher.Post(server.Identifier, EndpointCustomerAdd, body, "customer add push")
	}
	return nil
}
