// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package fleet

import (
	"context"

	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
)

// Activate recomputes the customer's mapping, persists the diff and pushes
// the configuration to every member. The deferred scheduler calls this after
// the debounce elapses.
func (service *Service) Activate(ctx context.Context, customerID customers.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}

	caps, err := service.customers.Get(ctx, customerID)
	if err != nil {
		return Error.Wrap(err)
	}
	stored, err := service.storedMapping(ctx, customerID)
	if err != nil {
		return err
	}

	mapping, removed := service.assignServers(caps, stored, nil)
	return service.applyActivation(ctx, caps, mapping, removed)
}

// Deactivate clears the customer's mapping and withdraws the customer from
// every previously assigned worker.
func (service *Service) Deactivate(ctx context.Context, customerID customers.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}

	stored, err := service.storedMapping(ctx, customerID)
	if err != nil {
		return err
	}
	if len(stored.Members) == 0 {
		return nil
	}

	if err := service.db.DeleteMapping(ctx, customerID); err != nil {
		return Error.Wrap(err)
	}
	for _, member := range stored.Members {
		service.postToServer(member, EndpointCustomerRemove,
			CustomerRemove{CustomerID: int32(customerID)}, "customer remove push")
	}
	return nil
}

// SetPaused pushes the pause flag to every assigned worker and persists it.
func (service *Service) SetPaused(ctx context.Context, customerID customers.ID, pause bool) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}

	stored, err := service.storedMapping(ctx, customerID)
	if err != nil {
		return err
	}
	for _, member := range stored.Members {
		service.postToServer(member, EndpointCustomerPause,
			CustomerPause{CustomerID: int32(customerID), Pause: pause}, "customer pause push")
	}
	return Error.Wrap(service.customers.SetPaused(ctx, customerID, pause))
}

// ReassignWorkload moves customers off a worker. With no explicit customers
// the worker is first flipped inactive and every customer it hosts moves.
// An explicit non-active target takes over the source's slots verbatim;
// otherwise assignment recomputes with the source excluded.
func (service *Service) ReassignWorkload(ctx context.Context, fromID ServerID, customerIDs []customers.ID, toID ServerID) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.load(ctx); err != nil {
		return err
	}
	if _, ok := service.serversByID[fromID]; !ok {
		return ErrNotFound.New("server %d", fromID)
	}

	if len(customerIDs) == 0 {
		mappings, err := service.db.ListMappingsByServer(ctx, fromID)
		if err != nil {
			return Error.Wrap(err)
		}
		if err := service.setServerStatusLocked(ctx, fromID, StatusInactive); err != nil {
			return err
		}
		for _, mapping := range mappings {
			customerIDs = append(customerIDs, mapping.CustomerID)
		}
	}

	target, haveTarget := service.serversByID[toID]
	swapTarget := haveTarget && target.Status != StatusActive

	for _, customerID := range customerIDs {
		caps, err := service.customers.Get(ctx, customerID)
		if err != nil {
			service.log.Warn("skipping reassignment of unknown customer",
				zap.Int32("customer_id", int32(customerID)), zap.Error(err))
			continue
		}
		stored, err := service.storedMapping(ctx, customerID)
		if err != nil {
			return err
		}

		var mapping Mapping
		var removed []ServerID
		if swapTarget {
			mapping, removed = swapMember(stored, fromID, toID)
		} else {
			mapping, removed = service.assignServers(caps, stored, map[ServerID]bool{fromID: true})
		}
		if err := service.applyActivation(ctx, caps, mapping, removed); err != nil {
			return err
		}
	}
	return nil
}

// storedMapping loads the customer's mapping, mapping absence to an empty
// one. Callers hold service.mu.
func (service *Service) storedMapping(ctx context.Context, customerID customers.ID) (Mapping, error) {
	mapping, err := service.db.GetMapping(ctx, customerID)
	if err != nil {
		if ErrNotFound.Has(err) {
			return Mapping{CustomerID: customerID}, nil
		}
		return Mapping{}, Error.Wrap(err)
	}
	return mapping, nil
}

// applyActivation persists the mapping and pushes the resulting commands:
// a configuration body to every member (the primary's carries the ping and
// ssl_expiration flags), a removal to every dropped worker and a pause to
// every member of a paused customer. Callers hold service.mu.
func (service *Service) applyActivation(ctx context.Context, caps customers.Capabilities, mapping Mapping, removed []ServerID) error {
	if len(mapping.Members) == 0 {
		if err := service.db.DeleteMapping(ctx, mapping.CustomerID); err != nil {
			return Error.Wrap(err)
		}
	} else if err := service.db.SetMapping(ctx, mapping); err != nil {
		return Error.Wrap(err)
	}

	for _, member := range mapping.Members {
		body, err := service.buildCustomerAdd(ctx, caps, member == mapping.Primary)
		if err != nil {
			return err
		}
		service.postToServer(member, EndpointCustomerAdd, body, "customer add push")
	}
	for _, member := range removed {
		service.postToServer(member, EndpointCustomerRemove,
			CustomerRemove{CustomerID: int32(mapping.CustomerID)}, "customer remove push")
	}
	if caps.Paused {
		for _, member := range mapping.Members {
			service.postToServer(member, EndpointCustomerPause,
				CustomerPause{CustomerID: int32(mapping.CustomerID), Pause: true}, "customer pause push")
		}
	}
	return nil
}

// postToServer resolves the member's identifier and posts. Workers that left
// the snapshot are skipped. Callers hold service.mu.
func (service *Service) postToServer(id ServerID, endpoint string, body interface{}, logText string) {
	server, ok := service.serversByID[id]
	if !ok {
		service.log.Debug("skipping push to unknown server", zap.Int32("server_id", int32(id)))
		return
	}
	service.dispatcher.Post(server.Identifier, endpoint, body, logText)
}

// swapMember replaces from with to in the mapping, deduplicating when the
// target is already a member.
func swapMember(stored Mapping, from, to ServerID) (mapping Mapping, removed []ServerID) {
	mapping = Mapping{CustomerID: stored.CustomerID, Primary: stored.Primary}
	for _, member := range stored.Members {
		switch {
		case member == from:
			if !mapping.HasMember(to) {
				mapping.Members = append(mapping.Members, to)
			}
			removed = append(removed, from)
		case member == to && mapping.HasMember(to):
		default:
			mapping.Members = append(mapping.Members, member)
		}
	}
	if mapping.Primary == from {
		mapping.Primary = to
	}
	if !mapping.HasMember(mapping.Primary) && len(mapping.Members) > 0 {
		mapping.Primary = mapping.Members[0]
	}
	return mapping, removed
}
