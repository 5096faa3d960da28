// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package fleet

import (
	"sort"

	"zoran.io/zoran/controller/customers"
)

// lowestCPU returns the least loaded active server, ties broken by lowest
// id. Zero when no candidate qualifies. Callers hold service.mu.
func (service *Service) lowestCPU(candidates map[ServerID]struct{}, exclude map[ServerID]bool) ServerID {
	var best ServerID
	for id := range candidates {
		if exclude[id] {
			continue
		}
		server := service.serversByID[id]
		if server.Status != StatusActive {
			continue
		}
		if best == 0 ||
			server.CPULoading < service.serversByID[best].CPULoading ||
			(server.CPULoading == service.serversByID[best].CPULoading && id < best) {
			best = id
		}
	}
	return best
}

// allActive returns the id set of every active server. Callers hold
// service.mu.
func (service *Service) allActive() map[ServerID]struct{} {
	all := make(map[ServerID]struct{})
	for _, set := range service.activeByRegion {
		for id := range set {
			all[id] = struct{}{}
		}
	}
	return all
}

// assignServers computes the customer's new mapping from the current
// snapshot, honoring the customer's region policy, and returns the members
// that dropped out of the old mapping. Callers hold service.mu.
func (service *Service) assignServers(caps customers.Capabilities, existing Mapping, exclude map[ServerID]bool) (mapping Mapping, removed []ServerID) {
	mapping = Mapping{CustomerID: existing.CustomerID}
	if mapping.CustomerID == 0 {
		mapping.CustomerID = caps.ID
	}

	if caps.SupportsMultiRegion {
		mapping.Members, removed = service.assignMultiRegion(existing, exclude)
	} else {
		mapping.Members, removed = service.assignSingleRegion(existing, exclude)
	}

	mapping.Primary = existing.Primary
	if !mapping.HasMember(mapping.Primary) {
		mapping.Primary = service.lowestMember(mapping.Members)
	}
	return mapping, removed
}

// assignSingleRegion picks the least loaded active worker overall, keeping
// the existing assignment when it already is that worker.
func (service *Service) assignSingleRegion(existing Mapping, exclude map[ServerID]bool) (members, removed []ServerID) {
	best := service.lowestCPU(service.allActive(), exclude)
	if best != 0 {
		members = []ServerID{best}
	}
	for _, member := range existing.Members {
		if member != best {
			removed = append(removed, member)
		}
	}
	return members, removed
}

// assignMultiRegion keeps one active worker per active region, pruning
// members that are duplicates within a region, no longer active or excluded,
// and filling every uncovered active region with its least loaded worker.
func (service *Service) assignMultiRegion(existing Mapping, exclude map[ServerID]bool) (members, removed []ServerID) {
	covered := make(map[RegionID]bool)
	for _, member := range existing.Members {
		server, ok := service.serversByID[member]
		keep := ok && server.Status == StatusActive && !exclude[member] &&
			service.regionHasIndex(server.RegionID) && !covered[server.RegionID]
		if !keep {
			removed = append(removed, member)
			continue
		}
		covered[server.RegionID] = true
		members = append(members, member)
	}

	regions := make([]RegionID, 0, len(service.regionIndexByID))
	for region := range service.regionIndexByID {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })

	for _, region := range regions {
		if covered[region] {
			continue
		}
		if best := service.lowestCPU(service.activeByRegion[region], exclude); best != 0 {
			members = append(members, best)
			covered[region] = true
		}
	}
	return members, removed
}

// regionHasIndex reports whether the region is part of the active layout.
func (service *Service) regionHasIndex(region RegionID) bool {
	_, ok := service.regionIndexByID[region]
	return ok
}

// lowestMember returns the least loaded member, zero for an empty list.
func (service *Service) lowestMember(members []ServerID) ServerID {
	candidates := make(map[ServerID]struct{}, len(members))
	for _, member := range members {
		candidates[member] = struct{}{}
	}
	return service.lowestCPU(candidates, nil)
}
