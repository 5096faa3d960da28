// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package resources

import (
	"container/list"
	"context"
	"sync"

	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/shared/bitset"
)

// Config holds configurable values for the resource service.
type Config struct {
	CacheCapacity int `help:"how many customers' active-resource bitsets stay cached" default:"1000"`
}

// cacheEntry is one customer's bitset with its LRU slot.
type cacheEntry struct {
	customerID customers.ID
	active     bitset.Set
	order      *list.Element
}

// Service answers which resource streams have data, caching per-customer
// bitsets with LRU eviction, and records new samples.
//
// architecture: Service
type Service struct {
	log    *zap.Logger
	db     DB
	config Config

	mu    sync.Mutex
	cache map[customers.ID]*cacheEntry
	order *list.List
}

// NewService creates a new resource service.
func NewService(log *zap.Logger, db DB, config Config) *Service {
	return &Service{
		log:    log,
		db:     db,
		config: config,
		cache:  make(map[customers.ID]*cacheEntry, config.CacheCapacity),
		order:  list.New(),
	}
}

// Available returns the customer's active value types as a bitset, filling
// the cache from the store on a miss.
func (service *Service) Available(ctx context.Context, customerID customers.ID) (_ bitset.Set, err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	if entry, ok := service.cache[customerID]; ok {
		service.order.MoveToFront(entry.order)
		active := entry.active
		service.mu.Unlock()
		return active, nil
	}
	service.mu.Unlock()

	// The store query runs outside the lock; concurrent misses for the
	// same customer both fill, last one wins.
	valueTypes, err := service.db.DistinctValueTypes(ctx, customerID)
	if err != nil {
		return bitset.Set{}, Error.Wrap(err)
	}
	var active bitset.Set
	for _, valueType := range valueTypes {
		active.Include(valueType)
	}

	service.mu.Lock()
	service.fill(customerID, active)
	service.mu.Unlock()
	return active, nil
}

// Record stores a sample and keeps a cached bitset current in place.
func (service *Service) Record(ctx context.Context, resource Resource) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := service.db.Upsert(ctx, resource); err != nil {
		return Error.Wrap(err)
	}

	service.mu.Lock()
	if entry, ok := service.cache[resource.CustomerID]; ok {
		entry.active.Include(resource.ValueType)
		service.order.MoveToFront(entry.order)
	}
	service.mu.Unlock()
	return nil
}

// List returns the customer's samples of one value type inside the window.
func (service *Service) List(ctx context.Context, customerID customers.ID, valueType uint8, fromUnix, toUnix int64) (_ []Resource, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.List(ctx, customerID, valueType, fromUnix, toUnix)
}

// PurgeCustomer removes every sample of the customer and evicts its bitset.
func (service *Service) PurgeCustomer(ctx context.Context, customerID customers.ID) (deleted int64, err error) {
	defer mon.Task()(&ctx)(&err)

	deleted, err = service.db.DeleteByCustomer(ctx, customerID)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	service.Evict(customerID)
	return deleted, nil
}

// Evict drops the customer's cached bitset. The next Available rebuilds it
// from the store.
func (service *Service) Evict(customerID customers.ID) {
	service.mu.Lock()
	defer service.mu.Unlock()

	if entry, ok := service.cache[customerID]; ok {
		service.order.Remove(entry.order)
		delete(service.cache, customerID)
	}
}

// fill inserts a bitset, evicting the least recently used entry beyond
// capacity. Callers hold service.mu.
func (service *Service) fill(customerID customers.ID, active bitset.Set) {
	if entry, ok := service.cache[customerID]; ok {
		entry.active = active
		service.order.MoveToFront(entry.order)
		return
	}

	entry := &cacheEntry{customerID: customerID, active: active}
	entry.order = service.order.PushFront(entry)
	service.cache[customerID] = entry

	for service.config.CacheCapacity > 0 && service.order.Len() > service.config.CacheCapacity {
		oldest := service.order.Back()
		service.order.Remove(oldest)
		delete(service.cache, oldest.Value.(*cacheEntry).customerID)
	}
}
