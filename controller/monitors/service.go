// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package monitors maintains the configured probe targets of each customer
// and reconciles bulk configuration updates against the stored state.
package monitors

import (
	"context"
	"fmt"
	"sort"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
)

var mon = monkit.Package()

// Scheduler enqueues a deferred reconfiguration push for a customer.
type Scheduler interface {
	Schedule(customerID customers.ID, deactivate bool)
}

// Service validates monitor configuration and writes the minimum diff.
//
// architecture: Service
type Service struct {
	log       *zap.Logger
	db        DB
	customers customers.DB
	scheduler Scheduler
}

// NewService creates a new monitor configuration service.
func NewService(log *zap.Logger, db DB, customers customers.DB, scheduler Scheduler) *Service {
	return &Service{
		log:       log,
		db:        db,
		customers: customers,
		scheduler: scheduler,
	}
}

// UpdateEntry is one proposed monitor in a bulk configuration update.
type UpdateEntry struct {
	UserOrdering     int16
	URI              string
	Method           Method
	ContentCheckMode ContentCheckMode
	Keywords         [][]byte
	ContentType      ContentType
	UserAgent        string
	PostContent      []byte
}

// EntryError records why an entry was rejected, keyed by the user ordering
// the caller submitted.
type EntryError struct {
	UserOrdering int16  `json:"user_ordering"`
	Message      string `json:"message"`
}

// Update reconciles the customer's stored host/schemes and monitors against
// the proposed entries. Validation failures are returned as entry errors
// before anything is written; database failures past validation abort only
// the affected entry. An empty entry list deletes every host/scheme of the
// customer. On completion a reconfiguration push is enqueued.
func (service *Service) Update(ctx context.Context, customerID customers.ID, entries []UpdateEntry) (entryErrs []EntryError, err error) {
	defer mon.Task()(&ctx)(&err)

	caps, err := service.customers.Get(ctx, customerID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if len(entries) == 0 {
		if err := service.db.DeleteHostSchemesByCustomer(ctx, customerID); err != nil {
			return nil, Error.Wrap(err)
		}
		service.scheduler.Schedule(customerID, !caps.Active)
		return nil, nil
	}

	targets, entryErrs := validateEntries(caps, entries)
	if len(entryErrs) > 0 {
		return entryErrs, nil
	}

	existing, err := service.db.ListHostSchemes(ctx, customerID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	stored, err := service.db.ListMonitors(ctx, customerID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	hostSchemeByOrigin := make(map[string]HostScheme, len(existing))
	for _, hs := range existing {
		hostSchemeByOrigin[hs.URL] = hs
	}

	type monitorKey struct {
		hostScheme HostSchemeID
		slug       string
	}
	storedByKey := make(map[monitorKey]Monitor, len(stored))
	for _, m := range stored {
		storedByKey[monitorKey{m.HostSchemeID, m.Slug}] = m
	}

	referenced := make(map[HostSchemeID]bool)
	surviving := make(map[MonitorID]bool)

	var current HostScheme
	currentOK := false

	for i, entry := range targets {
		if entry.target.FullyQualified {
			hs, err := service.lookupOrCreateHostScheme(ctx, customerID, entry.target.Origin(), hostSchemeByOrigin)
			if err != nil {
				service.log.Error("creating host/scheme failed",
					zap.Int32("customer_id", int32(customerID)),
					zap.String("origin", entry.target.Origin()),
					zap.Error(err))
				entryErrs = append(entryErrs, EntryError{entry.userOrdering, "storing host/scheme failed"})
				currentOK = false
				continue
			}
			current, currentOK = hs, true
		} else if !currentOK {
			entryErrs = append(entryErrs, EntryError{entry.userOrdering, "no preceding host/scheme"})
			continue
		}

		referenced[current.ID] = true

		desired := Monitor{
			CustomerID:       customerID,
			HostSchemeID:     current.ID,
			UserOrdering:     int16(i),
			Slug:             entry.target.Slug(),
			Method:           entry.entry.Method,
			ContentCheckMode: entry.entry.ContentCheckMode,
			Keywords:         entry.entry.Keywords,
			ContentType:      entry.entry.ContentType,
			UserAgent:        entry.entry.UserAgent,
			PostContent:      entry.entry.PostContent,
		}

		if prev, ok := storedByKey[monitorKey{current.ID, desired.Slug}]; ok {
			surviving[prev.ID] = true
			desired.ID = prev.ID
			if prev.Equal(desired) {
				continue
			}
			if err := service.db.UpdateMonitor(ctx, desired); err != nil {
				service.log.Error("updating monitor failed",
					zap.Int32("monitor_id", int32(prev.ID)), zap.Error(err))
				entryErrs = append(entryErrs, EntryError{entry.userOrdering, "updating monitor failed"})
			}
			continue
		}

		if _, err := service.db.CreateMonitor(ctx, desired); err != nil {
			service.log.Error("creating monitor failed",
				zap.String("slug", desired.Slug), zap.Error(err))
			entryErrs = append(entryErrs, EntryError{entry.userOrdering, "creating monitor failed"})
		}
	}

	var sweepErrs errs.Group
	for _, m := range stored {
		if !surviving[m.ID] {
			sweepErrs.Add(service.db.DeleteMonitor(ctx, m.ID))
		}
	}
	for _, hs := range existing {
		if !referenced[hs.ID] {
			sweepErrs.Add(service.db.DeleteHostScheme(ctx, hs.ID))
		}
	}
	if err := sweepErrs.Err(); err != nil {
		return entryErrs, Error.Wrap(err)
	}

	service.scheduler.Schedule(customerID, !caps.Active)
	return entryErrs, nil
}

// lookupOrCreateHostScheme finds the customer's host/scheme for the origin,
// creating it when it is new, and keeps the byOrigin index current.
func (service *Service) lookupOrCreateHostScheme(ctx context.Context, customerID customers.ID, origin string, byOrigin map[string]HostScheme) (HostScheme, error) {
	if hs, ok := byOrigin[origin]; ok {
		return hs, nil
	}
	hs := HostScheme{CustomerID: customerID, URL: origin}
	id, err := service.db.CreateHostScheme(ctx, hs)
	if err != nil {
		return HostScheme{}, err
	}
	hs.ID = id
	byOrigin[origin] = hs
	return hs, nil
}

// sortedEntry pairs a parsed target with its original submission.
type sortedEntry struct {
	userOrdering int16
	entry        UpdateEntry
	target       Target
}

// validateEntries applies the per-entry rules and returns the entries sorted
// by their submitted ordering. Any returned entry errors mean nothing may be
// written.
func validateEntries(caps customers.Capabilities, entries []UpdateEntry) ([]sortedEntry, []EntryError) {
	var entryErrs []EntryError
	reject := func(ordering int16, format string, args ...interface{}) {
		entryErrs = append(entryErrs, EntryError{ordering, fmt.Sprintf(format, args...)})
	}

	seen := make(map[int16]bool, len(entries))
	sorted := make([]sortedEntry, 0, len(entries))

	for _, entry := range entries {
		if seen[entry.UserOrdering] {
			reject(entry.UserOrdering, "duplicate user ordering %d", entry.UserOrdering)
			continue
		}
		seen[entry.UserOrdering] = true

		target, err := ParseTarget(entry.URI)
		if err != nil {
			reject(entry.UserOrdering, "%v", err)
			continue
		}

		if entry.Method == MethodPost && !caps.SupportsPost {
			reject(entry.UserOrdering, "customer may not use the POST method")
			continue
		}
		if entry.ContentCheckMode.UsesContentMatch() && !caps.SupportsContentMatch {
			reject(entry.UserOrdering, "customer may not use content matching")
			continue
		}
		if entry.ContentCheckMode.UsesKeywords() && !caps.SupportsKeywords {
			reject(entry.UserOrdering, "customer may not use keyword checking")
			continue
		}

		sorted = append(sorted, sortedEntry{entry.UserOrdering, entry, target})
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].userOrdering < sorted[j].userOrdering
	})

	if len(sorted) > 0 && !sorted[0].target.FullyQualified {
		reject(sorted[0].userOrdering, "first entry must be fully qualified")
	}

	if len(entryErrs) > 0 {
		return nil, entryErrs
	}
	return sorted, nil
}
