// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

// Config holds configurable values for event processing.
type Config struct {
	UpstreamIdentifier string `help:"identifier of the upstream notification receiver" default:"upstream"`
	UpstreamEndpoint   string `help:"endpoint events are reported to on the upstream receiver" default:"/event/notify"`
	HistoryLimit       int    `help:"how many events a history listing returns at most" default:"100"`
}

// Notifier posts an upstream notification without blocking the caller.
type Notifier interface {
	Post(identifier, endpoint string, body interface{}, logText string)
}

// Notification is the upstream body sent for reported events.
type Notification struct {
	CustomerID int32  `json:"customer_id"`
	MonitorID  int32  `json:"monitor_id"`
	EventType  string `json:"event_type"`
	Path       string `json:"path"`
	Authority  string `json:"authority"`
	Message    string `json:"message"`
	Timestamp  uint32 `json:"timestamp"`
}

// Service funnels worker reports through disposition, the store and the
// upstream notifier. Event ingress is single-threaded: Report serializes on a
// process-wide mutex so duplicate suppression is race-free.
//
// architecture: Service
type Service struct {
	log      *zap.Logger
	db       DB
	monitors monitors.DB
	notifier Notifier
	config   Config

	checkers map[Kind]checker

	// reportMu serializes disposition, record and notify.
	reportMu sync.Mutex
}

// NewService creates a new event service.
func NewService(log *zap.Logger, db DB, monitorsDB monitors.DB, notifier Notifier, config Config) *Service {
	return &Service{
		log:      log,
		db:       db,
		monitors: monitorsDB,
		notifier: notifier,
		config:   config,
		checkers: buildCheckers(),
	}
}

// Report disposes of one worker report. Unknown monitors are silently
// accepted: a delete may race an in-flight worker report, and an error here
// would only feed a retry loop.
func (service *Service) Report(ctx context.Context, monitorID monitors.MonitorID, unixTs int64, kind Kind, workerStatus Status, message string, hash []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.reportMu.Lock()
	defer service.reportMu.Unlock()

	monitor, err := service.monitors.GetMonitor(ctx, monitorID)
	if err != nil {
		if monitors.ErrNotFound.Has(err) {
			service.log.Debug("report for unknown monitor accepted",
				zap.Int32("monitor_id", int32(monitorID)),
				zap.Stringer("kind", kind))
			return nil
		}
		return Error.Wrap(err)
	}

	disposition, err := service.Decide(ctx, kind, workerStatus, monitorID, hash)
	if err != nil {
		return err
	}

	switch disposition {
	case DispositionIgnore:
		return nil
	case DispositionFailed:
		return Error.New("cannot classify event kind %q", kind)
	}

	event := Event{
		MonitorID:  monitorID,
		CustomerID: monitor.CustomerID,
		Timestamp:  ToZoran(unixTs),
		Kind:       kind,
		Message:    message,
		Hash:       hash,
	}
	event.ID, err = service.db.Record(ctx, event)
	if err != nil {
		return Error.Wrap(err)
	}

	if disposition == DispositionRecordAndReport {
		service.notify(ctx, monitor, event)
	}
	return nil
}

// Raise records an event and reports it upstream, bypassing disposition.
// The SSL sweeper uses it: expiration transitions are detected by the
// sweeper itself, not derived from worker history.
func (service *Service) Raise(ctx context.Context, monitor monitors.Monitor, unixTs int64, kind Kind, message string) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.reportMu.Lock()
	defer service.reportMu.Unlock()

	event := Event{
		MonitorID:  monitor.ID,
		CustomerID: monitor.CustomerID,
		Timestamp:  ToZoran(unixTs),
		Kind:       kind,
		Message:    message,
	}
	event.ID, err = service.db.Record(ctx, event)
	if err != nil {
		return Error.Wrap(err)
	}

	service.notify(ctx, monitor, event)
	return nil
}

// notify enqueues the upstream notification for a recorded event.
func (service *Service) notify(ctx context.Context, monitor monitors.Monitor, event Event) {
	authority := ""
	hs, err := service.monitors.GetHostScheme(ctx, monitor.HostSchemeID)
	if err != nil {
		service.log.Warn("resolving host/scheme for notification failed",
			zap.Int32("host_scheme_id", int32(monitor.HostSchemeID)), zap.Error(err))
	} else {
		authority = hs.URL
	}

	service.notifier.Post(service.config.UpstreamIdentifier, service.config.UpstreamEndpoint,
		Notification{
			CustomerID: int32(event.CustomerID),
			MonitorID:  int32(event.MonitorID),
			EventType:  event.Kind.Tag(),
			Path:       monitor.Slug,
			Authority:  authority,
			Message:    event.Message,
			Timestamp:  event.Timestamp,
		},
		"upstream event notification")
}

// Status returns the derived status of a monitor.
func (service *Service) Status(ctx context.Context, monitorID monitors.MonitorID) (_ Status, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.GetStatus(ctx, monitorID)
}

// Get returns a single event.
func (service *Service) Get(ctx context.Context, id ID) (_ Event, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.Get(ctx, id)
}

// HistoryByMonitor returns the monitor's newest events, newest first.
func (service *Service) HistoryByMonitor(ctx context.Context, monitorID monitors.MonitorID) (_ []Event, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.ListByMonitor(ctx, monitorID, service.config.HistoryLimit)
}

// HistoryByCustomer returns the customer's newest events, newest first.
func (service *Service) HistoryByCustomer(ctx context.Context, customerID customers.ID) (_ []Event, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.ListByCustomer(ctx, customerID, service.config.HistoryLimit)
}
