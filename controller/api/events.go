// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/monitors"
)

// eventJSON is the wire shape of a recorded event.
type eventJSON struct {
	ID         int32  `json:"id"`
	MonitorID  int32  `json:"monitor_id"`
	CustomerID int32  `json:"customer_id"`
	Timestamp  int64  `json:"timestamp"`
	EventType  string `json:"event_type"`
	Message    string `json:"message"`
	Hash       []byte `json:"hash,omitempty"`
}

func toEventJSON(event events.Event) eventJSON {
	return eventJSON{
		ID:         int32(event.ID),
		MonitorID:  int32(event.MonitorID),
		CustomerID: int32(event.CustomerID),
		Timestamp:  events.FromZoran(event.Timestamp),
		EventType:  event.Kind.String(),
		Message:    event.Message,
		Hash:       event.Hash,
	}
}

func toEventListJSON(list []events.Event) []eventJSON {
	out := make([]eventJSON, 0, len(list))
	for _, event := range list {
		out = append(out, toEventJSON(event))
	}
	return out
}

func (server *Server) eventReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonitorID     int32  `json:"monitor_id"`
		Timestamp     int64  `json:"timestamp"`
		EventType     string `json:"event_type"`
		MonitorStatus string `json:"monitor_status"`
		Message       string `json:"message"`
		Hash          []byte `json:"hash"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if !events.ValidUnix(req.Timestamp) {
		server.sendFailed(w, "timestamp out of range")
		return
	}
	kind := events.ParseKind(req.EventType)
	if kind == events.KindInvalid {
		server.sendFailed(w, "unknown event type")
		return
	}
	workerStatus, err := events.ParseStatus(req.MonitorStatus)
	if err != nil {
		server.sendFailed(w, "unknown monitor status")
		return
	}

	err = server.events.Report(r.Context(), monitors.MonitorID(req.MonitorID),
		req.Timestamp, kind, workerStatus, req.Message, req.Hash)
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) eventStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonitorID int32 `json:"monitor_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	status, err := server.events.Status(r.Context(), monitors.MonitorID(req.MonitorID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"monitor_status": status.String()})
}

// eventGet returns history for a monitor when monitor_id is set, otherwise
// for the whole customer.
func (server *Server) eventGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonitorID  int32 `json:"monitor_id"`
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	var list []events.Event
	var err error
	if req.MonitorID != 0 {
		list, err = server.events.HistoryByMonitor(r.Context(), monitors.MonitorID(req.MonitorID))
	} else {
		list, err = server.events.HistoryByCustomer(r.Context(), customers.ID(req.CustomerID))
	}
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"events": toEventListJSON(list)})
}
