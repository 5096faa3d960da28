// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"zoran.io/zoran/controller/customers"
)

// multipleList bundles everything a dashboard needs for one customer: the
// host/schemes, monitors, recent events and per-monitor statuses.
func (server *Server) multipleList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}
	customerID := customers.ID(req.CustomerID)
	ctx := r.Context()

	hostSchemes, err := server.monitors.ListHostSchemes(ctx, customerID)
	if err != nil {
		server.sendError(w, err)
		return
	}
	monitorList, err := server.monitors.ListMonitors(ctx, customerID)
	if err != nil {
		server.sendError(w, err)
		return
	}
	eventList, err := server.events.HistoryByCustomer(ctx, customerID)
	if err != nil {
		server.sendError(w, err)
		return
	}

	statuses := make(map[int32]string, len(monitorList))
	for _, m := range monitorList {
		status, err := server.events.Status(ctx, m.ID)
		if err != nil {
			server.sendError(w, err)
			return
		}
		statuses[int32(m.ID)] = status.String()
	}

	server.sendOK(w, response{
		"host_schemes":     toHostSchemeListJSON(hostSchemes),
		"monitors":         toMonitorListJSON(monitorList),
		"events":           toEventListJSON(eventList),
		"monitor_statuses": statuses,
	})
}
