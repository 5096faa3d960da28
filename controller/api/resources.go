// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/resources"
)

// resourceJSON is the wire shape of a resource sample.
type resourceJSON struct {
	CustomerID int32   `json:"customer_id"`
	ValueType  uint8   `json:"value_type"`
	Value      float64 `json:"value"`
	Timestamp  int64   `json:"timestamp"`
}

func (server *Server) resourceAvailable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	active, err := server.resources.Available(r.Context(), customers.ID(req.CustomerID))
	if err != nil {
		server.sendError(w, err)
		return
	}

	// []uint8 would JSON-encode as base64
	valueTypes := make([]int32, 0, 8)
	for _, valueType := range active.Values() {
		valueTypes = append(valueTypes, int32(valueType))
	}
	server.sendOK(w, response{"value_types": valueTypes})
}

func (server *Server) resourceCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32   `json:"customer_id"`
		ValueType  uint8   `json:"value_type"`
		Value      float64 `json:"value"`
		Timestamp  int64   `json:"timestamp"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	sample := resources.NewResource(customers.ID(req.CustomerID), req.ValueType, req.Value, req.Timestamp)
	if err := server.resources.Record(r.Context(), sample); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

// resourceWindow is the shared request shape of list and plot.
type resourceWindow struct {
	CustomerID int32 `json:"customer_id"`
	ValueType  uint8 `json:"value_type"`
	From       int64 `json:"from"`
	To         int64 `json:"to"`
}

func (server *Server) resourceList(w http.ResponseWriter, r *http.Request) {
	var req resourceWindow
	if !server.decode(w, r, &req) {
		return
	}

	list, err := server.resources.List(r.Context(), customers.ID(req.CustomerID), req.ValueType, req.From, req.To)
	if err != nil {
		server.sendError(w, err)
		return
	}

	out := make([]resourceJSON, 0, len(list))
	for _, sample := range list {
		out = append(out, resourceJSON{
			CustomerID: int32(sample.CustomerID),
			ValueType:  sample.ValueType,
			Value:      sample.Value,
			Timestamp:  sample.Unix(),
		})
	}
	server.sendOK(w, response{"resources": out})
}

func (server *Server) resourcePurge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	deleted, err := server.resources.PurgeCustomer(r.Context(), customers.ID(req.CustomerID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"deleted": deleted})
}

// resourcePlot is the only endpoint with a binary success response.
func (server *Server) resourcePlot(w http.ResponseWriter, r *http.Request) {
	var req resourceWindow
	if !server.decode(w, r, &req) {
		return
	}

	list, err := server.resources.List(r.Context(), customers.ID(req.CustomerID), req.ValueType, req.From, req.To)
	if err != nil {
		server.sendError(w, err)
		return
	}
	rendered, err := resources.PlotPNG(list)
	if err != nil {
		server.sendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(rendered); err != nil {
		server.log.Error("writing plot failed", zap.Error(err))
	}
}
