// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"zoran.io/zoran/controller/customers"
)

// customerJSON is the wire shape of a customer's capabilities.
type customerJSON struct {
	ID              int32 `json:"id"`
	PollingInterval int32 `json:"polling_interval"`
	Active          bool  `json:"active"`
	Paused          bool  `json:"paused"`
	Post            bool  `json:"post"`
	ContentMatch    bool  `json:"content_match"`
	Keywords        bool  `json:"keywords"`
	Ping            bool  `json:"ping"`
	SSLExpiration   bool  `json:"ssl_expiration"`
	Latency         bool  `json:"latency"`
	Maintenance     bool  `json:"maintenance"`
	MultiRegion     bool  `json:"multi_region"`
}

func toCustomerJSON(caps customers.Capabilities) customerJSON {
	return customerJSON{
		ID:              int32(caps.ID),
		PollingInterval: caps.PollingInterval,
		Active:          caps.Active,
		Paused:          caps.Paused,
		Post:            caps.SupportsPost,
		ContentMatch:    caps.SupportsContentMatch,
		Keywords:        caps.SupportsKeywords,
		Ping:            caps.SupportsPing,
		SSLExpiration:   caps.SupportsSSLExpiration,
		Latency:         caps.SupportsLatency,
		Maintenance:     caps.SupportsMaintenance,
		MultiRegion:     caps.SupportsMultiRegion,
	}
}

func (in customerJSON) toCapabilities() customers.Capabilities {
	return customers.Capabilities{
		ID:                    customers.ID(in.ID),
		PollingInterval:       in.PollingInterval,
		Active:                in.Active,
		Paused:                in.Paused,
		SupportsPost:          in.Post,
		SupportsContentMatch:  in.ContentMatch,
		SupportsKeywords:      in.Keywords,
		SupportsPing:          in.Ping,
		SupportsSSLExpiration: in.SSLExpiration,
		SupportsLatency:       in.Latency,
		SupportsMaintenance:   in.Maintenance,
		SupportsMultiRegion:   in.MultiRegion,
	}
}

func (server *Server) customerCreate(w http.ResponseWriter, r *http.Request) {
	var req customerJSON
	if !server.decode(w, r, &req) {
		return
	}

	id, err := server.customers.Create(r.Context(), req.toCapabilities())
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"customer_id": int32(id)})
}

func (server *Server) customerGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	caps, err := server.customers.Get(r.Context(), customers.ID(req.CustomerID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"customer": toCustomerJSON(caps)})
}

// customerModify replaces the capability row and enqueues a reconfiguration
// so workers pick up interval and capability changes.
func (server *Server) customerModify(w http.ResponseWriter, r *http.Request) {
	var req customerJSON
	if !server.decode(w, r, &req) {
		return
	}

	caps := req.toCapabilities()
	if err := server.customers.Update(r.Context(), caps); err != nil {
		server.sendError(w, err)
		return
	}
	server.scheduler.Schedule(caps.ID, !caps.Active)
	server.sendOK(w, nil)
}

func (server *Server) customerDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	id := customers.ID(req.CustomerID)
	if err := server.customers.Delete(r.Context(), id); err != nil {
		server.sendError(w, err)
		return
	}
	server.resources.Evict(id)
	server.scheduler.Schedule(id, true)
	server.sendOK(w, nil)
}

func (server *Server) customerPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
		Pause      bool  `json:"pause"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.fleet.SetPaused(r.Context(), customers.ID(req.CustomerID), req.Pause); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}
