// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

// hostSchemeJSON is the wire shape of a host/scheme.
type hostSchemeJSON struct {
	ID                     int32  `json:"id"`
	CustomerID             int32  `json:"customer_id"`
	URL                    string `json:"url"`
	SSLExpirationTimestamp int64  `json:"ssl_expiration_timestamp"`
}

func toHostSchemeJSON(hs monitors.HostScheme) hostSchemeJSON {
	return hostSchemeJSON{
		ID:                     int32(hs.ID),
		CustomerID:             int32(hs.CustomerID),
		URL:                    hs.URL,
		SSLExpirationTimestamp: hs.SSLExpiresAt,
	}
}

func toHostSchemeListJSON(list []monitors.HostScheme) []hostSchemeJSON {
	out := make([]hostSchemeJSON, 0, len(list))
	for _, hs := range list {
		out = append(out, toHostSchemeJSON(hs))
	}
	return out
}

func (server *Server) hostSchemeGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostSchemeID int32 `json:"host_scheme_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	hs, err := server.monitors.GetHostScheme(r.Context(), monitors.HostSchemeID(req.HostSchemeID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"host_scheme": toHostSchemeJSON(hs)})
}

func (server *Server) hostSchemeCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32  `json:"customer_id"`
		URL        string `json:"url"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	hs, err := server.monitors.CreateHostScheme(r.Context(), customers.ID(req.CustomerID), req.URL)
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"host_scheme_id": int32(hs.ID)})
}

func (server *Server) hostSchemeModify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostSchemeID int32  `json:"host_scheme_id"`
		URL          string `json:"url"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.monitors.ModifyHostScheme(r.Context(), monitors.HostSchemeID(req.HostSchemeID), req.URL); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) hostSchemeCertificate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostSchemeID           int32 `json:"host_scheme_id"`
		SSLExpirationTimestamp int64 `json:"ssl_expiration_timestamp"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.monitors.SetCertificate(r.Context(), monitors.HostSchemeID(req.HostSchemeID), req.SSLExpirationTimestamp); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) hostSchemeDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostSchemeID int32 `json:"host_scheme_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.monitors.DeleteHostScheme(r.Context(), monitors.HostSchemeID(req.HostSchemeID)); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) hostSchemeList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	list, err := server.monitors.ListHostSchemes(r.Context(), customers.ID(req.CustomerID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"host_schemes": toHostSchemeListJSON(list)})
}
