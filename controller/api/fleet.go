// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"net/http"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/fleet"
)

// serverJSON is the wire shape of a worker.
type serverJSON struct {
	ID         int32   `json:"id"`
	RegionID   int32   `json:"region_id"`
	Identifier string  `json:"identifier"`
	Status     string  `json:"status"`
	CPULoading float64 `json:"cpu_loading"`
}

func toServerJSON(server fleet.Server) serverJSON {
	return serverJSON{
		ID:         int32(server.ID),
		RegionID:   int32(server.RegionID),
		Identifier: server.Identifier,
		Status:     server.Status.String(),
		CPULoading: server.CPULoading,
	}
}

func (server *Server) serverCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegionID   int32  `json:"region_id"`
		Identifier string `json:"identifier"`
		Status     string `json:"status"`
	}
	if !server.decode(w, r, &req) {
		return
	}
	status, err := fleet.ParseServerStatus(req.Status)
	if err != nil {
		server.sendFailed(w, "unknown server status")
		return
	}

	created, err := server.fleet.AddServer(r.Context(), fleet.Server{
		RegionID:   fleet.RegionID(req.RegionID),
		Identifier: req.Identifier,
		Status:     status,
	})
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"server_id": int32(created.ID)})
}

func (server *Server) serverModify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID   int32  `json:"server_id"`
		RegionID   int32  `json:"region_id"`
		Identifier string `json:"identifier"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	current, err := server.fleet.GetServer(r.Context(), fleet.ServerID(req.ServerID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	current.RegionID = fleet.RegionID(req.RegionID)
	current.Identifier = req.Identifier
	if err := server.fleet.ModifyServer(r.Context(), current); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) serverDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID int32 `json:"server_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.fleet.RemoveServer(r.Context(), fleet.ServerID(req.ServerID)); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) serverStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID int32  `json:"server_id"`
		Status   string `json:"status"`
	}
	if !server.decode(w, r, &req) {
		return
	}
	status, err := fleet.ParseServerStatus(req.Status)
	if err != nil {
		server.sendFailed(w, "unknown server status")
		return
	}

	if err := server.fleet.SetServerStatus(r.Context(), fleet.ServerID(req.ServerID), status); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) serverList(w http.ResponseWriter, r *http.Request) {
	list, err := server.fleet.ListServers(r.Context())
	if err != nil {
		server.sendError(w, err)
		return
	}
	out := make([]serverJSON, 0, len(list))
	for _, s := range list {
		out = append(out, toServerJSON(s))
	}
	server.sendOK(w, response{"servers": out})
}

func (server *Server) serverHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string  `json:"identifier"`
		CPULoading float64 `json:"cpu_loading"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.fleet.Heartbeat(r.Context(), req.Identifier, req.CPULoading); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) serverReassign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromServerID int32   `json:"from_server_id"`
		CustomerIDs  []int32 `json:"customer_ids"`
		ToServerID   int32   `json:"to_server_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	ids := make([]customers.ID, 0, len(req.CustomerIDs))
	for _, id := range req.CustomerIDs {
		ids = append(ids, customers.ID(id))
	}
	err := server.fleet.ReassignWorkload(r.Context(),
		fleet.ServerID(req.FromServerID), ids, fleet.ServerID(req.ToServerID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) regionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	id, err := server.fleet.CreateRegion(r.Context(), fleet.Region{Label: req.Label})
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"region_id": int32(id)})
}

func (server *Server) regionList(w http.ResponseWriter, r *http.Request) {
	list, err := server.fleet.ListRegions(r.Context())
	if err != nil {
		server.sendError(w, err)
		return
	}

	type regionJSON struct {
		ID    int32  `json:"id"`
		Label string `json:"label"`
	}
	out := make([]regionJSON, 0, len(list))
	for _, region := range list {
		out = append(out, regionJSON{ID: int32(region.ID), Label: region.Label})
	}
	server.sendOK(w, response{"regions": out})
}
