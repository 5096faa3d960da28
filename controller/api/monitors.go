// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

// monitorJSON is the wire shape of a monitor. Keywords and post content are
// base64 on the wire.
type monitorJSON struct {
	ID               int32    `json:"id"`
	CustomerID       int32    `json:"customer_id"`
	HostSchemeID     int32    `json:"host_scheme_id"`
	UserOrdering     int16    `json:"user_ordering"`
	URI              string   `json:"uri"`
	Method           string   `json:"method"`
	ContentCheckMode string   `json:"content_check_mode"`
	Keywords         [][]byte `json:"keywords,omitempty"`
	ContentType      string   `json:"content_type"`
	UserAgent        string   `json:"user_agent,omitempty"`
	PostContent      []byte   `json:"post_content,omitempty"`
}

func toMonitorJSON(m monitors.Monitor) monitorJSON {
	return monitorJSON{
		ID:               int32(m.ID),
		CustomerID:       int32(m.CustomerID),
		HostSchemeID:     int32(m.HostSchemeID),
		UserOrdering:     m.UserOrdering,
		URI:              m.Slug,
		Method:           m.Method.String(),
		ContentCheckMode: m.ContentCheckMode.String(),
		Keywords:         m.Keywords,
		ContentType:      m.ContentType.String(),
		UserAgent:        m.UserAgent,
		PostContent:      m.PostContent,
	}
}

func toMonitorListJSON(list []monitors.Monitor) []monitorJSON {
	out := make([]monitorJSON, 0, len(list))
	for _, m := range list {
		out = append(out, toMonitorJSON(m))
	}
	return out
}

func (server *Server) monitorGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonitorID int32 `json:"monitor_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	m, err := server.monitors.GetMonitor(r.Context(), monitors.MonitorID(req.MonitorID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"monitor": toMonitorJSON(m)})
}

func (server *Server) monitorDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonitorID int32 `json:"monitor_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	if err := server.monitors.DeleteMonitor(r.Context(), monitors.MonitorID(req.MonitorID)); err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, nil)
}

func (server *Server) monitorList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32 `json:"customer_id"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	list, err := server.monitors.ListMonitors(r.Context(), customers.ID(req.CustomerID))
	if err != nil {
		server.sendError(w, err)
		return
	}
	server.sendOK(w, response{"monitors": toMonitorListJSON(list)})
}

// updateEntryJSON is one proposed monitor in a bulk update.
type updateEntryJSON struct {
	UserOrdering     int16    `json:"user_ordering"`
	URI              string   `json:"uri"`
	Method           string   `json:"method,omitempty"`
	ContentCheckMode string   `json:"content_check_mode,omitempty"`
	Keywords         [][]byte `json:"keywords,omitempty"`
	ContentType      string   `json:"content_type,omitempty"`
	UserAgent        string   `json:"user_agent,omitempty"`
	PostContent      []byte   `json:"post_content,omitempty"`
}

// toUpdateEntry converts the wire entry, defaulting omitted enums.
func toUpdateEntry(in updateEntryJSON) (entry monitors.UpdateEntry, err error) {
	entry = monitors.UpdateEntry{
		UserOrdering: in.UserOrdering,
		URI:          in.URI,
		Keywords:     in.Keywords,
		UserAgent:    in.UserAgent,
		PostContent:  in.PostContent,
	}
	if in.Method != "" {
		if entry.Method, err = monitors.ParseMethod(in.Method); err != nil {
			return entry, err
		}
	}
	if in.ContentCheckMode != "" {
		if entry.ContentCheckMode, err = monitors.ParseContentCheckMode(in.ContentCheckMode); err != nil {
			return entry, err
		}
	}
	if in.ContentType != "" {
		if entry.ContentType, err = monitors.ParseContentType(in.ContentType); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

func (server *Server) monitorUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int32           `json:"customer_id"`
		Data       json.RawMessage `json:"data"`
	}
	if !server.decode(w, r, &req) {
		return
	}

	entries, ok := server.decodeUpdateData(w, req.Data)
	if !ok {
		return
	}

	entryErrs, err := server.monitors.Update(r.Context(), customers.ID(req.CustomerID), entries)
	if err != nil {
		server.sendError(w, err)
		return
	}
	if len(entryErrs) > 0 {
		server.sendJSON(w, response{"status": "failed, entries rejected", "errors": entryErrs})
		return
	}
	server.sendOK(w, nil)
}

// decodeUpdateData accepts the data field both as a list of entries and as
// an object keyed by ordering slot.
func (server *Server) decodeUpdateData(w http.ResponseWriter, data json.RawMessage) ([]monitors.UpdateEntry, bool) {
	badRequest := func() ([]monitors.UpdateEntry, bool) {
		http.Error(w, `{"status": "malformed request"}`, http.StatusBadRequest)
		return nil, false
	}

	if len(data) == 0 {
		return nil, true
	}

	var raw []updateEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		var bySlot map[string]updateEntryJSON
		if err := json.Unmarshal(data, &bySlot); err != nil {
			return badRequest()
		}
		slots := make([]string, 0, len(bySlot))
		for slot := range bySlot {
			slots = append(slots, slot)
		}
		sort.Strings(slots)
		for _, slot := range slots {
			ordering, err := strconv.ParseInt(slot, 10, 16)
			if err != nil {
				return badRequest()
			}
			entry := bySlot[slot]
			entry.UserOrdering = int16(ordering)
			raw = append(raw, entry)
		}
	}

	entries := make([]monitors.UpdateEntry, 0, len(raw))
	for _, in := range raw {
		entry, err := toUpdateEntry(in)
		if err != nil {
			return badRequest()
		}
		entries = append(entries, entry)
	}
	return entries, true
}
