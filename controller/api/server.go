// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package api translates the inbound JSON POST surface into calls on the
// control plane services. No business logic lives here.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/fleet"
	"zoran.io/zoran/controller/monitors"
	"zoran.io/zoran/controller/resources"
)

var (
	// Error is the api errs class.
	Error = errs.Class("api")

	mon = monkit.Package()
)

// Config defines configuration for the API server.
type Config struct {
	Address      string `help:"api http listening address" default:":8080"`
	SharedSecret string `help:"shared secret workers and integrations authenticate with" internal:"true"`
}

// Scheduler enqueues a deferred reconfiguration push for a customer.
type Scheduler interface {
	Schedule(customerID customers.ID, deactivate bool)
}

// Server provides the inbound REST endpoints.
type Server struct {
	log *zap.Logger

	listener net.Listener
	server   http.Server

	customers customers.DB
	monitors  *monitors.Service
	events    *events.Service
	fleet     *fleet.Service
	resources *resources.Service
	scheduler Scheduler

	config Config
}

// NewServer returns a new API server handling the exact endpoint paths.
func NewServer(
	log *zap.Logger,
	listener net.Listener,
	customersDB customers.DB,
	monitorsService *monitors.Service,
	eventsService *events.Service,
	fleetService *fleet.Service,
	resourcesService *resources.Service,
	scheduler Scheduler,
	config Config,
) *Server {
	server := &Server{
		log: log,

		listener: listener,

		customers: customersDB,
		monitors:  monitorsService,
		events:    eventsService,
		fleet:     fleetService,
		resources: resourcesService,
		scheduler: scheduler,

		config: config,
	}

	root := mux.NewRouter()
	root.Use(server.withAuth)

	root.HandleFunc("/host_scheme/get", server.hostSchemeGet).Methods(http.MethodPost)
	root.HandleFunc("/host_scheme/create", server.hostSchemeCreate).Methods(http.MethodPost)
	root.HandleFunc("/host_scheme/modify", server.hostSchemeModify).Methods(http.MethodPost)
	root.HandleFunc("/host_scheme/certificate", server.hostSchemeCertificate).Methods(http.MethodPost)
	root.HandleFunc("/host_scheme/delete", server.hostSchemeDelete).Methods(http.MethodPost)
	root.HandleFunc("/host_scheme/list", server.hostSchemeList).Methods(http.MethodPost)

	root.HandleFunc("/monitor/get", server.monitorGet).Methods(http.MethodPost)
	root.HandleFunc("/monitor/delete", server.monitorDelete).Methods(http.MethodPost)
	root.HandleFunc("/monitor/list", server.monitorList).Methods(http.MethodPost)
	root.HandleFunc("/monitor/update", server.monitorUpdate).Methods(http.MethodPost)

	root.HandleFunc("/event/report", server.eventReport).Methods(http.MethodPost)
	root.HandleFunc("/event/status", server.eventStatus).Methods(http.MethodPost)
	root.HandleFunc("/event/get", server.eventGet).Methods(http.MethodPost)

	root.HandleFunc("/resource/available", server.resourceAvailable).Methods(http.MethodPost)
	root.HandleFunc("/resource/create", server.resourceCreate).Methods(http.MethodPost)
	root.HandleFunc("/resource/list", server.resourceList).Methods(http.MethodPost)
	root.HandleFunc("/resource/purge", server.resourcePurge).Methods(http.MethodPost)
	root.HandleFunc("/resource/plot", server.resourcePlot).Methods(http.MethodPost)

	root.HandleFunc("/multiple/list", server.multipleList).Methods(http.MethodPost)

	root.HandleFunc("/server/create", server.serverCreate).Methods(http.MethodPost)
	root.HandleFunc("/server/modify", server.serverModify).Methods(http.MethodPost)
	root.HandleFunc("/server/delete", server.serverDelete).Methods(http.MethodPost)
	root.HandleFunc("/server/status", server.serverStatus).Methods(http.MethodPost)
	root.HandleFunc("/server/list", server.serverList).Methods(http.MethodPost)
	root.HandleFunc("/server/heartbeat", server.serverHeartbeat).Methods(http.MethodPost)
	root.HandleFunc("/server/reassign", server.serverReassign).Methods(http.MethodPost)

	root.HandleFunc("/region/create", server.regionCreate).Methods(http.MethodPost)
	root.HandleFunc("/region/list", server.regionList).Methods(http.MethodPost)

	root.HandleFunc("/customer/create", server.customerCreate).Methods(http.MethodPost)
	root.HandleFunc("/customer/get", server.customerGet).Methods(http.MethodPost)
	root.HandleFunc("/customer/modify", server.customerModify).Methods(http.MethodPost)
	root.HandleFunc("/customer/delete", server.customerDelete).Methods(http.MethodPost)
	root.HandleFunc("/customer/pause", server.customerPause).Methods(http.MethodPost)

	server.server.Handler = root
	return server
}

// Run starts the server that hosts the API endpoints.
func (server *Server) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close closes the server and underlying listener.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

// withAuth verifies the shared secret on every request.
func (server *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		equal := subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")),
			[]byte("Bearer "+server.config.SharedSecret))
		if equal != 1 {
			http.Error(w, `{"status": "unauthorized"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// response is the JSON envelope every endpoint answers with.
type response map[string]interface{}

// decode parses the request body, answering 400 on malformed input.
func (server *Server) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, `{"status": "malformed request"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// sendJSON writes the envelope with a 200; business failures stay HTTP 200.
func (server *Server) sendJSON(w http.ResponseWriter, body response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		server.log.Error("encoding response failed", zap.Error(err))
	}
}

// sendOK answers status ok with optional extra fields.
func (server *Server) sendOK(w http.ResponseWriter, extra response) {
	body := response{"status": "ok"}
	for key, value := range extra {
		body[key] = value
	}
	server.sendJSON(w, body)
}

// sendFailed answers a business failure.
func (server *Server) sendFailed(w http.ResponseWriter, reason string) {
	server.sendJSON(w, response{"status": "failed, " + reason})
}

// sendError maps service errors onto the wire statuses.
func (server *Server) sendError(w http.ResponseWriter, err error) {
	switch {
	case customers.ErrNotFound.Has(err), monitors.ErrNotFound.Has(err),
		events.ErrNotFound.Has(err), fleet.ErrNotFound.Has(err):
		server.sendJSON(w, response{"status": "not found"})
	case monitors.ErrValidation.Has(err):
		server.sendFailed(w, trimClass(err))
	default:
		server.log.Error("request failed", zap.Error(err))
		server.sendFailed(w, trimClass(err))
	}
}

// trimClass renders an error without stuttering its class prefixes.
func trimClass(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}
