// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/api"
	"zoran.io/zoran/controller/controldb/controldbtest"
	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/events"
	"zoran.io/zoran/controller/fleet"
	"zoran.io/zoran/controller/monitors"
	"zoran.io/zoran/controller/resources"
)

const testSecret = "api-test-secret"

// nullDispatcher satisfies the outbound interfaces without any delivery.
type nullDispatcher struct{}

func (nullDispatcher) Post(identifier, endpoint string, body interface{}, logText string) {}
func (nullDispatcher) PostState(identifier, endpoint, logText string)                     {}
func (nullDispatcher) Expunge(identifier string)                                          {}

// nullScheduler drops reconfiguration pushes.
type nullScheduler struct{}

func (nullScheduler) Schedule(customerID customers.ID, deactivate bool) {}

// startServer wires real services over the store and serves them on a
// loopback listener.
func startServer(ctx *testcontext.Context, t *testing.T, db controller.DB) string {
	log := zaptest.NewLogger(t)
	dispatcher := nullDispatcher{}
	scheduler := nullScheduler{}

	fleetService := fleet.NewService(log, db.Fleet(), db.Customers(), db.Monitors(), dispatcher)
	monitorsService := monitors.NewService(log, db.Monitors(), db.Customers(), scheduler)
	eventsService := events.NewService(log, db.Events(), db.Monitors(), dispatcher,
		events.Config{HistoryLimit: 100})
	resourcesService := resources.NewService(log, db.Resources(),
		resources.Config{CacheCapacity: 100})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := api.NewServer(log, listener, db.Customers(), monitorsService,
		eventsService, fleetService, resourcesService, scheduler,
		api.Config{Address: listener.Addr().String(), SharedSecret: testSecret})
	ctx.Go(func() error { return server.Run(ctx) })
	t.Cleanup(func() { _ = server.Close() })

	return "http://" + listener.Addr().String()
}

// post sends an authenticated JSON POST and returns the raw response.
func post(t *testing.T, baseURL, endpoint string, body interface{}) *http.Response {
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, baseURL+endpoint, bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testSecret)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// postJSON sends an authenticated request and decodes the JSON envelope.
func postJSON(t *testing.T, baseURL, endpoint string, body interface{}) map[string]interface{} {
	resp := post(t, baseURL, endpoint, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func requireOK(t *testing.T, envelope map[string]interface{}) {
	require.Equal(t, "ok", envelope["status"])
}

func TestAuthRequired(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		for _, auth := range []string{"", "Bearer wrong", testSecret} {
			req, err := http.NewRequest(http.MethodPost, baseURL+"/customer/get",
				bytes.NewReader([]byte(`{"customer_id":1}`)))
			require.NoError(t, err)
			if auth != "" {
				req.Header.Set("Authorization", auth)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.NoError(t, resp.Body.Close())
		}
	})
}

func TestMalformedRequest(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		req, err := http.NewRequest(http.MethodPost, baseURL+"/customer/get",
			bytes.NewReader([]byte(`{"customer_id":`)))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+testSecret)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})
}

func TestCustomerEndpoints(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/customer/create", map[string]interface{}{
			"polling_interval": 300,
			"active":           true,
			"post":             true,
		})
		requireOK(t, envelope)
		customerID := envelope["customer_id"].(float64)
		require.NotZero(t, customerID)

		envelope = postJSON(t, baseURL, "/customer/get",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)
		caps := envelope["customer"].(map[string]interface{})
		require.Equal(t, float64(300), caps["polling_interval"])
		require.Equal(t, true, caps["active"])
		require.Equal(t, true, caps["post"])
		require.Equal(t, false, caps["keywords"])

		envelope = postJSON(t, baseURL, "/customer/modify", map[string]interface{}{
			"id":               customerID,
			"polling_interval": 60,
			"active":           true,
			"keywords":         true,
		})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/customer/get",
			map[string]interface{}{"customer_id": customerID})
		caps = envelope["customer"].(map[string]interface{})
		require.Equal(t, float64(60), caps["polling_interval"])
		require.Equal(t, true, caps["keywords"])

		envelope = postJSON(t, baseURL, "/customer/delete",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/customer/get",
			map[string]interface{}{"customer_id": customerID})
		require.Equal(t, "not found", envelope["status"])
	})
}

func TestMonitorEndpoints(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/customer/create",
			map[string]interface{}{"active": true})
		customerID := envelope["customer_id"].(float64)

		envelope = postJSON(t, baseURL, "/monitor/update", map[string]interface{}{
			"customer_id": customerID,
			"data": []map[string]interface{}{
				{"user_ordering": 0, "uri": "https://example.com/"},
				{"user_ordering": 1, "uri": "/status"},
			},
		})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/monitor/list",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)
		list := envelope["monitors"].([]interface{})
		require.Len(t, list, 2)
		first := list[0].(map[string]interface{})
		require.Equal(t, "/", first["uri"])

		envelope = postJSON(t, baseURL, "/monitor/get",
			map[string]interface{}{"monitor_id": first["id"]})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/host_scheme/list",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)
		hostSchemes := envelope["host_schemes"].([]interface{})
		require.Len(t, hostSchemes, 1)
		require.Equal(t, "https://example.com",
			hostSchemes[0].(map[string]interface{})["url"])

		// the slot-keyed update form is accepted too
		envelope = postJSON(t, baseURL, "/monitor/update", map[string]interface{}{
			"customer_id": customerID,
			"data": map[string]interface{}{
				"0": map[string]interface{}{"uri": "https://example.com/"},
			},
		})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/monitor/list",
			map[string]interface{}{"customer_id": customerID})
		require.Len(t, envelope["monitors"].([]interface{}), 1)
	})
}

func TestMonitorUpdateRejectedEntries(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/customer/create",
			map[string]interface{}{"active": true})
		customerID := envelope["customer_id"].(float64)

		// POST without the capability is rejected per entry
		envelope = postJSON(t, baseURL, "/monitor/update", map[string]interface{}{
			"customer_id": customerID,
			"data": []map[string]interface{}{
				{"user_ordering": 0, "uri": "https://example.com/", "method": "POST"},
			},
		})
		require.Equal(t, "failed, entries rejected", envelope["status"])
		require.NotEmpty(t, envelope["errors"])
	})
}

func TestEventEndpoints(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/customer/create",
			map[string]interface{}{"active": true})
		customerID := envelope["customer_id"].(float64)

		postJSON(t, baseURL, "/monitor/update", map[string]interface{}{
			"customer_id": customerID,
			"data": []map[string]interface{}{
				{"user_ordering": 0, "uri": "https://example.com/"},
			},
		})
		envelope = postJSON(t, baseURL, "/monitor/list",
			map[string]interface{}{"customer_id": customerID})
		monitorID := envelope["monitors"].([]interface{})[0].(map[string]interface{})["id"]

		now := int64(events.EpochStart + 1000)
		envelope = postJSON(t, baseURL, "/event/report", map[string]interface{}{
			"monitor_id":     monitorID,
			"timestamp":      now,
			"event_type":     "no_response",
			"monitor_status": "unknown",
			"message":        "connect timeout",
		})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/event/status",
			map[string]interface{}{"monitor_id": monitorID})
		requireOK(t, envelope)
		require.Equal(t, "FAILED", envelope["monitor_status"])

		envelope = postJSON(t, baseURL, "/event/get",
			map[string]interface{}{"monitor_id": monitorID})
		requireOK(t, envelope)
		list := envelope["events"].([]interface{})
		require.Len(t, list, 1)
		event := list[0].(map[string]interface{})
		require.Equal(t, "NO_RESPONSE", event["event_type"])
		require.Equal(t, float64(now), event["timestamp"])
		require.Equal(t, "connect timeout", event["message"])

		// bad wire values answer business failures, not HTTP errors
		envelope = postJSON(t, baseURL, "/event/report", map[string]interface{}{
			"monitor_id":     monitorID,
			"timestamp":      now,
			"event_type":     "definitely_not_a_kind",
			"monitor_status": "unknown",
		})
		require.Equal(t, "failed, unknown event type", envelope["status"])

		envelope = postJSON(t, baseURL, "/event/report", map[string]interface{}{
			"monitor_id":     monitorID,
			"timestamp":      12,
			"event_type":     "working",
			"monitor_status": "unknown",
		})
		require.Equal(t, "failed, timestamp out of range", envelope["status"])
	})
}

func TestResourceEndpoints(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/customer/create",
			map[string]interface{}{"active": true})
		customerID := envelope["customer_id"].(float64)

		for i, value := range []float64{0.25, 0.75} {
			envelope = postJSON(t, baseURL, "/resource/create", map[string]interface{}{
				"customer_id": customerID,
				"value_type":  3,
				"value":       value,
				"timestamp":   3600 * (i + 1),
			})
			requireOK(t, envelope)
		}

		envelope = postJSON(t, baseURL, "/resource/available",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)
		require.Equal(t, []interface{}{float64(3)}, envelope["value_types"])

		envelope = postJSON(t, baseURL, "/resource/list", map[string]interface{}{
			"customer_id": customerID, "value_type": 3, "from": 0, "to": 100000,
		})
		requireOK(t, envelope)
		require.Len(t, envelope["resources"].([]interface{}), 2)

		resp := post(t, baseURL, "/resource/plot", map[string]interface{}{
			"customer_id": customerID, "value_type": 3, "from": 0, "to": 100000,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		rendered, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_, err = png.Decode(bytes.NewReader(rendered))
		require.NoError(t, err)

		envelope = postJSON(t, baseURL, "/resource/purge",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)
		require.Equal(t, float64(2), envelope["deleted"])

		envelope = postJSON(t, baseURL, "/resource/available",
			map[string]interface{}{"customer_id": customerID})
		require.Empty(t, envelope["value_types"])
	})
}

func TestFleetEndpoints(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/region/create",
			map[string]interface{}{"label": "eu-west"})
		requireOK(t, envelope)
		regionID := envelope["region_id"].(float64)

		envelope = postJSON(t, baseURL, "/server/create", map[string]interface{}{
			"region_id":  regionID,
			"identifier": "worker-1.example.com",
			"status":     "inactive",
		})
		requireOK(t, envelope)
		serverID := envelope["server_id"].(float64)

		envelope = postJSON(t, baseURL, "/server/create", map[string]interface{}{
			"region_id":  regionID,
			"identifier": "worker-1.example.com",
			"status":     "bogus",
		})
		require.Equal(t, "failed, unknown server status", envelope["status"])

		envelope = postJSON(t, baseURL, "/server/heartbeat", map[string]interface{}{
			"identifier": "worker-1.example.com", "cpu_loading": 0.42,
		})
		requireOK(t, envelope)

		envelope = postJSON(t, baseURL, "/server/heartbeat", map[string]interface{}{
			"identifier": "nobody.example.com", "cpu_loading": 0.1,
		})
		require.Equal(t, "not found", envelope["status"])

		envelope = postJSON(t, baseURL, "/server/list", nil)
		requireOK(t, envelope)
		list := envelope["servers"].([]interface{})
		require.Len(t, list, 1)
		listed := list[0].(map[string]interface{})
		require.Equal(t, serverID, listed["id"])
		require.Equal(t, 0.42, listed["cpu_loading"])

		envelope = postJSON(t, baseURL, "/region/list", nil)
		requireOK(t, envelope)
		regions := envelope["regions"].([]interface{})
		require.Len(t, regions, 1)
		require.Equal(t, "eu-west", regions[0].(map[string]interface{})["label"])
	})
}

func TestMultipleList(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		baseURL := startServer(ctx, t, db)

		envelope := postJSON(t, baseURL, "/customer/create",
			map[string]interface{}{"active": true})
		customerID := envelope["customer_id"].(float64)

		postJSON(t, baseURL, "/monitor/update", map[string]interface{}{
			"customer_id": customerID,
			"data": []map[string]interface{}{
				{"user_ordering": 0, "uri": "https://example.com/"},
			},
		})
		envelope = postJSON(t, baseURL, "/monitor/list",
			map[string]interface{}{"customer_id": customerID})
		monitorID := envelope["monitors"].([]interface{})[0].(map[string]interface{})["id"]

		postJSON(t, baseURL, "/event/report", map[string]interface{}{
			"monitor_id":     monitorID,
			"timestamp":      int64(events.EpochStart + 1000),
			"event_type":     "no_response",
			"monitor_status": "unknown",
		})

		envelope = postJSON(t, baseURL, "/multiple/list",
			map[string]interface{}{"customer_id": customerID})
		requireOK(t, envelope)
		require.Len(t, envelope["host_schemes"].([]interface{}), 1)
		require.Len(t, envelope["monitors"].([]interface{}), 1)
		require.Len(t, envelope["events"].([]interface{}), 1)

		statuses := envelope["monitor_statuses"].(map[string]interface{})
		key := fmt.Sprintf("%v", monitorID)
		require.Equal(t, "FAILED", statuses[key])
	})
}
