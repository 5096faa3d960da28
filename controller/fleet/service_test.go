// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package fleet_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/controldb/controldbtest"
	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/fleet"
)

// postRecord is one captured dispatcher call.
type postRecord struct {
	Identifier string
	Endpoint   string
	Body       interface{}
}

// recordingDispatcher captures worker pushes instead of delivering them.
type recordingDispatcher struct {
	mu       sync.Mutex
	posts    []postRecord
	expunged []string
}

func (dispatcher *recordingDispatcher) Post(identifier, endpoint string, body interface{}, logText string) {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.posts = append(dispatcher.posts, postRecord{identifier, endpoint, body})
}

func (dispatcher *recordingDispatcher) PostState(identifier, endpoint, logText string) {
	dispatcher.Post(identifier, endpoint, nil, logText)
}

func (dispatcher *recordingDispatcher) Expunge(identifier string) {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.expunged = append(dispatcher.expunged, identifier)
}

func (dispatcher *recordingDispatcher) byEndpoint(endpoint string) []postRecord {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	var matched []postRecord
	for _, post := range dispatcher.posts {
		if post.Endpoint == endpoint {
			matched = append(matched, post)
		}
	}
	return matched
}

func (dispatcher *recordingDispatcher) reset() {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.posts = nil
	dispatcher.expunged = nil
}

func newFleet(t *testing.T, db controller.DB) (*fleet.Service, *recordingDispatcher) {
	dispatcher := &recordingDispatcher{}
	service := fleet.NewService(zaptest.NewLogger(t), db.Fleet(), db.Customers(), db.Monitors(), dispatcher)
	return service, dispatcher
}

// addActiveServer creates a server and walks it to the given status.
func addServer(ctx *testcontext.Context, t *testing.T, service *fleet.Service, region fleet.RegionID, identifier string, status fleet.ServerStatus, cpu float64) fleet.Server {
	server, err := service.AddServer(ctx, fleet.Server{
		RegionID:   region,
		Identifier: identifier,
		Status:     fleet.StatusInactive,
		CPULoading: cpu,
	})
	require.NoError(t, err)
	if status != fleet.StatusInactive {
		require.NoError(t, service.SetServerStatus(ctx, server.ID, status))
		server.Status = status
	}
	return server
}

func TestServerLifecycle(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)

		server := addServer(ctx, t, service, region, "worker-a", fleet.StatusInactive, 0)

		// a new worker is commanded inactive
		inactive := dispatcher.byEndpoint(fleet.EndpointStateInactive)
		require.Len(t, inactive, 1)
		require.Equal(t, "worker-a", inactive[0].Identifier)

		// identifiers are unique
		_, err = service.AddServer(ctx, fleet.Server{
			RegionID:   region,
			Identifier: "worker-a",
			Status:     fleet.StatusInactive,
		})
		require.Error(t, err)

		// non-active workers may be modified, status is preserved
		server.Identifier = "worker-a.renamed"
		server.Status = fleet.StatusActive // ignored
		require.NoError(t, service.ModifyServer(ctx, server))
		got, err := service.GetServer(ctx, server.ID)
		require.NoError(t, err)
		require.Equal(t, "worker-a.renamed", got.Identifier)
		require.Equal(t, fleet.StatusInactive, got.Status)

		// active workers may not be modified
		require.NoError(t, service.SetServerStatus(ctx, server.ID, fleet.StatusActive))
		require.Error(t, service.ModifyServer(ctx, got))

		// only defunct workers may be removed
		require.Error(t, service.RemoveServer(ctx, server.ID))
		require.NoError(t, service.SetServerStatus(ctx, server.ID, fleet.StatusDefunct))
		require.NoError(t, service.RemoveServer(ctx, server.ID))
		_, err = service.GetServer(ctx, server.ID)
		require.True(t, fleet.ErrNotFound.Has(err))

		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		require.Equal(t, []string{"worker-a.renamed"}, dispatcher.expunged)
	})
}

func TestHeartbeat(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, _ := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)
		server := addServer(ctx, t, service, region, "worker-a", fleet.StatusInactive, 0)

		require.NoError(t, service.Heartbeat(ctx, "worker-a", 0.75))
		got, err := service.GetServer(ctx, server.ID)
		require.NoError(t, err)
		require.Equal(t, 0.75, got.CPULoading)

		err = service.Heartbeat(ctx, "unknown-worker", 0.5)
		require.True(t, fleet.ErrNotFound.Has(err))
	})
}

func TestRegionLayoutPushes(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		first, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)
		second, err := service.CreateRegion(ctx, fleet.Region{Label: "us-east"})
		require.NoError(t, err)

		a := addServer(ctx, t, service, first, "worker-a", fleet.StatusInactive, 0)
		b := addServer(ctx, t, service, second, "worker-b", fleet.StatusInactive, 0)
		dispatcher.reset()

		// first activation: one region, index 0 of 1
		require.NoError(t, service.SetServerStatus(ctx, a.ID, fleet.StatusActive))
		changes := dispatcher.byEndpoint(fleet.EndpointRegionChange)
		require.Len(t, changes, 1)
		require.Equal(t, "worker-a", changes[0].Identifier)
		require.Equal(t, fleet.RegionChange{RegionIndex: 0, NumberRegions: 1}, changes[0].Body)

		dispatcher.reset()

		// second activation changes the layout, both workers are told
		require.NoError(t, service.SetServerStatus(ctx, b.ID, fleet.StatusActive))
		changes = dispatcher.byEndpoint(fleet.EndpointRegionChange)
		require.Len(t, changes, 2)
		byIdent := map[string]fleet.RegionChange{}
		for _, change := range changes {
			byIdent[change.Identifier] = change.Body.(fleet.RegionChange)
		}
		require.Equal(t, fleet.RegionChange{RegionIndex: 0, NumberRegions: 2}, byIdent["worker-a"])
		require.Equal(t, fleet.RegionChange{RegionIndex: 1, NumberRegions: 2}, byIdent["worker-b"])

		dispatcher.reset()

		// deactivating a worker commands it inactive
		require.NoError(t, service.SetServerStatus(ctx, b.ID, fleet.StatusInactive))
		inactive := dispatcher.byEndpoint(fleet.EndpointStateInactive)
		require.Len(t, inactive, 1)
		require.Equal(t, "worker-b", inactive[0].Identifier)
		// and the survivor learns the shrunk layout
		changes = dispatcher.byEndpoint(fleet.EndpointRegionChange)
		require.Len(t, changes, 1)
		require.Equal(t, "worker-a", changes[0].Identifier)
		require.Equal(t, fleet.RegionChange{RegionIndex: 0, NumberRegions: 1}, changes[0].Body)
	})
}

func TestActivateSingleRegion(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)

		addServer(ctx, t, service, region, "worker-a", fleet.StatusActive, 0.8)
		light := addServer(ctx, t, service, region, "worker-b", fleet.StatusActive, 0.1)

		customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true, PollingInterval: 300})
		require.NoError(t, err)
		dispatcher.reset()

		require.NoError(t, service.Activate(ctx, customerID))

		mapping, err := db.Fleet().GetMapping(ctx, customerID)
		require.NoError(t, err)
		require.Equal(t, []fleet.ServerID{light.ID}, mapping.Members)
		require.Equal(t, light.ID, mapping.Primary)

		adds := dispatcher.byEndpoint(fleet.EndpointCustomerAdd)
		require.Len(t, adds, 1)
		require.Equal(t, "worker-b", adds[0].Identifier)

		// the primary body carries the ping and ssl flags
		body := adds[0].Body.(fleet.CustomerAdd)
		config, ok := body[strconv.Itoa(int(customerID))]
		require.True(t, ok)
		require.NotNil(t, config.Ping)
		require.NotNil(t, config.SSLExpiration)
		require.Equal(t, int32(300), config.PollingInterval)
	})
}

func TestActivateMultiRegion(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		first, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)
		second, err := service.CreateRegion(ctx, fleet.Region{Label: "us-east"})
		require.NoError(t, err)

		euHeavy := addServer(ctx, t, service, first, "eu-heavy", fleet.StatusActive, 0.9)
		euLight := addServer(ctx, t, service, first, "eu-light", fleet.StatusActive, 0.2)
		us := addServer(ctx, t, service, second, "us-only", fleet.StatusActive, 0.5)
		_ = euHeavy

		customerID, err := db.Customers().Create(ctx, customers.Capabilities{
			Active:              true,
			SupportsMultiRegion: true,
		})
		require.NoError(t, err)
		dispatcher.reset()

		require.NoError(t, service.Activate(ctx, customerID))

		mapping, err := db.Fleet().GetMapping(ctx, customerID)
		require.NoError(t, err)
		require.ElementsMatch(t, []fleet.ServerID{euLight.ID, us.ID}, mapping.Members)
		// the primary is the least loaded member
		require.Equal(t, euLight.ID, mapping.Primary)

		adds := dispatcher.byEndpoint(fleet.EndpointCustomerAdd)
		require.Len(t, adds, 2)
	})
}

func TestDeactivate(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)
		worker := addServer(ctx, t, service, region, "worker-a", fleet.StatusActive, 0)

		customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)
		require.NoError(t, service.Activate(ctx, customerID))
		dispatcher.reset()

		require.NoError(t, service.Deactivate(ctx, customerID))

		_, err = db.Fleet().GetMapping(ctx, customerID)
		require.True(t, fleet.ErrNotFound.Has(err))

		removes := dispatcher.byEndpoint(fleet.EndpointCustomerRemove)
		require.Len(t, removes, 1)
		require.Equal(t, "worker-a", removes[0].Identifier)
		require.Equal(t, fleet.CustomerRemove{CustomerID: int32(customerID)}, removes[0].Body)
		_ = worker

		// deactivating an unmapped customer is a no-op
		dispatcher.reset()
		require.NoError(t, service.Deactivate(ctx, customerID))
		require.Empty(t, dispatcher.byEndpoint(fleet.EndpointCustomerRemove))
	})
}

func TestSetPaused(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)
		addServer(ctx, t, service, region, "worker-a", fleet.StatusActive, 0)

		customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)
		require.NoError(t, service.Activate(ctx, customerID))
		dispatcher.reset()

		require.NoError(t, service.SetPaused(ctx, customerID, true))

		pauses := dispatcher.byEndpoint(fleet.EndpointCustomerPause)
		require.Len(t, pauses, 1)
		require.Equal(t, fleet.CustomerPause{CustomerID: int32(customerID), Pause: true}, pauses[0].Body)

		caps, err := db.Customers().Get(ctx, customerID)
		require.NoError(t, err)
		require.True(t, caps.Paused)
	})
}

func TestReassignToExplicitTarget(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)

		source := addServer(ctx, t, service, region, "worker-a", fleet.StatusActive, 0.1)
		target := addServer(ctx, t, service, region, "worker-b", fleet.StatusInactive, 0.9)

		customerID, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)
		require.NoError(t, service.Activate(ctx, customerID))
		dispatcher.reset()

		// the non-active target takes over the slot verbatim
		require.NoError(t, service.ReassignWorkload(ctx, source.ID, []customers.ID{customerID}, target.ID))

		mapping, err := db.Fleet().GetMapping(ctx, customerID)
		require.NoError(t, err)
		require.Equal(t, []fleet.ServerID{target.ID}, mapping.Members)
		require.Equal(t, target.ID, mapping.Primary)

		adds := dispatcher.byEndpoint(fleet.EndpointCustomerAdd)
		require.Len(t, adds, 1)
		require.Equal(t, "worker-b", adds[0].Identifier)
		removes := dispatcher.byEndpoint(fleet.EndpointCustomerRemove)
		require.Len(t, removes, 1)
		require.Equal(t, "worker-a", removes[0].Identifier)
	})
}

func TestReassignDrainsServer(t *testing.T) {
	controldbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db controller.DB) {
		service, dispatcher := newFleet(t, db)
		region, err := service.CreateRegion(ctx, fleet.Region{Label: "eu-west"})
		require.NoError(t, err)

		busy := addServer(ctx, t, service, region, "worker-a", fleet.StatusActive, 0.1)
		spare := addServer(ctx, t, service, region, "worker-b", fleet.StatusActive, 0.5)

		first, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)
		second, err := db.Customers().Create(ctx, customers.Capabilities{Active: true})
		require.NoError(t, err)
		require.NoError(t, service.Activate(ctx, first))
		require.NoError(t, service.Activate(ctx, second))
		dispatcher.reset()

		// no explicit customers: the source goes inactive and everything
		// it hosted moves
		require.NoError(t, service.ReassignWorkload(ctx, busy.ID, nil, 0))

		got, err := service.GetServer(ctx, busy.ID)
		require.NoError(t, err)
		require.Equal(t, fleet.StatusInactive, got.Status)

		for _, customerID := range []customers.ID{first, second} {
			mapping, err := db.Fleet().GetMapping(ctx, customerID)
			require.NoError(t, err)
			require.Equal(t, []fleet.ServerID{spare.ID}, mapping.Members)
		}
	})
}
