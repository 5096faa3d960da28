// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package fleet

import (
	"context"
	"strconv"
	"strings"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/monitors"
)

// Worker command endpoints.
const (
	EndpointStateInactive  = "/state/inactive"
	EndpointRegionChange   = "/region/change"
	EndpointCustomerAdd    = "/customer/add"
	EndpointCustomerRemove = "/customer/remove"
	EndpointCustomerPause  = "/customer/pause"
)

// RegionChange tells a worker its place in the active region layout.
type RegionChange struct {
	RegionIndex   int `json:"region_index"`
	NumberRegions int `json:"number_regions"`
}

// CustomerRemove drops a customer from a worker.
type CustomerRemove struct {
	CustomerID int32 `json:"customer_id"`
}

// CustomerPause pauses or resumes a customer's probes on a worker.
type CustomerPause struct {
	CustomerID int32 `json:"customer_id"`
	Pause      bool  `json:"pause"`
}

// CustomerAdd is the per-customer configuration body, keyed by decimal
// customer id.
type CustomerAdd map[string]CustomerConfig

// CustomerConfig is one customer's probe configuration. Ping and
// SSLExpiration are only present on the body sent to the primary worker.
type CustomerConfig struct {
	PollingInterval int32 `json:"polling_interval"`
	Ping            *bool `json:"ping,omitempty"`
	SSLExpiration   *bool `json:"ssl_expiration,omitempty"`
	Latency         bool  `json:"latency"`
	MultiRegion     bool  `json:"multi_region"`

	HostSchemes map[string]HostSchemeConfig `json:"host_schemes"`
}

// HostSchemeConfig is one origin and its monitors, keyed by decimal monitor
// id.
type HostSchemeConfig struct {
	URL      string                   `json:"url"`
	Monitors map[string]MonitorConfig `json:"monitors"`
}

// MonitorConfig is one probe target. Defaults are omitted from the wire:
// method when GET, content check mode when NO_CHECK, post content type when
// TEXT.
type MonitorConfig struct {
	URI              string   `json:"uri"`
	Method           string   `json:"method,omitempty"`
	ContentCheckMode string   `json:"content_check_mode,omitempty"`
	Keywords         [][]byte `json:"keywords,omitempty"`
	PostContentType  string   `json:"post_content_type,omitempty"`
	PostUserAgent    string   `json:"post_user_agent,omitempty"`
	PostContent      []byte   `json:"post_content,omitempty"`
}

// buildCustomerAdd assembles the configuration body for one customer. The
// primary body carries the ping and ssl_expiration capability flags.
func (service *Service) buildCustomerAdd(ctx context.Context, caps customers.Capabilities, primary bool) (CustomerAdd, error) {
	hostSchemes, err := service.monitors.ListHostSchemes(ctx, caps.ID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	config := CustomerConfig{
		PollingInterval: caps.PollingInterval,
		Latency:         caps.SupportsLatency,
		MultiRegion:     caps.SupportsMultiRegion,
		HostSchemes:     make(map[string]HostSchemeConfig, len(hostSchemes)),
	}
	if primary {
		ping := caps.SupportsPing
		ssl := caps.SupportsSSLExpiration
		config.Ping = &ping
		config.SSLExpiration = &ssl
	}

	for _, hs := range hostSchemes {
		listed, err := service.monitors.ListMonitorsByHostScheme(ctx, hs.ID)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		hsConfig := HostSchemeConfig{
			URL:      hs.URL,
			Monitors: make(map[string]MonitorConfig, len(listed)),
		}
		for _, m := range listed {
			mc := MonitorConfig{
				URI:           m.Slug,
				Keywords:      m.Keywords,
				PostUserAgent: m.UserAgent,
				PostContent:   m.PostContent,
			}
			if m.Method != monitors.MethodGet {
				mc.Method = strings.ToLower(m.Method.String())
			}
			if m.ContentCheckMode != monitors.NoCheck {
				mc.ContentCheckMode = m.ContentCheckMode.String()
			}
			if m.ContentType != monitors.ContentTypeText {
				mc.PostContentType = m.ContentType.String()
			}
			hsConfig.Monitors[strconv.Itoa(int(m.ID))] = mc
		}
		config.HostSchemes[strconv.Itoa(int(hs.ID))] = hsConfig
	}

	return CustomerAdd{strconv.Itoa(int(caps.ID)): config}, nil
}
