// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package monitors

import (
	"context"

	"go.uber.org/zap"

	"zoran.io/zoran/controller/customers"
)

// GetHostScheme returns a host/scheme by id.
func (service *Service) GetHostScheme(ctx context.Context, id HostSchemeID) (_ HostScheme, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.GetHostScheme(ctx, id)
}

// ListHostSchemes returns the customer's host/schemes.
func (service *Service) ListHostSchemes(ctx context.Context, customerID customers.ID) (_ []HostScheme, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.ListHostSchemes(ctx, customerID)
}

// CreateHostScheme validates and stores a bare host/scheme for the customer.
func (service *Service) CreateHostScheme(ctx context.Context, customerID customers.ID, rawURL string) (_ HostScheme, err error) {
	defer mon.Task()(&ctx)(&err)

	origin, err := ParseOrigin(rawURL)
	if err != nil {
		return HostScheme{}, err
	}
	if _, err := service.customers.Get(ctx, customerID); err != nil {
		return HostScheme{}, Error.Wrap(err)
	}

	existing, err := service.db.ListHostSchemes(ctx, customerID)
	if err != nil {
		return HostScheme{}, Error.Wrap(err)
	}
	for _, hs := range existing {
		if hs.URL == origin {
			return HostScheme{}, ErrValidation.New("host/scheme already exists: %q", origin)
		}
	}

	hs := HostScheme{CustomerID: customerID, URL: origin}
	hs.ID, err = service.db.CreateHostScheme(ctx, hs)
	if err != nil {
		return HostScheme{}, Error.Wrap(err)
	}
	return hs, nil
}

// ModifyHostScheme replaces the url of a stored host/scheme.
func (service *Service) ModifyHostScheme(ctx context.Context, id HostSchemeID, rawURL string) (err error) {
	defer mon.Task()(&ctx)(&err)

	origin, err := ParseOrigin(rawURL)
	if err != nil {
		return err
	}
	hs, err := service.db.GetHostScheme(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	hs.URL = origin
	if err := service.db.UpdateHostScheme(ctx, hs); err != nil {
		return Error.Wrap(err)
	}
	service.schedule(ctx, hs.CustomerID)
	return nil
}

// SetCertificate records the certificate expiration observed for the
// host/scheme, in unix seconds.
func (service *Service) SetCertificate(ctx context.Context, id HostSchemeID, expiresAt int64) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(service.db.SetSSLExpiration(ctx, id, expiresAt))
}

// DeleteHostScheme removes the host/scheme, cascading to its monitors, and
// enqueues a reconfiguration push.
func (service *Service) DeleteHostScheme(ctx context.Context, id HostSchemeID) (err error) {
	defer mon.Task()(&ctx)(&err)

	hs, err := service.db.GetHostScheme(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	if err := service.db.DeleteHostScheme(ctx, id); err != nil {
		return Error.Wrap(err)
	}
	service.schedule(ctx, hs.CustomerID)
	return nil
}

// GetMonitor returns a monitor by id.
func (service *Service) GetMonitor(ctx context.Context, id MonitorID) (_ Monitor, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.GetMonitor(ctx, id)
}

// ListMonitors returns the customer's monitors.
func (service *Service) ListMonitors(ctx context.Context, customerID customers.ID) (_ []Monitor, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.ListMonitors(ctx, customerID)
}

// DeleteMonitor removes a single monitor and enqueues a reconfiguration push.
// The owning host/scheme stays until the next reconciliation sweeps it.
func (service *Service) DeleteMonitor(ctx context.Context, id MonitorID) (err error) {
	defer mon.Task()(&ctx)(&err)

	m, err := service.db.GetMonitor(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	if err := service.db.DeleteMonitor(ctx, id); err != nil {
		return Error.Wrap(err)
	}
	service.schedule(ctx, m.CustomerID)
	return nil
}

// schedule enqueues a push with the deactivate flag derived from the
// customer's active flag.
func (service *Service) schedule(ctx context.Context, customerID customers.ID) {
	caps, err := service.customers.Get(ctx, customerID)
	if err != nil {
		service.log.Warn("skipping reconfiguration push",
			zap.Int32("customer_id", int32(customerID)), zap.Error(err))
		return
	}
	service.scheduler.Schedule(customerID, !caps.Active)
}
