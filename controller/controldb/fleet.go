// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
	"zoran.io/zoran/controller/fleet"
)

// fleetDB implements fleet.DB. Mapping members are stored as an ordered
// comma separated id list so one row carries the whole assignment.
type fleetDB struct {
	*database
}

func (db *fleetDB) GetServer(ctx context.Context, id fleet.ServerID) (_ fleet.Server, err error) {
	defer mon.Task()(&ctx)(&err)

	var server fleet.Server
	err = db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT id, region_id, identifier, status, cpu_loading
		FROM server WHERE id = ?`), id).
		Scan(&server.ID, &server.RegionID, &server.Identifier, &server.Status, &server.CPULoading)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Server{}, fleet.ErrNotFound.New("server %d", id)
	}
	return server, Error.Wrap(err)
}

func (db *fleetDB) CreateServer(ctx context.Context, server fleet.Server) (_ fleet.ServerID, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := db.insertReturningID(ctx, `
		INSERT INTO server ( region_id, identifier, status, cpu_loading )
		VALUES ( ?, ?, ?, ? )`,
		server.RegionID, server.Identifier, server.Status, server.CPULoading)
	return fleet.ServerID(id), err
}

func (db *fleetDB) UpdateServer(ctx context.Context, server fleet.Server) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`
		UPDATE server SET region_id = ?, identifier = ?, status = ?, cpu_loading = ?
		WHERE id = ?`),
		server.RegionID, server.Identifier, server.Status, server.CPULoading, server.ID)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, fleet.ErrNotFound.New("server %d", server.ID))
}

func (db *fleetDB) DeleteServer(ctx context.Context, id fleet.ServerID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, db.Rebind(`DELETE FROM server WHERE id = ?`), id)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireRow(result, fleet.ErrNotFound.New("server %d", id))
}

func (db *fleetDB) ListServers(ctx context.Context) (_ []fleet.Server, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, region_id, identifier, status, cpu_loading
		FROM server ORDER BY id`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []fleet.Server
	for rows.Next() {
		var server fleet.Server
		if err := rows.Scan(&server.ID, &server.RegionID, &server.Identifier, &server.Status, &server.CPULoading); err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, server)
	}
	return list, nil
}

func (db *fleetDB) CreateRegion(ctx context.Context, region fleet.Region) (_ fleet.RegionID, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := db.insertReturningID(ctx, `INSERT INTO region ( label ) VALUES ( ? )`, region.Label)
	return fleet.RegionID(id), err
}

func (db *fleetDB) ListRegions(ctx context.Context) (_ []fleet.Region, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, `SELECT id, label FROM region ORDER BY id`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []fleet.Region
	for rows.Next() {
		var region fleet.Region
		if err := rows.Scan(&region.ID, &region.Label); err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, region)
	}
	return list, nil
}

func (db *fleetDB) GetMapping(ctx context.Context, customerID customers.ID) (_ fleet.Mapping, err error) {
	defer mon.Task()(&ctx)(&err)

	var members string
	mapping := fleet.Mapping{CustomerID: customerID}
	err = db.db.QueryRowContext(ctx, db.Rebind(`
		SELECT primary_server, members FROM customer_mapping WHERE customer_id = ?`), customerID).
		Scan(&mapping.Primary, &members)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Mapping{}, fleet.ErrNotFound.New("mapping for customer %d", customerID)
	}
	if err != nil {
		return fleet.Mapping{}, Error.Wrap(err)
	}
	mapping.Members, err = decodeMembers(members)
	return mapping, err
}

func (db *fleetDB) SetMapping(ctx context.Context, mapping fleet.Mapping) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx, db.Rebind(`
		INSERT INTO customer_mapping ( customer_id, primary_server, members )
		VALUES ( ?, ?, ? )
		ON CONFLICT ( customer_id ) DO UPDATE SET primary_server = ?, members = ?`),
		mapping.CustomerID, mapping.Primary, encodeMembers(mapping.Members),
		mapping.Primary, encodeMembers(mapping.Members))
	return Error.Wrap(err)
}

func (db *fleetDB) DeleteMapping(ctx context.Context, customerID customers.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = db.db.ExecContext(ctx,
		db.Rebind(`DELETE FROM customer_mapping WHERE customer_id = ?`), customerID)
	return Error.Wrap(err)
}

func (db *fleetDB) ListMappingsByServer(ctx context.Context, id fleet.ServerID) (_ []fleet.Mapping, err error) {
	defer mon.Task()(&ctx)(&err)

	// Membership is decided in Go: a LIKE over the csv column would match
	// id prefixes.
	rows, err := db.db.QueryContext(ctx, `
		SELECT customer_id, primary_server, members FROM customer_mapping ORDER BY customer_id`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Err(), rows.Close())) }()

	var list []fleet.Mapping
	for rows.Next() {
		var mapping fleet.Mapping
		var members string
		if err := rows.Scan(&mapping.CustomerID, &mapping.Primary, &members); err != nil {
			return nil, Error.Wrap(err)
		}
		mapping.Members, err = decodeMembers(members)
		if err != nil {
			return nil, err
		}
		if mapping.HasMember(id) {
			list = append(list, mapping)
		}
	}
	return list, nil
}

// encodeMembers renders the ordered member list as comma separated ids.
func encodeMembers(members []fleet.ServerID) string {
	parts := make([]string, len(members))
	for i, member := range members {
		parts[i] = strconv.Itoa(int(member))
	}
	return strings.Join(parts, ",")
}

// decodeMembers reverses encodeMembers.
func decodeMembers(encoded string) ([]fleet.ServerID, error) {
	if encoded == "" {
		return nil, nil
	}
	parts := strings.Split(encoded, ",")
	members := make([]fleet.ServerID, len(parts))
	for i, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, Error.New("malformed member list %q: %w", encoded, err)
		}
		members[i] = fleet.ServerID(id)
	}
	return members, nil
}
