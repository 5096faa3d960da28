// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"zoran.io/zoran/private/dbutil"
	"zoran.io/zoran/private/migrate"
)

// migration returns the versioned schema steps for the open database.
func (db *database) migration() *migrate.Migration {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	blob := "BLOB"
	double := "REAL"
	if db.impl == dbutil.Postgres {
		serial = "SERIAL PRIMARY KEY"
		blob = "BYTEA"
		double = "DOUBLE PRECISION"
	}

	return &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{
			{
				DB:          db,
				Description: "Initial schema",
				Version:     0,
				Action: migrate.SQL{
					`CREATE TABLE customer_capabilities (
						id ` + serial + `,
						polling_interval INTEGER NOT NULL,
						active BOOLEAN NOT NULL,
						paused BOOLEAN NOT NULL,
						supports_post BOOLEAN NOT NULL,
						supports_content_match BOOLEAN NOT NULL,
						supports_keywords BOOLEAN NOT NULL,
						supports_ping BOOLEAN NOT NULL,
						supports_ssl_expiration BOOLEAN NOT NULL,
						supports_latency BOOLEAN NOT NULL,
						supports_maintenance BOOLEAN NOT NULL,
						supports_multi_region BOOLEAN NOT NULL
					)`,
					`CREATE TABLE host_scheme (
						id ` + serial + `,
						customer_id INTEGER NOT NULL REFERENCES customer_capabilities( id ) ON DELETE CASCADE,
						url TEXT NOT NULL,
						ssl_expiration_timestamp BIGINT NOT NULL,
						UNIQUE ( customer_id, url )
					)`,
					`CREATE TABLE monitor (
						id ` + serial + `,
						customer_id INTEGER NOT NULL REFERENCES customer_capabilities( id ) ON DELETE CASCADE,
						host_scheme_id INTEGER NOT NULL REFERENCES host_scheme( id ) ON DELETE CASCADE,
						user_ordering SMALLINT NOT NULL,
						slug TEXT NOT NULL,
						method INTEGER NOT NULL,
						content_check_mode INTEGER NOT NULL,
						keywords ` + blob + `,
						content_type INTEGER NOT NULL,
						user_agent TEXT NOT NULL,
						post_content ` + blob + `,
						UNIQUE ( host_scheme_id, slug )
					)`,
					`CREATE TABLE event (
						id ` + serial + `,
						monitor_id INTEGER NOT NULL,
						customer_id INTEGER NOT NULL REFERENCES customer_capabilities( id ) ON DELETE CASCADE,
						timestamp BIGINT NOT NULL,
						event_type INTEGER NOT NULL,
						message TEXT NOT NULL,
						hash ` + blob + `
					)`,
					`CREATE INDEX event_monitor_index ON event ( monitor_id, id )`,
					`CREATE INDEX event_customer_index ON event ( customer_id, id )`,
					`CREATE TABLE monitor_status (
						monitor_id INTEGER PRIMARY KEY REFERENCES monitor( id ) ON DELETE CASCADE,
						status INTEGER NOT NULL
					)`,
					`CREATE TABLE resources (
						customer_id INTEGER NOT NULL REFERENCES customer_capabilities( id ) ON DELETE CASCADE,
						value_type INTEGER NOT NULL,
						value ` + double + ` NOT NULL,
						timestamp1 BIGINT NOT NULL,
						timestamp2 BIGINT NOT NULL,
						PRIMARY KEY ( customer_id, value_type, timestamp1 )
					)`,
					`CREATE TABLE region (
						id ` + serial + `,
						label TEXT NOT NULL
					)`,
					`CREATE TABLE server (
						id ` + serial + `,
						region_id INTEGER NOT NULL REFERENCES region( id ),
						identifier TEXT NOT NULL UNIQUE,
						status INTEGER NOT NULL,
						cpu_loading ` + double + ` NOT NULL
					)`,
					`CREATE TABLE customer_mapping (
						customer_id INTEGER PRIMARY KEY REFERENCES customer_capabilities( id ) ON DELETE CASCADE,
						primary_server INTEGER NOT NULL,
						members TEXT NOT NULL
					)`,
				},
			},
		},
	}
}
