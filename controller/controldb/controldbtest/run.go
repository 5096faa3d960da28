// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package controldbtest runs a test against every supported database
// implementation.
package controldbtest

import (
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/common/testcontext"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/controldb"
	"zoran.io/zoran/private/dbutil"
)

// postgresEnv selects an optional postgres instance for the tests. The
// database is wiped before every run, so point it at a dedicated test
// database.
const postgresEnv = "ZORAN_TEST_POSTGRES"

// Run executes the test against sqlite and, when configured, postgres. The
// schema is migrated to latest before the test body runs.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, db controller.DB)) {
	databases := []struct {
		name string
		url  func(ctx *testcontext.Context) string
	}{
		{
			name: "sqlite3",
			url: func(ctx *testcontext.Context) string {
				return "sqlite3://" + ctx.File("control.db")
			},
		},
	}
	if postgres := os.Getenv(postgresEnv); postgres != "" {
		databases = append(databases, struct {
			name string
			url  func(ctx *testcontext.Context) string
		}{
			name: "postgres",
			url:  func(*testcontext.Context) string { return postgres },
		})
	}

	for _, database := range databases {
		database := database
		t.Run(database.name, func(t *testing.T) {
			ctx := testcontext.New(t)
			defer ctx.Cleanup()

			url := database.url(ctx)
			if database.name == "postgres" {
				wipe(ctx, t, url)
			}

			db, err := controldb.Open(ctx, zaptest.NewLogger(t), url)
			require.NoError(t, err)
			defer ctx.Check(db.Close)

			require.NoError(t, db.MigrateToLatest(ctx))
			test(ctx, t, db)
		})
	}
}

// wipe drops every table the migration creates so repeated runs against the
// same postgres database start clean.
func wipe(ctx *testcontext.Context, t *testing.T, url string) {
	driver, source, _, err := dbutil.SplitConnStr(url)
	require.NoError(t, err)

	db, err := sql.Open(driver, source)
	require.NoError(t, err)
	defer ctx.Check(db.Close)

	for _, table := range []string{
		"versions",
		"customer_mapping",
		"server",
		"region",
		"resources",
		"monitor_status",
		"event",
		"monitor",
		"host_scheme",
		"customer_capabilities",
	} {
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table+` CASCADE`)
		require.NoError(t, err)
	}
}
