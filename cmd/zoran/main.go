// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Zoran is the control plane of the website monitoring service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"zoran.io/zoran/controller"
	"zoran.io/zoran/controller/controldb"
)

var (
	rootCmd = &cobra.Command{
		Use:   "zoran",
		Short: "Zoran control plane",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the control plane",
		RunE:  cmdRun,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE:  cmdMigrate,
	}

	databaseURL string
	config      controller.Config
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)

	for _, cmd := range []*cobra.Command{runCmd, migrateCmd} {
		cmd.Flags().StringVar(&databaseURL, "database",
			"sqlite3://zoran.db", "database URL (postgres:// or sqlite3://)")
	}

	flags := runCmd.Flags()
	flags.StringVar(&config.API.Address, "api.address",
		":8080", "api http listening address")
	flags.StringVar(&config.API.SharedSecret, "api.shared-secret",
		"", "shared secret workers and integrations authenticate with")

	flags.StringVar(&config.Dispatch.Scheme, "dispatch.scheme",
		"https", "scheme used to reach workers (http or https)")
	flags.IntVar(&config.Dispatch.Port, "dispatch.port",
		8090, "port workers listen on")
	flags.StringVar(&config.Dispatch.UserAgent, "dispatch.user-agent",
		"zoran-controller", "user agent sent on worker requests")
	flags.StringVar(&config.Dispatch.Credential, "dispatch.credential",
		"", "shared bearer credential presented to every worker")
	flags.DurationVar(&config.Dispatch.RequestTimeout, "dispatch.request-timeout",
		10*time.Second, "timeout for a single delivery attempt")
	flags.DurationVar(&config.Dispatch.MaxElapsedTime, "dispatch.max-elapsed-time",
		30*time.Second, "total retry window before a post is dropped")
	flags.Int64Var(&config.Dispatch.MaxConcurrent, "dispatch.max-concurrent",
		64, "cap on in-flight deliveries across all workers")
	flags.IntVar(&config.Dispatch.QueueSize, "dispatch.queue-size",
		256, "posts buffered per worker before new ones are dropped")

	flags.StringVar(&config.Events.UpstreamIdentifier, "events.upstream-identifier",
		"upstream", "identifier of the upstream notification receiver")
	flags.StringVar(&config.Events.UpstreamEndpoint, "events.upstream-endpoint",
		"/event/notify", "endpoint events are reported to on the upstream receiver")
	flags.IntVar(&config.Events.HistoryLimit, "events.history-limit",
		100, "how many events a history listing returns at most")

	flags.DurationVar(&config.SSLExpiry.Interval, "ssl-expiry.interval",
		2*time.Second, "the time between expiration sweeps")
	flags.DurationVar(&config.SSLExpiry.Threshold, "ssl-expiry.threshold",
		72*time.Hour, "how long before expiration a certificate is reported as expiring")
	flags.BoolVar(&config.SSLExpiry.Enabled, "ssl-expiry.enabled",
		true, "set if the SSL expiration sweeper is enabled or not")

	flags.IntVar(&config.Resources.CacheCapacity, "resources.cache-capacity",
		1000, "how many customers' active-resource bitsets stay cached")
	flags.DurationVar(&config.Purger.Interval, "resources.purge-interval",
		24*time.Hour, "the time between purge runs")
	flags.DurationVar(&config.Purger.MaxAge, "resources.max-age",
		0, "samples older than this are deleted, 0 disables purging")

	flags.DurationVar(&config.Reconfig.Debounce, "reconfig.debounce",
		10*time.Second, "how long edits for one customer coalesce before the push fires")
	flags.IntVar(&config.Reconfig.QueueSize, "reconfig.queue-size",
		1024, "pending schedule requests buffered before new ones are dropped")
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := commandContext()
	defer cancel()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := controldb.Open(ctx, log.Named("db"), databaseURL)
	if err != nil {
		return errs.New("error connecting to control database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return errs.New("error migrating control database: %+v", err)
	}

	peer, err := controller.New(log, db, config)
	if err != nil {
		return err
	}

	runError := peer.Run(ctx)
	closeError := peer.Close()
	return errs.Combine(runError, closeError)
}

func cmdMigrate(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := commandContext()
	defer cancel()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := controldb.Open(ctx, log.Named("db"), databaseURL)
	if err != nil {
		return errs.New("error connecting to control database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	return db.MigrateToLatest(ctx)
}

// commandContext cancels on SIGINT and SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
