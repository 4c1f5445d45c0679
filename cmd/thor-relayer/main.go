// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/thor-relayer/api"
	"github.com/vechain/thor-relayer/api/admin"
	"github.com/vechain/thor-relayer/health"
	"github.com/vechain/thor-relayer/log"
	"github.com/vechain/thor-relayer/lvldb"
	"github.com/vechain/thor-relayer/metrics"
	"github.com/vechain/thor-relayer/stakedb"
	"github.com/vechain/thor-relayer/syncer"
	"github.com/vechain/thor-relayer/validators"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Thor-Relayer",
		Usage:     "Validator set relayer of VeChain Thor",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Flags:     appFlags,
		Action:    defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	exitSignal := handleExitSignal()
	defer func() { log.Info("exited") }()

	if err := applyConfigFile(ctx); err != nil {
		return err
	}
	logLevel, err := initLogger(ctx)
	if err != nil {
		return err
	}

	// meters bind to the backend on first use, so switch it before anything records
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	var (
		mainDB  *lvldb.LevelDB
		dataDir string
	)
	if ctx.Bool(devFlag.Name) {
		dataDir = "Memory"
		mainDB, err = openMemMainDB()
	} else {
		if dataDir, err = makeDataDir(ctx); err != nil {
			return err
		}
		mainDB, err = openMainDB(ctx, dataDir)
	}
	if err != nil {
		return err
	}
	defer func() { log.Info("closing main database..."); mainDB.Close() }()

	store := stakedb.New(mainDB)

	peekCacheSize, err := readIntFromUInt64Flag(ctx.Uint64(peekCacheSizeFlag.Name))
	if err != nil {
		return errors.Wrap(err, "parse peek-cache-size flag")
	}
	engine, err := validators.New(store, validators.Options{PeekCacheSize: peekCacheSize})
	if err != nil {
		return err
	}
	if err := engine.Load(exitSignal); err != nil {
		return errors.Wrap(err, "load validator set")
	}
	head, err := store.Head(exitSignal)
	if err != nil {
		return err
	}

	refresh := ctx.Duration(syncRefreshFlag.Name)
	healthStatus := health.New(maxIdle(refresh))
	setSyncer := syncer.New(engine, store, healthStatus, syncer.Options{
		Finality: ctx.Uint64(daFinalizationFlag.Name),
		Step:     ctx.Uint64(initialSyncStepFlag.Name),
		Refresh:  refresh,
	})

	var metricsURL string
	if ctx.Bool(enableMetricsFlag.Name) {
		url, stop, err := startMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return err
		}
		defer func() { log.Info("stopping metrics server..."); stop() }()
		metricsURL = url
	}

	var apiLogs atomic.Bool
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))

	apiHandler := api.New(engine, store, setSyncer.Notify, api.Options{
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		PprofOn:              ctx.Bool(pprofFlag.Name),
		EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
		EnableReqLogger:      &apiLogs,
		SlowQueriesThreshold: time.Duration(ctx.Uint64(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
		Log5xxErrors:         ctx.Bool(apiLog5xxErrorsFlag.Name),
	})
	apiURL, stopAPI, err := startAPIServer(ctx, apiHandler)
	if err != nil {
		return err
	}
	defer func() { log.Info("stopping API server..."); stopAPI() }()

	var adminURL string
	if ctx.Bool(enableAdminFlag.Name) {
		url, stop, err := startAdminServer(ctx.String(adminAddrFlag.Name), admin.New(logLevel, &apiLogs, healthStatus))
		if err != nil {
			return err
		}
		defer func() { log.Info("stopping admin server..."); stop() }()
		adminURL = url
	}

	printStartupMessage(os.Stdout, engine.Current(), head, dataDir, apiURL, metricsURL, adminURL)

	setSyncer.Run(exitSignal)
	return nil
}
