// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/thor-relayer/log"
	"github.com/vechain/thor-relayer/syncer"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file, explicitly set flags take precedence",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the relayer database",
	}
	devFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "keep the database in memory",
	}
	cacheFlag = cli.Uint64Flag{
		Name:  "cache",
		Usage: "megabytes of ram allocated to the database cache",
		Value: 256,
	}
	peekCacheSizeFlag = cli.Uint64Flag{
		Name:  "peek-cache-size",
		Usage: "number of historical validator sets kept in memory",
		Value: 128,
	}

	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8670",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiTimeoutFlag = cli.Uint64Flag{
		Name:  "api-timeout",
		Value: 10000,
		Usage: "API request timeout value in milliseconds",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	apiSlowQueriesThresholdFlag = cli.Uint64Flag{
		Name:  "api-slow-queries-threshold",
		Usage: "all queries with duration longer than this threshold (in milliseconds) will be logged, 0 disables",
	}
	apiLog5xxErrorsFlag = cli.BoolFlag{
		Name:  "api-log-5xx-errors",
		Usage: "log API requests answered with a server error",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}

	verbosityFlag = cli.Uint64Flag{
		Name:  "verbosity",
		Value: log.LegacyLevelInfo,
		Usage: "log verbosity (0-9)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}

	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables admin server",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}

	daFinalizationFlag = cli.Uint64Flag{
		Name:  "da-finalization",
		Value: syncer.DefaultFinality,
		Usage: "number of source ledger heights behind the head considered final",
	}
	initialSyncStepFlag = cli.Uint64Flag{
		Name:  "initial-sync-step",
		Value: syncer.DefaultStep,
		Usage: "maximum number of heights the validator set advances at once",
	}
	syncRefreshFlag = cli.DurationFlag{
		Name:  "sync-refresh",
		Value: syncer.DefaultRefresh,
		Usage: "interval between sync rounds when no diffs arrive",
	}
)

var appFlags = []cli.Flag{
	configFlag,
	dataDirFlag,
	devFlag,
	cacheFlag,
	peekCacheSizeFlag,
	apiAddrFlag,
	apiCorsFlag,
	apiTimeoutFlag,
	enableAPILogsFlag,
	apiSlowQueriesThresholdFlag,
	apiLog5xxErrorsFlag,
	pprofFlag,
	verbosityFlag,
	jsonLogsFlag,
	enableMetricsFlag,
	metricsAddrFlag,
	enableAdminFlag,
	adminAddrFlag,
	daFinalizationFlag,
	initialSyncStepFlag,
	syncRefreshFlag,
}

// health turns bad after this many missed refresh rounds
const healthIdleRounds = 3

func maxIdle(refresh time.Duration) time.Duration {
	return healthIdleRounds * refresh
}
