// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"
)

// config mirrors the command line flags. Absent keys leave the flag untouched.
type config struct {
	DataDir                 *string        `yaml:"data-dir"`
	Cache                   *uint64        `yaml:"cache"`
	PeekCacheSize           *uint64        `yaml:"peek-cache-size"`
	APIAddr                 *string        `yaml:"api-addr"`
	APICors                 *string        `yaml:"api-cors"`
	APITimeout              *uint64        `yaml:"api-timeout"`
	EnableAPILogs           *bool          `yaml:"enable-api-logs"`
	APISlowQueriesThreshold *uint64        `yaml:"api-slow-queries-threshold"`
	APILog5xxErrors         *bool          `yaml:"api-log-5xx-errors"`
	Verbosity               *uint64        `yaml:"verbosity"`
	JSONLogs                *bool          `yaml:"json-logs"`
	EnableMetrics           *bool          `yaml:"enable-metrics"`
	MetricsAddr             *string        `yaml:"metrics-addr"`
	EnableAdmin             *bool          `yaml:"enable-admin"`
	AdminAddr               *string        `yaml:"admin-addr"`
	DAFinalization          *uint64        `yaml:"da-finalization"`
	InitialSyncStep         *uint64        `yaml:"initial-sync-step"`
	SyncRefresh             *time.Duration `yaml:"sync-refresh"`
}

func loadConfig(path string) (*config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer file.Close()

	var cfg config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "decode config file [%v]", path)
	}
	return &cfg, nil
}

func (c *config) values() map[string]string {
	values := make(map[string]string)
	add := func(name string, v any) {
		switch v := v.(type) {
		case *string:
			if v != nil {
				values[name] = *v
			}
		case *uint64:
			if v != nil {
				values[name] = fmt.Sprint(*v)
			}
		case *bool:
			if v != nil {
				values[name] = fmt.Sprint(*v)
			}
		case *time.Duration:
			if v != nil {
				values[name] = v.String()
			}
		}
	}
	add(dataDirFlag.Name, c.DataDir)
	add(cacheFlag.Name, c.Cache)
	add(peekCacheSizeFlag.Name, c.PeekCacheSize)
	add(apiAddrFlag.Name, c.APIAddr)
	add(apiCorsFlag.Name, c.APICors)
	add(apiTimeoutFlag.Name, c.APITimeout)
	add(enableAPILogsFlag.Name, c.EnableAPILogs)
	add(apiSlowQueriesThresholdFlag.Name, c.APISlowQueriesThreshold)
	add(apiLog5xxErrorsFlag.Name, c.APILog5xxErrors)
	add(verbosityFlag.Name, c.Verbosity)
	add(jsonLogsFlag.Name, c.JSONLogs)
	add(enableMetricsFlag.Name, c.EnableMetrics)
	add(metricsAddrFlag.Name, c.MetricsAddr)
	add(enableAdminFlag.Name, c.EnableAdmin)
	add(adminAddrFlag.Name, c.AdminAddr)
	add(daFinalizationFlag.Name, c.DAFinalization)
	add(initialSyncStepFlag.Name, c.InitialSyncStep)
	add(syncRefreshFlag.Name, c.SyncRefresh)
	return values
}

// applyConfigFile loads the file named by the config flag, if any, into the flags not set on the command line.
func applyConfigFile(ctx *cli.Context) error {
	path := ctx.String(configFlag.Name)
	if path == "" {
		return nil
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	for name, value := range cfg.values() {
		if ctx.IsSet(name) {
			continue
		}
		if err := ctx.Set(name, value); err != nil {
			return errors.Wrapf(err, "config %v", name)
		}
	}
	return nil
}
