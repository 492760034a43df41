// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/degree/database/plugin"
)

type pluginOptions struct {
	dataDir        string
	vacuumInterval string
	maxConns       int
}

func defaultPluginOptions() pluginOptions {
	return pluginOptions{
		dataDir:        ".degree",
		vacuumInterval: DefaultVacuumInterval.String(),
		maxConns:       DefaultMaxConnections,
	}
}

var (
	cmdlineOptions      = defaultPluginOptions()
	cmdlineOptionsMutex sync.RWMutex
)

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "sqlite",
			Description:        "SQLite relational database",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for sqlite storage",
					DefaultValue: cmdlineOptions.dataDir,
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "max-connections",
					Type:         plugin.PluginOptionTypeInt,
					Description:  "Maximum number of open connections",
					DefaultValue: cmdlineOptions.maxConns,
					Dest:         &(cmdlineOptions.maxConns),
				},
				{
					Name:         "vacuum-interval",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Interval between VACUUM runs, 0 to disable",
					DefaultValue: cmdlineOptions.vacuumInterval,
					Dest:         &(cmdlineOptions.vacuumInterval),
				},
			},
		},
	)
}

// storeOptions converts the plugin option values into store options
func (o pluginOptions) storeOptions() ([]SqliteOptionFunc, error) {
	interval, err := time.ParseDuration(o.vacuumInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid vacuum-interval: %w", err)
	}
	return []SqliteOptionFunc{
		WithDataDir(o.dataDir),
		WithMaxConnections(o.maxConns),
		WithVacuumInterval(interval),
	}, nil
}

func NewFromCmdlineOptions() plugin.Plugin {
	cmdlineOptionsMutex.RLock()
	opts, err := cmdlineOptions.storeOptions()
	cmdlineOptionsMutex.RUnlock()
	if err != nil {
		return plugin.NewErrorPlugin(err)
	}
	opts = append(
		opts,
		WithLogger(plugin.PluginLogger(plugin.PluginTypeMetadata, "sqlite")),
		WithPromRegistry(plugin.RuntimePromRegistry()),
	)
	p, err := NewWithOptions(opts...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
