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

package badger

import (
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/degree/database/plugin"
)

// Default cache sizes for BadgerDB (in bytes)
const (
	DefaultBlockCacheSize = 256 << 20
	DefaultIndexCacheSize = 64 << 20
	DefaultGcInterval     = 5 * time.Minute
)

type pluginOptions struct {
	dataDir        string
	gcInterval     string
	blockCacheSize uint64
	indexCacheSize uint64
	gc             bool
	syncWrites     bool
}

func defaultPluginOptions() pluginOptions {
	return pluginOptions{
		dataDir:        ".degree",
		gcInterval:     DefaultGcInterval.String(),
		blockCacheSize: DefaultBlockCacheSize,
		indexCacheSize: DefaultIndexCacheSize,
		gc:             true,
		syncWrites:     true,
	}
}

var (
	cmdlineOptions      = defaultPluginOptions()
	cmdlineOptionsMutex sync.RWMutex
)

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "badger",
			Description:        "BadgerDB local key-value store",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for badger storage",
					DefaultValue: cmdlineOptions.dataDir,
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "block-cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Badger block cache size",
					DefaultValue: cmdlineOptions.blockCacheSize,
					Dest:         &(cmdlineOptions.blockCacheSize),
				},
				{
					Name:         "index-cache-size",
					Type:         plugin.PluginOptionTypeUint,
					Description:  "Badger index cache size",
					DefaultValue: cmdlineOptions.indexCacheSize,
					Dest:         &(cmdlineOptions.indexCacheSize),
				},
				{
					Name:         "gc",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Enable value log garbage collection",
					DefaultValue: cmdlineOptions.gc,
					Dest:         &(cmdlineOptions.gc),
				},
				{
					Name:         "gc-interval",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Interval between value log garbage collection runs",
					DefaultValue: cmdlineOptions.gcInterval,
					Dest:         &(cmdlineOptions.gcInterval),
				},
				{
					Name:         "sync-writes",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Fsync each commit before it is acknowledged",
					DefaultValue: cmdlineOptions.syncWrites,
					Dest:         &(cmdlineOptions.syncWrites),
				},
			},
		},
	)
}

// storeOptions converts the plugin option values into store options
func (o pluginOptions) storeOptions() ([]BlobStoreBadgerOptionFunc, error) {
	interval, err := time.ParseDuration(o.gcInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid gc-interval: %w", err)
	}
	return []BlobStoreBadgerOptionFunc{
		WithDataDir(o.dataDir),
		WithBlockCacheSize(o.blockCacheSize),
		WithIndexCacheSize(o.indexCacheSize),
		WithGc(o.gc),
		WithGcInterval(interval),
		WithSyncWrites(o.syncWrites),
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
		WithLogger(plugin.PluginLogger(plugin.PluginTypeBlob, "badger")),
		WithPromRegistry(plugin.RuntimePromRegistry()),
	)
	p, err := New(opts...)
	if err != nil {
		// Return a plugin that defers the error to Start()
		return plugin.NewErrorPlugin(err)
	}
	return p
}
