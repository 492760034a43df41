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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := &MetadataStoreSqlite{maxConnections: DefaultMaxConnections}
	for _, opt := range []SqliteOptionFunc{
		WithDataDir("/tmp/test"),
		WithLogger(logger),
		WithPromRegistry(reg),
		WithMaxConnections(10),
		WithVacuumInterval(time.Hour),
	} {
		opt(m)
	}
	assert.Equal(t, "/tmp/test", m.dataDir)
	assert.Same(t, logger, m.logger)
	assert.Equal(t, reg, m.promRegistry)
	assert.Equal(t, 10, m.maxConnections)
	assert.Equal(t, time.Hour, m.vacuumInterval)

	// Non-positive values keep the current pool size
	WithMaxConnections(0)(m)
	assert.Equal(t, 10, m.maxConnections)
}

func TestPluginOptionsConversion(t *testing.T) {
	o := defaultPluginOptions()
	o.dataDir = t.TempDir()
	o.vacuumInterval = "0"
	opts, err := o.storeOptions()
	require.NoError(t, err)
	m := &MetadataStoreSqlite{vacuumInterval: DefaultVacuumInterval}
	for _, opt := range opts {
		opt(m)
	}
	assert.Equal(t, o.dataDir, m.dataDir)
	assert.Zero(t, m.vacuumInterval)

	o.vacuumInterval = "daily"
	_, err = o.storeOptions()
	require.Error(t, err)
}

func TestVacuumScheduling(t *testing.T) {
	inMemory, err := NewWithOptions()
	require.NoError(t, err)
	assert.Nil(t, inMemory.timerVacuum)
	require.NoError(t, inMemory.Close())

	onDisk, err := NewWithOptions(
		WithDataDir(t.TempDir()),
		WithVacuumInterval(time.Hour),
	)
	require.NoError(t, err)
	assert.NotNil(t, onDisk.timerVacuum)
	require.NoError(t, onDisk.runVacuum())
	require.NoError(t, onDisk.Close())
	assert.Nil(t, onDisk.timerVacuum)
	// Closing twice is a no-op
	require.NoError(t, onDisk.Close())
}
