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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/degree/database/plugin/metadata/internal/gormstore"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultMaxConnections = 4
	DefaultVacuumInterval = 24 * time.Hour
)

// WAL journal mode, wait on lock contention, increase cache size to 50MB (from 2MB)
const onDiskPragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=cache_size(-50000)"

// memoryDbCounter gives each in-memory store its own shared-cache name so
// that stores opened in the same process do not see each other's tables
var memoryDbCounter atomic.Uint64

// MetadataStoreSqlite keeps the diploma index and audit trail in SQLite
type MetadataStoreSqlite struct {
	*gormstore.Store
	promRegistry   prometheus.Registerer
	logger         *slog.Logger
	timerVacuum    *time.Timer
	dataDir        string
	vacuumWG       sync.WaitGroup
	timerMutex     sync.Mutex
	vacuumInterval time.Duration
	maxConnections int
	closed         bool
}

// New creates a SQLite metadata store. Uses in-memory database if dataDir is empty.
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	return NewWithOptions(
		WithDataDir(dataDir),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a SQLite metadata store from functional options
func NewWithOptions(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	db := &MetadataStoreSqlite{
		maxConnections: DefaultMaxConnections,
		vacuumInterval: DefaultVacuumInterval,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dsn, maxConns, err := db.dsn()
	if err != nil {
		return nil, err
	}
	store, err := gormstore.Open(
		sqlite.Open(dsn),
		gormstore.OpenConfig{
			Logger:       db.logger,
			PromRegistry: db.promRegistry,
			MetricsName:  "metadata_sqlite",
			MaxOpenConns: maxConns,
		},
	)
	if err != nil {
		return nil, err
	}
	db.Store = store
	db.scheduleVacuum()
	return db, nil
}

// dsn returns the connection string and pool size. The data dir is created
// if missing
func (d *MetadataStoreSqlite) dsn() (string, int, error) {
	if d.dataDir == "" {
		// A single connection serializes access to the in-memory database,
		// which otherwise reports table locks under concurrent writers
		return fmt.Sprintf(
			"file:degree-%d?mode=memory&cache=shared",
			memoryDbCounter.Add(1),
		), 1, nil
	}
	if _, err := os.Stat(d.dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
			return "", 0, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	return fmt.Sprintf(
		"file:%s?%s",
		filepath.Join(d.dataDir, "metadata.sqlite"),
		onDiskPragmas,
	), d.maxConnections, nil
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	// Track this vacuum operation while we know the store is open
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()

	return d.DB().Exec("VACUUM").Error
}

// scheduleVacuum arms the next periodic VACUUM. In-memory stores and a
// zero interval skip it
func (d *MetadataStoreSqlite) scheduleVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed || d.dataDir == "" || d.vacuumInterval <= 0 {
		return
	}
	d.timerVacuum = time.AfterFunc(d.vacuumInterval, func() {
		d.logger.Debug(
			"running vacuum on sqlite metadata database",
			"component", "database",
		)
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in metadata store",
				"component", "database",
				"error", err,
			)
		}
		d.scheduleVacuum()
	})
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Start() error {
	// Database is already opened in NewWithOptions()
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

// Close stops the vacuum timer, waits for a running vacuum and closes the
// connection pool
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()

	d.vacuumWG.Wait()
	return d.Store.Close()
}
