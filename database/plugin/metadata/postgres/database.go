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

package postgres

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/degree/database/plugin/metadata"
	"github.com/blinklabs-io/degree/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
)

// DefaultConnConfig is used for any connection setting not supplied
var DefaultConnConfig = metadata.ConnConfig{
	Host:         "localhost",
	Port:         5432,
	User:         "postgres",
	Database:     "degree",
	SSLMode:      "disable",
	TimeZone:     "UTC",
	MaxOpenConns: 100,
}

// MetadataStorePostgres keeps the diploma index and audit trail in Postgres
type MetadataStorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	conn         metadata.ConnConfig
}

type PostgresOptionFunc func(*MetadataStorePostgres)

func WithLogger(logger *slog.Logger) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.promRegistry = registry
	}
}

// WithConnection replaces the connection settings. Empty fields fall back to
// DefaultConnConfig
func WithConnection(conn metadata.ConnConfig) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn = conn
	}
}

// NewWithOptions creates a new store. The connection is opened by Start()
func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	db := &MetadataStorePostgres{
		conn: DefaultConnConfig,
	}
	for _, opt := range opts {
		opt(db)
	}
	db.conn = withDefaults(db.conn)
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

func withDefaults(conn metadata.ConnConfig) metadata.ConnConfig {
	if conn.Host == "" {
		conn.Host = DefaultConnConfig.Host
	}
	if conn.Port == 0 {
		conn.Port = DefaultConnConfig.Port
	}
	if conn.User == "" {
		conn.User = DefaultConnConfig.User
	}
	if conn.Database == "" {
		conn.Database = DefaultConnConfig.Database
	}
	if conn.SSLMode == "" {
		conn.SSLMode = DefaultConnConfig.SSLMode
	}
	if conn.MaxOpenConns <= 0 {
		conn.MaxOpenConns = DefaultConnConfig.MaxOpenConns
	}
	return conn
}

// dsn returns the configured DSN, or a keyword/value string built from the
// individual settings
func (d *MetadataStorePostgres) dsn() string {
	if dsn := strings.TrimSpace(d.conn.DSN); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + d.conn.Host,
		"user=" + d.conn.User,
		"password=" + d.conn.Password,
		"dbname=" + d.conn.Database,
		"port=" + strconv.FormatUint(uint64(d.conn.Port), 10),
		"sslmode=" + d.conn.SSLMode,
	}
	if d.conn.TimeZone != "" {
		parts = append(parts, "TimeZone="+d.conn.TimeZone)
	}
	return strings.Join(parts, " ")
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	store, err := gormstore.Open(
		postgres.Open(d.dsn()),
		gormstore.OpenConfig{
			Logger:          d.logger,
			PromRegistry:    d.promRegistry,
			MetricsName:     "metadata_postgres",
			MaxOpenConns:    d.conn.MaxOpenConns,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			PrepareStmt:     true,
		},
	)
	if err != nil {
		return err
	}
	d.Store = store
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
		"host", d.conn.Host,
		"port", d.conn.Port,
		"database", d.conn.Database,
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}
