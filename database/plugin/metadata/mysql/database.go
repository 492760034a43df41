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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/degree/database/plugin/metadata"
	"github.com/blinklabs-io/degree/database/plugin/metadata/internal/gormstore"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mysqlErrUnknownDatabase is the server error number for a missing schema
const mysqlErrUnknownDatabase = 1049

// DefaultConnConfig is used for any connection setting not supplied
var DefaultConnConfig = metadata.ConnConfig{
	Host:         "localhost",
	Port:         3306,
	User:         "root",
	Database:     "degree",
	TimeZone:     "UTC",
	MaxOpenConns: 100,
}

// MetadataStoreMysql keeps the diploma index and audit trail in MySQL
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	conn         metadata.ConnConfig
}

type MysqlOptionFunc func(*MetadataStoreMysql)

func WithLogger(logger *slog.Logger) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.logger = logger
	}
}

func WithPromRegistry(registry prometheus.Registerer) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.promRegistry = registry
	}
}

// WithConnection replaces the connection settings. Empty fields fall back to
// DefaultConnConfig
func WithConnection(conn metadata.ConnConfig) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn = conn
	}
}

// NewWithOptions creates a new store. The connection is opened by Start()
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	db := &MetadataStoreMysql{
		conn: DefaultConnConfig,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.conn.Host == "" {
		db.conn.Host = DefaultConnConfig.Host
	}
	if db.conn.Port == 0 {
		db.conn.Port = DefaultConnConfig.Port
	}
	if db.conn.User == "" {
		db.conn.User = DefaultConnConfig.User
	}
	if db.conn.Database == "" {
		db.conn.Database = DefaultConnConfig.Database
	}
	if db.conn.MaxOpenConns <= 0 {
		db.conn.MaxOpenConns = DefaultConnConfig.MaxOpenConns
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// dsn returns the configured DSN, or one built from the individual settings,
// along with the database name it targets
func (d *MetadataStoreMysql) dsn() (string, string) {
	if dsn := strings.TrimSpace(d.conn.DSN); dsn != "" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return dsn, ""
		}
		return dsn, cfg.DBName
	}
	cfg := mysql.NewConfig()
	cfg.User = d.conn.User
	cfg.Passwd = d.conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(
		d.conn.Host,
		strconv.FormatUint(uint64(d.conn.Port), 10),
	)
	cfg.DBName = d.conn.Database
	cfg.ParseTime = true
	if d.conn.TimeZone != "" {
		if loc, err := time.LoadLocation(d.conn.TimeZone); err == nil {
			cfg.Loc = loc
		}
	}
	cfg.TLSConfig = d.conn.SSLMode
	return cfg.FormatDSN(), d.conn.Database
}

func (d *MetadataStoreMysql) open(dsn string) (*gormstore.Store, error) {
	return gormstore.Open(
		gormmysql.Open(dsn),
		gormstore.OpenConfig{
			Logger:          d.logger,
			PromRegistry:    d.promRegistry,
			MetricsName:     "metadata_mysql",
			MaxOpenConns:    d.conn.MaxOpenConns,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			PrepareStmt:     true,
		},
	)
}

// Start implements the plugin.Plugin interface. The schema is created on
// first start when the server reports it missing
func (d *MetadataStoreMysql) Start() error {
	dsn, dbName := d.dsn()
	store, err := d.open(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) ||
			mysqlErr.Number != mysqlErrUnknownDatabase {
			return err
		}
		if createErr := createDatabase(dsn, dbName); createErr != nil {
			return errors.Join(err, createErr)
		}
		if store, err = d.open(dsn); err != nil {
			return err
		}
	}
	d.Store = store
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"host", d.conn.Host,
		"port", d.conn.Port,
		"database", dbName,
	)
	return nil
}

// createDatabase connects without a schema and creates dbName
func createDatabase(dsn string, dbName string) error {
	if dbName == "" {
		return errors.New("no database name in DSN")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	cfg.DBName = ""
	adminDb, err := gorm.Open(
		gormmysql.Open(cfg.FormatDSN()),
		&gorm.Config{Logger: gormlogger.Discard},
	)
	if err != nil {
		return err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return err
	}
	defer sqlAdminDb.Close()
	return adminDb.Exec(
		fmt.Sprintf(
			"CREATE DATABASE IF NOT EXISTS `%s`",
			strings.ReplaceAll(dbName, "`", "``"),
		),
	).Error
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}
