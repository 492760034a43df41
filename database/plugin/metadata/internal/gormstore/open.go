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

package gormstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenConfig controls how Open sets up the connection pool
type OpenConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// MetricsName labels the pool statistics collector, e.g. metadata_sqlite
	MetricsName     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PrepareStmt     bool
}

// Open connects through the dialector, sizes the pool, registers pool metrics
// and returns a migrated Store. Errors from gorm.Open are wrapped, so callers
// can still inspect driver errors with errors.As
func Open(dialector gorm.Dialector, cfg OpenConfig) (*Store, error) {
	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            cfg.PrepareStmt,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	store, err := New(db, cfg.Logger)
	if err != nil {
		return nil, errors.Join(err, sqlDB.Close())
	}
	if cfg.PromRegistry != nil && cfg.MetricsName != "" {
		if err := cfg.PromRegistry.Register(
			collectors.NewDBStatsCollector(sqlDB, cfg.MetricsName),
		); err != nil {
			return nil, errors.Join(
				fmt.Errorf("register metadata metrics: %w", err),
				sqlDB.Close(),
			)
		}
	}
	return store, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.DB().DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}
