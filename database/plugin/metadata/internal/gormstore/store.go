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

// Package gormstore holds the query code shared by the gorm-backed metadata
// plugins. Each plugin owns its connection and embeds a Store.
package gormstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/types"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps an open gorm handle, enables query tracing and applies migrations
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{
		db:     db,
		logger: logger,
	}
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	for _, model := range models.MigrateModels {
		s.logger.Debug(
			fmt.Sprintf("creating table: %#v", model),
			"component", "database",
		)
		if err := s.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying gorm handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AutoMigrate wraps the gorm AutoMigrate
func (s *Store) AutoMigrate(dst ...any) error {
	return s.DB().AutoMigrate(dst...)
}

// Transaction begins a gorm transaction
func (s *Store) Transaction() types.Txn {
	db := s.DB().Begin()
	if db.Error != nil {
		s.logger.Error(
			"failed to begin transaction",
			"component", "database",
			"error", db.Error,
		)
		return newFailedTxn(db.Error)
	}
	return newTxn(db)
}

// resolveDB returns the *gorm.DB for the given transaction, or s.DB() if txn is nil
func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.DB(), nil
	}
	gTxn, ok := txn.(*Txn)
	if !ok || gTxn == nil {
		return nil, types.ErrTxnWrongType
	}
	if gTxn.beginErr != nil {
		return nil, gTxn.beginErr
	}
	if gTxn.finished {
		return nil, errors.New("transaction already finished")
	}
	return gTxn.db, nil
}
