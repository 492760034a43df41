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

package node

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/event"
	"github.com/blinklabs-io/degree/internal/config"
	"github.com/blinklabs-io/degree/registry"
)

// Local is a registry program opened directly on the configured database,
// for one-shot commands that do not run the server
type Local struct {
	Program  *registry.Program
	db       *database.Database
	eventBus *event.EventBus
}

// Load opens the configured database and registry program. A commit
// timestamp mismatch is reported to the caller along with the usable Local,
// so the index can be rebuilt with Reindex
func Load(cfg *config.Config, logger *slog.Logger) (*Local, error) {
	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, err
	}
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         logger,
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
	})
	if db == nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	var tsErr database.CommitTimestampError
	if err != nil && !errors.As(err, &tsErr) {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	eventBus := event.NewEventBus(nil, logger)
	program, newErr := registry.New(
		registry.WithDatabase(db),
		registry.WithEventBus(eventBus),
		registry.WithLogger(logger),
		registry.WithProgramID(programID),
	)
	if newErr != nil {
		eventBus.Stop()
		db.Close()
		return nil, newErr
	}
	return &Local{
		Program:  program,
		db:       db,
		eventBus: eventBus,
	}, err
}

func (l *Local) Close() error {
	l.eventBus.Stop()
	return l.db.Close()
}
