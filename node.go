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

// Package degree wires the diploma registry into a runnable node: storage,
// event bus, registry program and the REST API.
package degree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/degree/api"
	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/event"
	"github.com/blinklabs-io/degree/registry"
	"go.opentelemetry.io/otel/trace"
)

const defaultShutdownTimeout = 30 * time.Second

var ErrNodeStarted = errors.New("node already started")

type Node struct {
	eventBus       *event.EventBus
	db             *database.Database
	program        *registry.Program
	api            *api.Server
	tracerProvider trace.TracerProvider
	shutdownFuncs  []func(context.Context) error
	config         Config
	done           chan struct{}
	mu             sync.Mutex
	started        bool
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	if err := n.config.validate(); err != nil {
		n.eventBus.Stop()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Start opens the database, recovers it if needed, and starts the API. It
// returns once everything is running
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrNodeStarted
	}
	n.started = true
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	dbNeedsRecovery := false
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if !n.config.autoReindex {
			return fmt.Errorf("database needs reindex: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, needs recovery",
			"error", err,
		)
		dbNeedsRecovery = true
	}
	// Load registry program
	programOpts := []registry.ProgramOptionFunc{
		registry.WithDatabase(n.db),
		registry.WithEventBus(n.eventBus),
		registry.WithLogger(n.config.logger),
		registry.WithPromRegistry(n.config.promRegistry),
		registry.WithProgramID(n.config.programID),
	}
	if n.tracerProvider != nil {
		programOpts = append(
			programOpts,
			registry.WithTracerProvider(n.tracerProvider),
		)
	}
	program, err := registry.New(programOpts...)
	if err != nil {
		return fmt.Errorf("failed to load registry program: %w", err)
	}
	n.program = program
	// The account store is authoritative, so the index is rebuilt from it
	if dbNeedsRecovery {
		count, err := n.program.Reindex(ctx)
		if err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
		n.config.logger.Info(
			"database recovered",
			"component", "node",
			"diplomas", count,
		)
	}
	// Start API
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.Config{
				ListenAddress:   n.config.apiListenAddress,
				ShutdownTimeout: n.shutdownTimeout(),
			},
			n.program,
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the node and blocks until ctx is done or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Program returns the registry program once the node has started
func (n *Node) Program() *registry.Program {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.program
}

// EventBus returns the bus registry events are published on
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// ApiAddr returns the bound API address, or nil when the API is not running
func (n *Node) ApiAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.api == nil || n.api.Addr() == nil {
		return ""
	}
	return n.api.Addr().String()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdownTimeout() time.Duration {
	if n.config.shutdownTimeout > 0 {
		return n.config.shutdownTimeout
	}
	return defaultShutdownTimeout
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		n.shutdownTimeout(),
	)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Stop event delivery
	n.eventBus.Stop()

	// Phase 3: Close database
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
