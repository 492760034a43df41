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

package registry

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type ProgramOptionFunc func(*Program)

// WithDatabase specifies the account store. It is required
func WithDatabase(db *database.Database) ProgramOptionFunc {
	return func(p *Program) {
		p.db = db
	}
}

// WithEventBus specifies the bus that receives registry events
func WithEventBus(eventBus *event.EventBus) ProgramOptionFunc {
	return func(p *Program) {
		p.eventBus = eventBus
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) ProgramOptionFunc {
	return func(p *Program) {
		p.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry for program metrics
func WithPromRegistry(registry prometheus.Registerer) ProgramOptionFunc {
	return func(p *Program) {
		p.promRegistry = registry
	}
}

// WithTracerProvider specifies the OpenTelemetry tracer provider
func WithTracerProvider(provider trace.TracerProvider) ProgramOptionFunc {
	return func(p *Program) {
		p.tracerProvider = provider
	}
}

// WithProgramID specifies the program id that all addresses derive from
func WithProgramID(programID Address) ProgramOptionFunc {
	return func(p *Program) {
		p.programID = programID
	}
}

// WithClock specifies the time source for created_at and audit timestamps
func WithClock(now func() time.Time) ProgramOptionFunc {
	return func(p *Program) {
		p.now = now
	}
}
