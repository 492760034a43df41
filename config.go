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

package degree

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/blinklabs-io/degree/database/plugin"
	"github.com/blinklabs-io/degree/registry"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	apiListenAddress string
	programID        registry.Address
	shutdownTimeout  time.Duration
	autoReindex      bool
	tracing          bool
	tracingStdout    bool
}

// ConfigOptionFunc modifies a Config
type ConfigOptionFunc func(*Config)

// NewConfig returns an in-memory config with logging discarded, updated by opts
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		programID:   registry.DefaultProgramID,
		autoReindex: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// validate reports every problem with the config at once
func (c *Config) validate() error {
	var errs []error
	if c.programID == (registry.Address{}) {
		errs = append(errs, errors.New("program id must not be zero"))
	}
	if c.shutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown timeout must not be negative"))
	}
	if c.apiListenAddress != "" {
		if _, _, err := net.SplitHostPort(c.apiListenAddress); err != nil {
			errs = append(errs, fmt.Errorf("api listen address: %w", err))
		}
	}
	errs = append(
		errs,
		checkPluginName(plugin.PluginTypeBlob, c.blobPlugin),
		checkPluginName(plugin.PluginTypeMetadata, c.metadataPlugin),
	)
	return errors.Join(errs...)
}

// checkPluginName accepts an empty name, which selects the default plugin
func checkPluginName(pluginType plugin.PluginType, name string) error {
	if name == "" {
		return nil
	}
	for _, p := range plugin.GetPlugins(pluginType) {
		if p.Name == name {
			return nil
		}
	}
	return fmt.Errorf(
		"unknown %s plugin %q",
		plugin.PluginTypeName(pluginType),
		name,
	)
}

// WithDatabasePath sets the data directory. Everything is kept in memory
// when it is empty
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

func WithBlobPlugin(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = name
	}
}

func WithMetadataPlugin(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = name
	}
}

// WithLogger sets the logger. Logs are discarded by default
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithApiListenAddress sets the host:port the REST API listens on. The API
// is disabled when it is empty
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithProgramID sets the id that owns the registry accounts. Defaults to
// registry.DefaultProgramID
func WithProgramID(programID registry.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.programID = programID
	}
}

// WithPrometheusRegistry sets where metrics are registered. No metrics are
// collected without one
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight work.
// Defaults to 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithAutoReindex controls what Start does when the metadata index and the
// account store disagree. When enabled (the default) the index is rebuilt,
// otherwise Start fails with database.CommitTimestampError
func WithAutoReindex(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.autoReindex = enabled
	}
}

// WithTracing enables OTLP span export over HTTP, configured with the
// standard OTEL_EXPORTER_OTLP_* env vars
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout writes spans to stdout instead. Tracing must also be
// enabled
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
