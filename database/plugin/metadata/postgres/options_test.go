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
	"testing"

	"github.com/blinklabs-io/degree/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOptionsDefaults(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultConnConfig, m.conn)
	assert.NotNil(t, m.logger)
	// Close before Start is a no-op
	require.NoError(t, m.Close())
}

func TestConnectionSettings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m, err := NewWithOptions(
		WithConnection(metadata.ConnConfig{
			Host:     "db.local",
			Port:     6543,
			User:     "registrar",
			Password: "secret",
			SSLMode:  "require",
			TimeZone: "Europe/Paris",
		}),
		WithLogger(logger),
		WithPromRegistry(reg),
	)
	require.NoError(t, err)
	assert.Same(t, logger, m.logger)
	assert.Equal(t, reg, m.promRegistry)
	// Unset fields keep their defaults
	assert.Equal(t, 100, m.conn.MaxOpenConns)
	assert.Equal(
		t,
		"host=db.local user=registrar password=secret dbname=degree port=6543 sslmode=require TimeZone=Europe/Paris",
		m.dsn(),
	)
}

func TestDSNOverridesSettings(t *testing.T) {
	m, err := NewWithOptions(
		WithConnection(metadata.ConnConfig{
			Host: "ignored",
			DSN:  "  postgres://u:p@h:5432/degree?sslmode=disable ",
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h:5432/degree?sslmode=disable", m.dsn())
}
