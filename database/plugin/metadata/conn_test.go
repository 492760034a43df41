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

package metadata_test

import (
	"testing"

	"github.com/blinklabs-io/degree/database/plugin"
	"github.com/blinklabs-io/degree/database/plugin/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnFlags(t *testing.T) {
	defaults := metadata.ConnConfig{
		Host:         "localhost",
		Port:         5432,
		User:         "postgres",
		Database:     "degree",
		MaxOpenConns: 10,
	}
	flags := metadata.NewConnFlags(defaults)
	assert.Equal(t, defaults, flags.Config())

	opts := flags.PluginOptions("Postgres", "POSTGRES")
	byName := map[string]plugin.PluginOption{}
	for _, opt := range opts {
		byName[opt.Name] = opt
	}
	require.Len(t, byName, len(opts))
	assert.Equal(t, "POSTGRES_HOST", byName["host"].CustomEnvVar)
	assert.Equal(t, "POSTGRES_SSL_MODE", byName["ssl-mode"].CustomEnvVar)
	assert.Equal(t, "POSTGRES_MAX_CONNECTIONS", byName["max-connections"].CustomEnvVar)
	assert.Equal(t, "Postgres host", byName["host"].Description)
	assert.Equal(t, uint64(5432), byName["port"].DefaultValue)

	// Option destinations write through to the flags
	host, ok := byName["host"].Dest.(*string)
	require.True(t, ok)
	*host = "db.local"
	port, ok := byName["port"].Dest.(*uint64)
	require.True(t, ok)
	*port = 6543
	cfg := flags.Config()
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, uint(6543), cfg.Port)
	assert.Equal(t, "postgres", cfg.User)

	flags.Reset()
	assert.Equal(t, defaults, flags.Config())
}
