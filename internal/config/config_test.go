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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/degree/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv keeps the user's config file and DEGREE_* variables out of the test
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"DEGREE_DATABASE_PATH",
		"DEGREE_DATABASE_BLOB_PLUGIN",
		"DEGREE_DATABASE_METADATA_PLUGIN",
		"DEGREE_BIND_ADDR",
		"DEGREE_PROGRAM",
		"DEGREE_AUTHORITY_KEY_FILE",
		"DEGREE_SHUTDOWN_TIMEOUT",
		"DEGREE_API_PORT",
		"DEGREE_METRICS_PORT",
		"DEGREE_TRACING",
		"DEGREE_TRACING_STDOUT",
	} {
		if val, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, val) })
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "degree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Same(t, cfg, GetConfig())

	programID, err := cfg.ProgramID()
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultProgramID, programID)
	timeout, err := cfg.ShutdownTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoad_CompareFullStruct(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
databasePath: "/var/lib/degree"
blobPlugin: "badger"
metadataPlugin: "postgres"
bindAddr: "127.0.0.1"
program: "university"
authorityKeyFile: "/etc/degree/authority.skey"
shutdownTimeout: "5s"
apiPort: 9000
metricsPort: 9001
tracing: true
tracingStdout: true
`)
	expected := &Config{
		DatabasePath:     "/var/lib/degree",
		BlobPlugin:       "badger",
		MetadataPlugin:   "postgres",
		BindAddr:         "127.0.0.1",
		Program:          "university",
		AuthorityKeyFile: "/etc/degree/authority.skey",
		ShutdownTimeout:  "5s",
		ApiPort:          9000,
		MetricsPort:      9001,
		Tracing:          true,
		TracingStdout:    true,
	}
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, expected, cfg)

	programID, err := cfg.ProgramID()
	require.NoError(t, err)
	assert.Equal(t, registry.ProgramIDFromName("university"), programID)
}

func TestLoad_ConfigSectionOverlaysDefaults(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
config:
  apiPort: 9100
database:
  blob:
    plugin: badger
  metadata:
    plugin: mysql
    mysql:
      host: db.example.com
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9100), cfg.ApiPort)
	assert.Equal(t, ".degree", cfg.DatabasePath)
	assert.Equal(t, "badger", cfg.BlobPlugin)
	assert.Equal(t, "mysql", cfg.MetadataPlugin)
}

func TestLoad_ConfigSectionKeepsUnsetFields(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadConfig(writeConfig(t, "config:\n  apiPort: 9100\n"))
	require.NoError(t, err)
	expected := defaultConfig()
	expected.ApiPort = 9100
	assert.Equal(t, expected, cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "apiPort: 9000\nmetadataPlugin: postgres\n")
	t.Setenv("DEGREE_API_PORT", "9200")
	t.Setenv("DEGREE_DATABASE_METADATA_PLUGIN", "sqlite")
	t.Setenv("DEGREE_AUTHORITY_KEY_FILE", "/tmp/authority.skey")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9200), cfg.ApiPort)
	assert.Equal(t, "sqlite", cfg.MetadataPlugin)
	assert.Equal(t, "/tmp/authority.skey", cfg.AuthorityKeyFile)
}

func TestLoad_ProgramAddress(t *testing.T) {
	isolateEnv(t)
	addr := registry.ProgramIDFromName("other")
	t.Setenv("DEGREE_PROGRAM", addr.String())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	programID, err := cfg.ProgramID()
	require.NoError(t, err)
	assert.Equal(t, addr, programID)
}

func TestLoad_Invalid(t *testing.T) {
	testDefs := map[string]string{
		"bad yaml":            "apiPort: [",
		"bad timeout":         "shutdownTimeout: soon\n",
		"bad program address": "program: acct1notanaddress\n",
	}
	for name, content := range testDefs {
		t.Run(name, func(t *testing.T) {
			isolateEnv(t)
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
	isolateEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
