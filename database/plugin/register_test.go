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

package plugin_test

import (
	"testing"

	"github.com/blinklabs-io/degree/database/plugin"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock plugin implementation for testing
type mockPlugin struct{}

func (m *mockPlugin) Start() error { return nil }
func (m *mockPlugin) Stop() error  { return nil }

type mockOptions struct {
	dir     string
	enabled bool
	workers int
	size    uint64
}

func registerMockWithOptions(
	t *testing.T,
	pluginType plugin.PluginType,
	opts *mockOptions,
) string {
	t.Helper()
	name := "mock-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               pluginType,
		Name:               name,
		Description:        "mock plugin",
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: "",
				Dest:         &(opts.dir),
			},
			{
				Name:         "gc",
				Type:         plugin.PluginOptionTypeBool,
				DefaultValue: false,
				Dest:         &(opts.enabled),
			},
			{
				Name:         "workers",
				Type:         plugin.PluginOptionTypeInt,
				DefaultValue: 1,
				Dest:         &(opts.workers),
			},
			{
				Name:         "cache-size",
				Type:         plugin.PluginOptionTypeUint,
				DefaultValue: uint64(10),
				Dest:         &(opts.size),
				CustomEnvVar: "MOCK_CACHE_SIZE_" + t.Name(),
			},
		},
	})
	return name
}

func TestRegisterAndGetPlugin(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})

	p := plugin.GetPlugin(plugin.PluginTypeBlob, pluginName)
	require.NotNil(t, p)
	assert.IsType(t, &mockPlugin{}, p)

	// Same name under a different type is a different plugin
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeMetadata, pluginName))
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeBlob, "non-existent-"+t.Name()))

	found := false
	for _, pl := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if pl.Name == pluginName {
			found = true
		}
		assert.Equal(t, plugin.PluginTypeBlob, pl.Type)
	}
	assert.True(t, found, "plugin not in GetPlugins list")
}

func TestStartPlugin(t *testing.T) {
	okName := "start-ok-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               okName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})
	errName := "start-err-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeMetadata,
		Name: errName,
		NewFromOptionsFunc: func() plugin.Plugin {
			return plugin.NewErrorPlugin(assert.AnError)
		},
	})

	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, okName)
	require.NoError(t, err)
	require.NotNil(t, p)

	_, err = plugin.StartPlugin(plugin.PluginTypeMetadata, errName)
	require.ErrorIs(t, err, assert.AnError)

	_, err = plugin.StartPlugin(plugin.PluginTypeMetadata, "missing-"+t.Name())
	require.ErrorContains(t, err, "not found")
}

func TestPluginTypeName(t *testing.T) {
	assert.Equal(t, "blob", plugin.PluginTypeName(plugin.PluginTypeBlob))
	assert.Equal(t, "metadata", plugin.PluginTypeName(plugin.PluginTypeMetadata))
	assert.Empty(t, plugin.PluginTypeName(plugin.PluginType(99)))
}

func TestPopulateCmdlineOptions(t *testing.T) {
	opts := &mockOptions{}
	name := registerMockWithOptions(t, plugin.PluginTypeBlob, opts)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	require.NoError(t, fs.Parse([]string{
		"--blob-" + name + "-data-dir", "/tmp/x",
		"--blob-" + name + "-gc",
		"--blob-" + name + "-workers", "4",
		"--blob-" + name + "-cache-size", "99",
	}))
	assert.Equal(t, "/tmp/x", opts.dir)
	assert.True(t, opts.enabled)
	assert.Equal(t, 4, opts.workers)
	assert.Equal(t, uint64(99), opts.size)
}

func TestProcessEnvVars(t *testing.T) {
	opts := &mockOptions{}
	name := registerMockWithOptions(t, plugin.PluginTypeMetadata, opts)

	t.Setenv("DEGREE_METADATA_MOCK_TESTPROCESSENVVARS_DATA_DIR", "/var/lib/degree")
	t.Setenv("DEGREE_METADATA_MOCK_TESTPROCESSENVVARS_GC", "true")
	t.Setenv("MOCK_CACHE_SIZE_"+t.Name(), "1234")
	require.Equal(t, "mock-TestProcessEnvVars", name)

	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, "/var/lib/degree", opts.dir)
	assert.True(t, opts.enabled)
	assert.Equal(t, uint64(1234), opts.size)

	t.Setenv("DEGREE_METADATA_MOCK_TESTPROCESSENVVARS_WORKERS", "many")
	require.Error(t, plugin.ProcessEnvVars())
}

func TestProcessConfig(t *testing.T) {
	opts := &mockOptions{}
	name := registerMockWithOptions(t, plugin.PluginTypeBlob, opts)

	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {
			name: {
				"data-dir":   ".degree",
				"gc":         true,
				"workers":    3,
				"cache-size": 2048,
				"unknown":    "ignored",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ".degree", opts.dir)
	assert.True(t, opts.enabled)
	assert.Equal(t, 3, opts.workers)
	assert.Equal(t, uint64(2048), opts.size)

	err = plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {name: {"workers": true}},
	})
	require.Error(t, err)
}
