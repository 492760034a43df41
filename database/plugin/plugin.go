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

package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Plugin interface {
	Start() error
	Stop() error
}

// ErrorPlugin is a plugin that always returns an error on Start()
type ErrorPlugin struct {
	Err error
}

func (e *ErrorPlugin) Start() error {
	return e.Err
}

func (e *ErrorPlugin) Stop() error {
	return nil
}

// NewErrorPlugin creates a new error plugin that returns the given error on Start()
func NewErrorPlugin(err error) Plugin {
	return &ErrorPlugin{Err: err}
}

// StartPlugin gets a plugin from the registry and starts it
func StartPlugin(pluginType PluginType, pluginName string) (Plugin, error) {
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start %s plugin '%s': %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// Runtime values shared with plugin constructors. These cannot be expressed
// as command-line options, so the database layer sets them before it asks the
// registry for a plugin instance.
var (
	runtimeOptions struct {
		logger       *slog.Logger
		promRegistry prometheus.Registerer
	}
	runtimeOptionsMutex sync.RWMutex
)

// SetRuntimeOptions sets the logger and prometheus registry handed to plugins
// created after this call
func SetRuntimeOptions(logger *slog.Logger, promRegistry prometheus.Registerer) {
	runtimeOptionsMutex.Lock()
	defer runtimeOptionsMutex.Unlock()
	runtimeOptions.logger = logger
	runtimeOptions.promRegistry = promRegistry
}

// RuntimeLogger returns the logger plugins should use. It may be nil
func RuntimeLogger() *slog.Logger {
	runtimeOptionsMutex.RLock()
	defer runtimeOptionsMutex.RUnlock()
	return runtimeOptions.logger
}

// RuntimePromRegistry returns the prometheus registry plugins should use. It may be nil
func RuntimePromRegistry() prometheus.Registerer {
	runtimeOptionsMutex.RLock()
	defer runtimeOptionsMutex.RUnlock()
	return runtimeOptions.promRegistry
}

// SetPluginOption sets the value of a named option for a plugin entry. This
// is used by callers that need to programmatically override plugin defaults
// (for example to set data-dir before starting a plugin). It returns an error
// if the plugin is not found or if the value type is incompatible. Unknown
// option names are ignored, since not every implementation has every option.
// NOTE: This writes directly to plugin option destinations without acquiring
// the plugin's cmdlineOptionsMutex. It must be called before the plugin is
// instantiated.
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for i := range pluginEntries {
		p := &pluginEntries[i]
		if p.Type != pluginType || p.Name != pluginName {
			continue
		}
		for _, opt := range p.Options {
			if opt.Name != optionName {
				continue
			}
			return opt.assign(value)
		}
		return nil
	}
	return fmt.Errorf(
		"plugin %s of type %s not found",
		pluginName,
		PluginTypeName(pluginType),
	)
}
