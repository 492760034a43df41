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
	"io"
	"log/slog"
)

// Logger is the logging surface plugin helpers write through. *slog.Logger
// satisfies it
type Logger interface {
	Info(string, ...any)
	Warn(string, ...any)
	Debug(string, ...any)
	Error(string, ...any)
}

// PluginLogger returns the runtime logger tagged with the plugin it is handed
// to. Without a runtime logger the result discards everything
func PluginLogger(pluginType PluginType, pluginName string) *slog.Logger {
	logger := RuntimeLogger()
	if logger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return logger.With(
		"plugin", PluginTypeName(pluginType)+"."+pluginName,
	)
}
