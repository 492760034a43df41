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

package metadata

import (
	"strings"
	"sync"

	"github.com/blinklabs-io/degree/database/plugin"
)

// ConnConfig describes how a server-backed metadata store reaches its
// database. A non-empty DSN wins over the individual fields
type ConnConfig struct {
	Host         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	TimeZone     string
	DSN          string
	Port         uint
	MaxOpenConns int
}

// ConnFlags binds a ConnConfig to plugin options, so the same settings can
// come from flags, env vars or the config file
type ConnFlags struct {
	mu           sync.RWMutex
	host         string
	user         string
	password     string
	database     string
	sslMode      string
	timeZone     string
	dsn          string
	port         uint64
	maxOpenConns int
	defaults     ConnConfig
}

func NewConnFlags(defaults ConnConfig) *ConnFlags {
	f := &ConnFlags{defaults: defaults}
	f.Reset()
	return f
}

// Reset restores the defaults the flags were created with
func (f *ConnFlags) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.host = f.defaults.Host
	f.user = f.defaults.User
	f.password = f.defaults.Password
	f.database = f.defaults.Database
	f.sslMode = f.defaults.SSLMode
	f.timeZone = f.defaults.TimeZone
	f.dsn = f.defaults.DSN
	f.port = uint64(f.defaults.Port)
	f.maxOpenConns = f.defaults.MaxOpenConns
}

// Config returns the current values
func (f *ConnFlags) Config() ConnConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ConnConfig{
		Host:         f.host,
		User:         f.user,
		Password:     f.password,
		Database:     f.database,
		SSLMode:      f.sslMode,
		TimeZone:     f.timeZone,
		DSN:          f.dsn,
		Port:         uint(f.port),
		MaxOpenConns: f.maxOpenConns,
	}
}

// PluginOptions returns the option entries for a plugin. Each option can also
// be set with <PREFIX>_<OPTION>, e.g. POSTGRES_HOST or POSTGRES_SSL_MODE
func (f *ConnFlags) PluginOptions(label string, envPrefix string) []plugin.PluginOption {
	env := func(name string) string {
		return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	}
	opt := func(
		name string,
		optType plugin.PluginOptionType,
		desc string,
		def any,
		dest any,
	) plugin.PluginOption {
		return plugin.PluginOption{
			Name:         name,
			Type:         optType,
			Description:  label + " " + desc,
			DefaultValue: def,
			CustomEnvVar: env(name),
			Dest:         dest,
		}
	}
	d := f.defaults
	return []plugin.PluginOption{
		opt("host", plugin.PluginOptionTypeString, "host", d.Host, &f.host),
		opt("port", plugin.PluginOptionTypeUint, "port", uint64(d.Port), &f.port),
		opt("user", plugin.PluginOptionTypeString, "user", d.User, &f.user),
		opt("password", plugin.PluginOptionTypeString, "password", d.Password, &f.password),
		opt("database", plugin.PluginOptionTypeString, "database name", d.Database, &f.database),
		opt("ssl-mode", plugin.PluginOptionTypeString, "TLS mode", d.SSLMode, &f.sslMode),
		opt("timezone", plugin.PluginOptionTypeString, "session time zone", d.TimeZone, &f.timeZone),
		opt("dsn", plugin.PluginOptionTypeString, "DSN, overrides the other connection options", d.DSN, &f.dsn),
		opt("max-connections", plugin.PluginOptionTypeInt, "connection pool size", d.MaxOpenConns, &f.maxOpenConns),
	}
}
