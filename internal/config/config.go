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
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blinklabs-io/degree/database/plugin"
	"github.com/blinklabs-io/degree/registry"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "degree.config"

const (
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	DefaultProgram         = "degree"
	DefaultShutdownTimeout = "30s"

	envPrefix = "degree"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config   yaml.Node                 `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath   string `yaml:"databasePath"                                     split_words:"true"`
	BlobPlugin     string `yaml:"blobPlugin"       envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin string `yaml:"metadataPlugin"   envconfig:"DATABASE_METADATA_PLUGIN"`
	BindAddr       string `yaml:"bindAddr"                                         split_words:"true"`
	// Program is either a bech32 program address or a name the program id
	// is derived from
	Program          string `yaml:"program"`
	AuthorityKeyFile string `yaml:"authorityKeyFile"                                 split_words:"true"`
	ShutdownTimeout  string `yaml:"shutdownTimeout"                                  split_words:"true"`
	ApiPort          uint   `yaml:"apiPort"                                          split_words:"true"`
	MetricsPort      uint   `yaml:"metricsPort"                                      split_words:"true"`
	Tracing          bool   `yaml:"tracing"`
	TracingStdout    bool   `yaml:"tracingStdout"                                    split_words:"true"`
	// NoAutoReindex makes the node refuse to start when the metadata index
	// disagrees with the account store, instead of rebuilding it
	NoAutoReindex bool `yaml:"noAutoReindex" split_words:"true"`
}

// ProgramID resolves the configured program to its address
func (c *Config) ProgramID() (registry.Address, error) {
	if strings.HasPrefix(c.Program, registry.AddressHrp+"1") {
		return registry.ParseAddress(c.Program)
	}
	name := c.Program
	if name == "" {
		name = DefaultProgram
	}
	return registry.ProgramIDFromName(name), nil
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return d, nil
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".degree",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		Program:         DefaultProgram,
		ShutdownTimeout: DefaultShutdownTimeout,
		ApiPort:         8080,
		MetricsPort:     12799,
	}
}

var globalConfig = defaultConfig()

// LoadConfig builds the configuration from defaults, the config file and the
// environment, in that order. With no explicit file, ~/.degree/degree.yaml
// and /etc/degree/degree.yaml are tried
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if _, err := cfg.ShutdownTimeoutDuration(); err != nil {
		return nil, err
	}
	if _, err := cfg.ProgramID(); err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

func findConfigFile() string {
	var candidates []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(
			candidates,
			filepath.Join(homeDir, ".degree", "degree.yaml"),
		)
	}
	candidates = append(candidates, "/etc/degree/degree.yaml")
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadConfigFile(configFile string, cfg *Config) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if !tempCfg.Config.IsZero() {
		// Decoding onto the defaults only replaces keys present in the file
		if err := tempCfg.Config.Decode(cfg); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, sections := splitPluginSection("blob", tempCfg.Database.Blob)
			if name != "" {
				cfg.BlobPlugin = name
			}
			mergePluginConfig(pluginConfig, "blob", sections)
		}
		if tempCfg.Database.Metadata != nil {
			name, sections := splitPluginSection(
				"metadata",
				tempCfg.Database.Metadata,
			)
			if name != "" {
				cfg.MetadataPlugin = name
			}
			mergePluginConfig(pluginConfig, "metadata", sections)
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// splitPluginSection separates the "plugin" selector of a database section
// from the per-plugin option maps
func splitPluginSection(
	kind string,
	section map[string]any,
) (string, map[string]map[string]any) {
	var name string
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			if pluginName, ok := v.(string); ok {
				name = pluginName
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			tmp := make(map[string]any, len(val))
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					tmp[keyStr] = vv
				}
			}
			ret[k] = tmp
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				kind,
				k,
				v,
			)
		}
	}
	return name, ret
}

func mergePluginConfig(
	dest map[string]map[string]map[string]any,
	kind string,
	src map[string]map[string]any,
) {
	if dest[kind] == nil {
		dest[kind] = src
		return
	}
	maps.Copy(dest[kind], src)
}
