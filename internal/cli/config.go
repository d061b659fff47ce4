/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tomoncle/datakit/database"
)

// DefaultEnvPrefix prefixes environment overrides, e.g. DATAKIT_DATABASE_DBNAME.
const DefaultEnvPrefix = "DATAKIT"

var configKeys = []string{
	"database.type",
	"database.host",
	"database.port",
	"database.username",
	"database.password",
	"database.dbname",
	"database.sslmode",
	"database.enable_query_log",
	"database.slow_query_time",
	"model.file",
}

// LoadConfig merges, from lowest to highest precedence, the built-in
// defaults, the config file, DATAKIT_* variables and the global flags.
func LoadConfig(opts *RootOptions) (*database.Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &database.Config{ConnectionConfig: *database.DefaultConnectionConfig()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.DBType != "" {
		cfg.ConnectionConfig.Type = opts.DBType
	}
	if opts.DB != "" {
		cfg.ConnectionConfig.DBName = opts.DB
	}
	if opts.Model != "" {
		cfg.ModelConfig.File = opts.Model
	}
	return cfg, nil
}

// openStore loads the configuration and opens the coordinator. requireModel
// rejects configurations without an entity model.
func openStore(ctx context.Context, opts *RootOptions, requireModel bool) (*database.Coordinator, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if requireModel && cfg.ModelConfig.File == "" {
		return nil, NewExitError(ExitCommandError, "no entity model: pass --model or set model.file")
	}

	var model *database.Model
	if cfg.ModelConfig.File != "" {
		if model, err = database.LoadModel(cfg.ModelConfig.File); err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot load entity model", err)
		}
	}
	coordinator, err := database.Open(ctx, &cfg.ConnectionConfig, model)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open store", err)
	}
	return coordinator, nil
}
