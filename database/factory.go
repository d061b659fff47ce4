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

package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tomoncle/datakit/types"
	"github.com/tomoncle/datakit/utils"
)

var supportedTypes = []string{"sqlite", "sqlite3", "mysql", "postgres"}

// BaseDatabaseFactory turns a connection config into a ready Coordinator.
type BaseDatabaseFactory struct {
	logger Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// CreateFromConfig constructs a database manager from the given connection
// configuration, applying environment overrides and setting the factory logger.
// The config is copied, the caller's value is left untouched.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, *ConnectionConfig, error) {
	if cfg == nil {
		cfg = MemoryStore()
	}
	c := *cfg
	f.overrideFromEnv(&c)

	supported := false
	for _, t := range supportedTypes {
		if c.Type == t {
			supported = true
			break
		}
	}
	if !supported {
		return nil, nil, types.InvalidArgument("unsupported database type %q, supported types: %v", c.Type, supportedTypes)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}

	manager := NewDatabaseManager(&c)
	manager.SetLogger(f.logger)
	return manager, &c, nil
}

// overrideFromEnv overrides configuration values from environment variables.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	cfg.Type = utils.EnvDefaultString("DB_TYPE", cfg.Type)
	cfg.Host = utils.EnvDefaultString("DB_HOST", cfg.Host)
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	cfg.Username = utils.EnvDefaultString("DB_USERNAME", cfg.Username)
	cfg.Password = utils.EnvDefaultString("DB_PASSWORD", cfg.Password)
	cfg.DBName = utils.EnvDefaultString("DB_NAME", cfg.DBName)
	cfg.SSLMode = utils.EnvDefaultString("DB_SSLMODE", cfg.SSLMode)

	// Connection pool config
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			cfg.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}

	cfg.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", cfg.EnableQueryLog)
}

// Open connects, prepares the schema of model and returns the coordinator.
// A nil model starts empty; entities can be added later with EnsureEntity.
func (f *BaseDatabaseFactory) Open(ctx context.Context, cfg *ConnectionConfig, model *Model) (*Coordinator, error) {
	manager, resolved, err := f.CreateFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := manager.Connect(ctx); err != nil {
		return nil, storeError("connect", err)
	}
	if model == nil {
		model, _ = NewModel()
	}

	migrations := NewMigrationManager(manager.GetDB(), f.logger)
	storeID, err := migrations.Prepare(ctx, model)
	if err != nil {
		_ = manager.Disconnect()
		return nil, err
	}

	c := newCoordinator(manager, resolved, model, storeID, f.logger)
	f.logger.Info("Store opened", "store_id", storeID, "entities", len(model.Entities()))
	return c, nil
}

// SetLogger sets the logger used by coordinators opened afterwards.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// Open is a shorthand for NewDatabaseFactory().Open.
func Open(ctx context.Context, cfg *ConnectionConfig, model *Model) (*Coordinator, error) {
	return NewDatabaseFactory().Open(ctx, cfg, model)
}
