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
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/datakit/types"
)

var (
	globalMu          sync.RWMutex
	globalCoordinator *Coordinator
	globalConfig      *Config
)

// GetCoordinator returns the process-wide coordinator, nil before InitDB.
func GetCoordinator() *Coordinator {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCoordinator
}

// GetDB returns the global Bun database instance.
func GetDB() *bun.DB {
	if c := GetCoordinator(); c != nil {
		return c.DB()
	}
	return nil
}

// GetConfig returns the config InitDB was called with.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// InitDB opens the store described by cfg, loading the entity model from
// cfg.ModelConfig.File when set, and installs it as the process-wide
// coordinator. A previously installed coordinator is closed.
func InitDB(ctx context.Context, cfg *Config) (*Coordinator, error) {
	if cfg == nil {
		return nil, types.InvalidArgument("database configuration cannot be empty")
	}
	var model *Model
	if cfg.ModelConfig.File != "" {
		m, err := LoadModel(cfg.ModelConfig.File)
		if err != nil {
			return nil, err
		}
		model = m
	}
	return InitDBWithModel(ctx, cfg, model)
}

// InitDBWithModel is InitDB with a model built in code.
func InitDBWithModel(ctx context.Context, cfg *Config, model *Model) (*Coordinator, error) {
	if cfg == nil {
		return nil, types.InvalidArgument("database configuration cannot be empty")
	}
	c, err := Open(ctx, &cfg.ConnectionConfig, model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	globalMu.Lock()
	previous := globalCoordinator
	globalCoordinator, globalConfig = c, cfg
	globalMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return c, nil
}

// CloseDB closes and uninstalls the global coordinator.
func CloseDB() error {
	globalMu.Lock()
	c := globalCoordinator
	globalCoordinator, globalConfig = nil, nil
	globalMu.Unlock()

	if c != nil {
		return c.Close()
	}
	return nil
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if c := GetCoordinator(); c != nil {
		return c.HealthCheck(ctx)
	}
	return &HealthStatus{
		Healthy:       false,
		Connected:     false,
		LastError:     "Database not initialized",
		LastCheckTime: time.Now(),
	}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if c := GetCoordinator(); c != nil {
		return c.Stats()
	}
	return &DBStats{}
}
