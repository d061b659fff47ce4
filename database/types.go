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
	"time"
)

// MemoryDBName selects an in-memory SQLite store.
const MemoryDBName = ":memory:"

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	StoreID       string        `json:"store_id,omitempty"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql pool statistics.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to open a store and tune its pool.
type ConnectionConfig struct {
	Type            string        `json:"type" mapstructure:"type"` // sqlite, mysql, postgres
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	Username        string        `json:"username" mapstructure:"username"`
	Password        string        `json:"password" mapstructure:"password"`
	DBName          string        `json:"dbname" mapstructure:"dbname"` // sqlite: file path or ":memory:"
	SSLMode         string        `json:"sslmode" mapstructure:"sslmode"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	BusyTimeout     time.Duration `json:"busy_timeout" mapstructure:"busy_timeout"` // sqlite only
	EnableQueryLog  bool          `json:"enable_query_log" mapstructure:"enable_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time" mapstructure:"slow_query_time"`
}

// InMemory reports whether the config selects an in-memory SQLite store.
func (c *ConnectionConfig) InMemory() bool {
	return isSQLite(c.Type) && (c.DBName == MemoryDBName || c.DBName == "")
}

// ModelConfig points at the entity model file.
type ModelConfig struct {
	File string `json:"file" mapstructure:"file"`
}

// Config aggregates connection and model settings.
type Config struct {
	ConnectionConfig ConnectionConfig `json:"connection_config" mapstructure:"database"`
	ModelConfig      ModelConfig      `json:"model_config" mapstructure:"model"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:            "sqlite",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		BusyTimeout:     time.Second * 5,
		EnableQueryLog:  false,
		SlowQueryTime:   time.Second * 2,
	}
}

// MemoryStore returns the config of a private in-memory store.
func MemoryStore() *ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.DBName = MemoryDBName
	return cfg
}

// FileStore returns the config of a SQLite store kept in path.
func FileStore(path string) *ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.DBName = path
	return cfg
}

func isSQLite(typ string) bool {
	return typ == "sqlite" || typ == "sqlite3"
}
