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
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tomoncle/datakit/types"
)

// Coordinator owns one opened store: the connection, the entity model and
// the store identifier. Any number of Contexts can be created from it and
// used concurrently.
type Coordinator struct {
	manager    AbstractDatabaseManager
	config     *ConnectionConfig
	model      *Model
	storeID    string
	logger     Logger
	migrations *MigrationManager
	main       *serialQueue
	saves      *observers[SaveEvent]
	syncMu     sync.Mutex
}

func newCoordinator(manager AbstractDatabaseManager, cfg *ConnectionConfig, model *Model, storeID string, logger Logger) *Coordinator {
	return &Coordinator{
		manager:    manager,
		config:     cfg,
		model:      model,
		storeID:    storeID,
		logger:     logger,
		migrations: NewMigrationManager(manager.GetDB(), logger),
		main:       newSerialQueue("main", logger),
		saves:      newObservers[SaveEvent](),
	}
}

// NewContext creates a working context. Contexts with MainQueue affinity
// share the coordinator's main queue for Perform, any other affinity gets a
// queue of its own.
func (c *Coordinator) NewContext(affinity types.QueueAffinity) *Context {
	id := uuid.NewString()
	queue := c.main
	if affinity != types.MainQueue {
		affinity = types.PrivateQueue
		queue = newSerialQueue(id, c.logger)
	}
	return &Context{s: &contextState{
		id:       id,
		coord:    c,
		affinity: affinity,
		queue:    queue,
		records:  map[Ref]*Record{},
		updated:  map[Ref]*Record{},
		deleted:  map[Ref]*Record{},
		state:    types.StateClean,
		changes:  newObservers[ChangeEvent](),
	}}
}

func (c *Coordinator) Model() *Model { return c.model }

func (c *Coordinator) StoreID() string { return c.storeID }

func (c *Coordinator) DB() *bun.DB { return c.manager.GetDB() }

func (c *Coordinator) Config() ConnectionConfig { return *c.config }

// EnsureEntity registers e and creates its table. Entities already known
// by name are left as they are.
func (c *Coordinator) EnsureEntity(ctx context.Context, e *EntityDescription) error {
	if e == nil {
		return types.InvalidArgument("entity description is nil")
	}
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if _, ok := c.model.Entity(e.Name); ok {
		return nil
	}
	candidate, err := NewModel(e)
	if err != nil {
		return err
	}
	registered, _ := candidate.Entity(e.Name)
	if err := c.migrations.SyncEntity(ctx, registered); err != nil {
		return err
	}
	return c.model.Register(registered)
}

// EncodeRef returns the durable id of ref.
func (c *Coordinator) EncodeRef(ref Ref) string { return ref.String() }

// DecodeRef parses a durable id issued by this store.
func (c *Coordinator) DecodeRef(id string) (Ref, error) {
	return decodeRef(c.storeID, c.model, id)
}

// Subscribe registers fn to be called after every successful save of any
// context of this coordinator. The returned func cancels the subscription.
func (c *Coordinator) Subscribe(fn func(SaveEvent)) func() {
	return c.saves.subscribe(fn)
}

func (c *Coordinator) HealthCheck(ctx context.Context) *HealthStatus {
	status := c.manager.HealthCheck(ctx)
	status.StoreID = c.storeID
	return status
}

func (c *Coordinator) Stats() *DBStats {
	return c.manager.GetStats()
}

// Close releases the connection. Contexts created from c fail afterwards.
func (c *Coordinator) Close() error {
	return c.manager.Disconnect()
}
