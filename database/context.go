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
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tomoncle/datakit/types"
)

// Context is a unit of work over a Coordinator. It caches the records it has
// seen, accumulates inserts, updates and deletes, and writes them in one
// transaction on Save. Every method is safe for concurrent use; operations
// on one Context are serialized.
type Context struct {
	s *contextState
	// held is set on the view handed to RunExclusive, whose caller already
	// owns the lock.
	held bool
}

type contextState struct {
	mu       sync.Mutex
	id       string
	coord    *Coordinator
	affinity types.QueueAffinity
	queue    *serialQueue

	records  map[Ref]*Record
	inserted []*Record
	updated  map[Ref]*Record
	deleted  map[Ref]*Record
	state    types.ContextState
	seq      uint64

	changes *observers[ChangeEvent]
	pending []ChangeEvent
	saved   []SaveEvent
}

func (c *Context) lock() func() {
	if c.held {
		return func() {}
	}
	c.s.mu.Lock()
	return c.s.unlock
}

// unlock releases the context and then delivers the events queued while it
// was held, so observers may call back into the context.
func (s *contextState) unlock() {
	events, saves := s.pending, s.saved
	s.pending, s.saved = nil, nil
	s.mu.Unlock()

	for _, e := range events {
		s.changes.publish(e)
	}
	for _, e := range saves {
		s.coord.saves.publish(e)
	}
}

func (s *contextState) emit(kind ChangeKind, refs ...Ref) {
	s.pending = append(s.pending, ChangeEvent{ContextID: s.id, Kind: kind, Refs: refs})
}

func (c *Context) ID() string { return c.s.id }

func (c *Context) Affinity() types.QueueAffinity { return c.s.affinity }

func (c *Context) Coordinator() *Coordinator { return c.s.coord }

// Entity returns the description of a registered entity.
func (c *Context) Entity(name string) (*EntityDescription, error) {
	return c.s.entity(name)
}

// DecodeRef parses a durable id issued by the coordinator's store.
func (c *Context) DecodeRef(id string) (Ref, error) {
	return c.s.coord.DecodeRef(id)
}

func (c *Context) State() types.ContextState {
	unlock := c.lock()
	defer unlock()
	return c.s.state
}

// HasChanges reports whether there is anything for Save to write.
func (c *Context) HasChanges() bool {
	unlock := c.lock()
	defer unlock()
	return c.s.hasChanges()
}

// Subscribe registers fn for the change events of this context. Events are
// delivered after the operation that produced them returned its lock.
func (c *Context) Subscribe(fn func(ChangeEvent)) func() {
	return c.s.changes.subscribe(fn)
}

// RunExclusive runs fn while holding the context, so a sequence of
// operations is not interleaved with operations from other goroutines.
// fn receives a view that must not be used after fn returns. Nested calls
// on that view run inline.
func (c *Context) RunExclusive(fn func(*Context) error) error {
	if c.held {
		return fn(c)
	}
	unlock := c.lock()
	defer unlock()
	return fn(&Context{s: c.s, held: true})
}

// Perform runs fn asynchronously on the context's queue while holding the
// context. The returned channel receives fn's result.
func (c *Context) Perform(fn func(*Context) error) <-chan error {
	done := make(chan error, 1)
	root := &Context{s: c.s}
	c.s.queue.submit(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("perform: panic: %v", r)
			}
			done <- err
		}()
		err = root.RunExclusive(fn)
	})
	return done
}

// Insert creates a pending record. Missing attributes take their declared
// default, explicit nil values stay null.
func (c *Context) Insert(entity string, attrs map[string]interface{}) (*Record, error) {
	unlock := c.lock()
	defer unlock()

	s := c.s
	e, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	values, err := normalizeValues(e, attrs)
	if err != nil {
		return nil, err
	}
	for _, a := range e.Attributes {
		if _, ok := attrs[a.Name]; !ok {
			values[a.Name] = cloneValue(a.Default)
		}
	}

	s.seq++
	rec := &Record{
		entity: e,
		ref:    Ref{store: s.coord.storeID, entity: e.Name, temp: uuid.NewString()},
		values: values,
		status: statusInserted,
		seq:    s.seq,
	}
	s.records[rec.ref] = rec
	s.inserted = append(s.inserted, rec)
	s.state = types.StateDirty
	s.emit(ChangeInserted, rec.ref)
	return rec, nil
}

// Update changes attributes of rec. A nil value clears the attribute.
func (c *Context) Update(ctx context.Context, rec *Record, attrs map[string]interface{}) (*Record, error) {
	if rec == nil {
		return nil, types.InvalidArgument("record is nil")
	}
	return c.UpdateRef(ctx, rec.Ref(), attrs)
}

func (c *Context) UpdateRef(ctx context.Context, ref Ref, attrs map[string]interface{}) (*Record, error) {
	unlock := c.lock()
	defer unlock()

	s := c.s
	rec, err := s.resolve(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	changes, err := normalizeValues(rec.entity, attrs)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return rec, nil
	}
	for k, v := range changes {
		rec.values[k] = v
	}
	if rec.status == statusPersisted {
		s.updated[rec.ref] = rec
	}
	s.state = types.StateDirty
	s.emit(ChangeUpdated, rec.ref)
	return rec, nil
}

// UpdateByID is UpdateRef for a durable id.
func (c *Context) UpdateByID(ctx context.Context, id string, attrs map[string]interface{}) (*Record, error) {
	ref, err := c.DecodeRef(id)
	if err != nil {
		return nil, err
	}
	return c.UpdateRef(ctx, ref, attrs)
}

// Delete marks rec for deletion. Deleting a pending insert discards it and
// deleting a record already marked is a no-op.
func (c *Context) Delete(ctx context.Context, rec *Record) error {
	if rec == nil {
		return types.InvalidArgument("record is nil")
	}
	return c.DeleteRef(ctx, rec.Ref())
}

func (c *Context) DeleteRef(ctx context.Context, ref Ref) error {
	unlock := c.lock()
	defer unlock()

	s := c.s
	if rec, ok := s.records[ref]; ok && rec.status == statusDeleted {
		return nil
	}
	rec, err := s.resolve(ctx, ref, false)
	if err != nil {
		return err
	}
	if rec.status == statusInserted {
		s.dropInserted(rec)
		rec.status = statusDetached
	} else {
		delete(s.updated, rec.ref)
		s.deleted[rec.ref] = rec
		rec.status = statusDeleted
	}
	s.state = types.StateDirty
	s.emit(ChangeDeleted, rec.ref)
	return nil
}

func (c *Context) DeleteByID(ctx context.Context, id string) error {
	ref, err := c.DecodeRef(id)
	if err != nil {
		return err
	}
	return c.DeleteRef(ctx, ref)
}

// Get returns the record behind ref as this context sees it. A cached record
// without pending changes is re-read from the store.
func (c *Context) Get(ctx context.Context, ref Ref) (*Record, error) {
	unlock := c.lock()
	defer unlock()
	return c.s.resolve(ctx, ref, true)
}

func (c *Context) GetByID(ctx context.Context, id string) (*Record, error) {
	ref, err := c.DecodeRef(id)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, ref)
}

// Rollback discards every pending change and restores the values of
// updated and deleted records.
func (c *Context) Rollback() {
	unlock := c.lock()
	defer unlock()
	c.s.rollback()
}

// Reset rolls back and forgets every cached record.
func (c *Context) Reset() {
	unlock := c.lock()
	defer unlock()

	s := c.s
	s.rollback()
	s.records = map[Ref]*Record{}
	s.state = types.StateReset
	s.emit(ChangeReset)
}

func (s *contextState) entity(name string) (*EntityDescription, error) {
	e, ok := s.coord.model.Entity(name)
	if !ok {
		return nil, types.InvalidArgument("unknown entity %q", name)
	}
	return e, nil
}

func (s *contextState) hasChanges() bool {
	return len(s.inserted) > 0 || len(s.updated) > 0 || len(s.deleted) > 0
}

// touched reports whether the entity has pending changes, in which case
// fetches are answered in memory.
func (s *contextState) touched(entity string) bool {
	for _, r := range s.inserted {
		if r.entity.Name == entity {
			return true
		}
	}
	for ref := range s.updated {
		if ref.entity == entity {
			return true
		}
	}
	for ref := range s.deleted {
		if ref.entity == entity {
			return true
		}
	}
	return false
}

func (s *contextState) dropInserted(rec *Record) {
	delete(s.records, rec.ref)
	for i, r := range s.inserted {
		if r == rec {
			s.inserted = append(s.inserted[:i], s.inserted[i+1:]...)
			break
		}
	}
}

func (s *contextState) rollback() {
	if !s.hasChanges() {
		s.state = types.StateClean
		return
	}
	refs := make([]Ref, 0, len(s.inserted)+len(s.updated)+len(s.deleted))
	for _, rec := range s.inserted {
		delete(s.records, rec.ref)
		rec.status = statusDetached
		refs = append(refs, rec.ref)
	}
	for _, group := range []map[Ref]*Record{s.updated, s.deleted} {
		for _, rec := range group {
			rec.values = cloneValues(rec.committed)
			rec.status = statusPersisted
			refs = append(refs, rec.ref)
		}
	}
	s.inserted = nil
	s.updated = map[Ref]*Record{}
	s.deleted = map[Ref]*Record{}
	s.state = types.StateClean
	s.emit(ChangeRolledBack, refs...)
}

// resolve returns the live record for ref, loading it from the store when
// the context does not hold it yet. A cached clean record is re-read only
// when refresh is set; mutations keep the version this context read so a
// concurrent save surfaces as a conflict.
func (s *contextState) resolve(ctx context.Context, ref Ref, refresh bool) (*Record, error) {
	if ref.store != s.coord.storeID {
		return nil, fmt.Errorf("%w: %s belongs to another store", types.ErrIDNotFound, ref)
	}
	e, err := s.entity(ref.entity)
	if err != nil {
		return nil, err
	}
	if rec, ok := s.records[ref]; ok {
		switch {
		case rec.status == statusDeleted || rec.status == statusDetached:
			return nil, fmt.Errorf("%w: %s is deleted", types.ErrNotFound, ref)
		case rec.status == statusInserted:
			return rec, nil
		case s.updated[ref] != nil:
			return rec, nil
		case !refresh:
			return rec, nil
		}
	}
	if ref.IsTemporary() {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, ref)
	}

	var rows []map[string]interface{}
	err = s.coord.DB().NewSelect().
		TableExpr("?", bun.Ident(e.TableName())).
		Where("? = ?", bun.Ident(PKColumn), ref.pk).
		Limit(1).
		Scan(ctx, &rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeError("get", err)
	}
	if len(rows) == 0 {
		delete(s.records, ref)
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, ref)
	}
	return s.materialize(e, rows[0])
}

// materialize turns a row into the context's record for it, refreshing a
// cached clean record with the stored values.
func (s *contextState) materialize(e *EntityDescription, row map[string]interface{}) (*Record, error) {
	pk, err := types.KindInt.Normalize(row[PKColumn])
	if err != nil || pk == nil {
		return nil, storeError("read", fmt.Errorf("%s: bad %s value %v", e.Name, PKColumn, row[PKColumn]))
	}
	version, err := types.KindInt.Normalize(row[VersionColumn])
	if err != nil || version == nil {
		version = int64(1)
	}
	values := make(map[string]interface{}, len(e.Attributes))
	for _, a := range e.Attributes {
		v, err := a.Kind.Normalize(row[a.Name])
		if err != nil {
			return nil, storeError("read", fmt.Errorf("%s.%s: %w", e.Name, a.Name, err))
		}
		values[a.Name] = v
	}

	ref := Ref{store: s.coord.storeID, entity: e.Name, pk: pk.(int64)}
	if rec, ok := s.records[ref]; ok {
		if rec.status == statusPersisted && s.updated[ref] == nil {
			rec.values = values
			rec.committed = cloneValues(values)
			rec.version = version.(int64)
		}
		return rec, nil
	}
	rec := &Record{
		entity:    e,
		ref:       ref,
		values:    values,
		committed: cloneValues(values),
		version:   version.(int64),
		status:    statusPersisted,
	}
	s.records[ref] = rec
	return rec, nil
}

// normalizeValues validates attribute names and converts values to their
// canonical form.
func normalizeValues(e *EntityDescription, attrs map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(e.Attributes))
	for k, v := range attrs {
		a, ok := e.Attribute(k)
		if !ok {
			return nil, types.InvalidArgument("entity %s has no attribute %q", e.Name, k)
		}
		nv, err := a.Kind.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", e.Name, k, err)
		}
		out[k] = nv
	}
	return out, nil
}
