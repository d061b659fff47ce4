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
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/datakit/types"
)

// Save writes every pending change in one transaction. On failure nothing
// is written and the pending changes are kept, so the caller may fix them
// and save again, or roll back.
func (c *Context) Save(ctx context.Context) error {
	unlock := c.lock()
	defer unlock()
	return c.s.save(ctx)
}

func (s *contextState) save(ctx context.Context) error {
	if !s.hasChanges() {
		return nil
	}
	logger := s.coord.logger

	updated := sortedByPK(s.updated)
	deleted := sortedByPK(s.deleted)
	for _, group := range [][]*Record{s.inserted, updated} {
		for _, rec := range group {
			if err := checkRequired(rec); err != nil {
				return err
			}
		}
	}

	pks := make([]int64, len(s.inserted))
	err := s.coord.DB().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, rec := range deleted {
			if err := deleteRow(ctx, tx, rec); err != nil {
				return err
			}
		}
		for _, rec := range updated {
			if err := updateRow(ctx, tx, rec); err != nil {
				return err
			}
		}
		for i, rec := range s.inserted {
			pk, err := insertRow(ctx, tx, rec)
			if err != nil {
				return err
			}
			pks[i] = pk
		}
		return nil
	})
	if err != nil {
		err = storeError("save", err)
		logger.Warn("Save failed, pending changes kept", "context", s.id, "error", err)
		return err
	}

	event := SaveEvent{ContextID: s.id}
	for _, rec := range deleted {
		delete(s.records, rec.ref)
		rec.status = statusDetached
		event.Deleted = append(event.Deleted, rec.ref)
	}
	for _, rec := range updated {
		rec.version++
		rec.committed = cloneValues(rec.values)
		event.Updated = append(event.Updated, rec.ref)
	}
	for i, rec := range s.inserted {
		delete(s.records, rec.ref)
		rec.ref = Ref{store: rec.ref.store, entity: rec.ref.entity, pk: pks[i]}
		rec.version = 1
		rec.committed = cloneValues(rec.values)
		rec.status = statusPersisted
		s.records[rec.ref] = rec
		event.Inserted = append(event.Inserted, rec.ref)
	}
	s.inserted = nil
	s.updated = map[Ref]*Record{}
	s.deleted = map[Ref]*Record{}
	s.state = types.StateClean

	refs := make([]Ref, 0, len(event.Inserted)+len(event.Updated)+len(event.Deleted))
	refs = append(append(append(refs, event.Inserted...), event.Updated...), event.Deleted...)
	s.emit(ChangeSaved, refs...)
	s.saved = append(s.saved, event)
	logger.Debug("Context saved", "context", s.id,
		"inserted", len(event.Inserted), "updated", len(event.Updated), "deleted", len(event.Deleted))
	return nil
}

// CheckInsert returns the constraint error a save would report for a record
// inserted with attrs: a required attribute set to nil, or left out without
// a default.
func (e *EntityDescription) CheckInsert(attrs map[string]interface{}) error {
	for _, a := range e.Attributes {
		if a.Optional {
			continue
		}
		v, ok := attrs[a.Name]
		if !ok {
			v = a.Default
		}
		if v == nil {
			return types.NewStoreError(types.StoreErrorConstraint, "insert",
				fmt.Errorf("%s.%s must not be null", e.Name, a.Name))
		}
	}
	return nil
}

func checkRequired(rec *Record) error {
	for _, a := range rec.entity.Attributes {
		if !a.Optional && rec.values[a.Name] == nil {
			return types.NewStoreError(types.StoreErrorConstraint, "save",
				fmt.Errorf("%s.%s must not be null (%s)", rec.entity.Name, a.Name, rec.ref))
		}
	}
	return nil
}

func sortedByPK(m map[Ref]*Record) []*Record {
	out := make([]*Record, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ref.entity != out[j].ref.entity {
			return out[i].ref.entity < out[j].ref.entity
		}
		return out[i].ref.pk < out[j].ref.pk
	})
	return out
}

func conflict(rec *Record) error {
	return types.NewStoreError(types.StoreErrorConflict, "save",
		fmt.Errorf("%s was changed or deleted by another context", rec.ref))
}

func expectOneRow(res sql.Result, rec *Record) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return conflict(rec)
	}
	return nil
}

func deleteRow(ctx context.Context, tx bun.Tx, rec *Record) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM ? WHERE ? = ? AND ? = ?",
		bun.Ident(rec.entity.TableName()),
		bun.Ident(PKColumn), rec.ref.pk,
		bun.Ident(VersionColumn), rec.version)
	if err != nil {
		return err
	}
	return expectOneRow(res, rec)
}

func updateRow(ctx context.Context, tx bun.Tx, rec *Record) error {
	var (
		sets []string
		args = []interface{}{bun.Ident(rec.entity.TableName())}
	)
	for _, a := range rec.entity.Attributes {
		v, err := a.Kind.Encode(rec.values[a.Name])
		if err != nil {
			return err
		}
		sets = append(sets, "? = ?")
		args = append(args, bun.Ident(a.Name), v)
	}
	sets = append(sets, "? = ? + 1")
	args = append(args, bun.Ident(VersionColumn), bun.Ident(VersionColumn))
	args = append(args, bun.Ident(PKColumn), rec.ref.pk, bun.Ident(VersionColumn), rec.version)

	query := "UPDATE ? SET " + strings.Join(sets, ", ") + " WHERE ? = ? AND ? = ?"
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectOneRow(res, rec)
}

func insertRow(ctx context.Context, tx bun.Tx, rec *Record) (int64, error) {
	var (
		cols, marks []string
		args        = []interface{}{bun.Ident(rec.entity.TableName())}
		vals        []interface{}
	)
	for _, a := range rec.entity.Attributes {
		v, err := a.Kind.Encode(rec.values[a.Name])
		if err != nil {
			return 0, err
		}
		cols = append(cols, "?")
		marks = append(marks, "?")
		args = append(args, bun.Ident(a.Name))
		vals = append(vals, v)
	}
	cols = append(cols, "?")
	marks = append(marks, "?")
	args = append(args, bun.Ident(VersionColumn))
	vals = append(vals, int64(1))
	args = append(args, vals...)

	query := "INSERT INTO ? (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	if tx.Dialect().Features().Has(feature.InsertReturning) {
		var pk int64
		args = append(args, bun.Ident(PKColumn))
		if err := tx.QueryRowContext(ctx, query+" RETURNING ?", args...).Scan(&pk); err != nil {
			return 0, err
		}
		return pk, nil
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
