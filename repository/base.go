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

package repository

import (
	"context"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/types"
)

type baseRepositoryImpl[T any] struct {
	raw    *rawRepository
	schema *Schema[T]
}

// NewRepository returns a typed repository over c. The schema's entity is
// registered with the coordinator, and its table created, when the model
// does not know it yet.
func NewRepository[T any](ctx context.Context, c *database.Context, schema *Schema[T], opts ...Option) (Repository[T], error) {
	if c == nil {
		return nil, types.InvalidArgument("context is nil")
	}
	if schema == nil {
		return nil, types.InvalidArgument("schema is nil")
	}
	o := newOptions(opts)
	if o.entityName != "" {
		schema = schema.WithEntityName(o.entityName)
	}
	if err := c.Coordinator().EnsureEntity(ctx, schema.Entity()); err != nil {
		return nil, err
	}
	raw, err := newRawRepository(c, schema.EntityName(), o)
	if err != nil {
		return nil, err
	}
	return &baseRepositoryImpl[T]{raw: raw, schema: schema}, nil
}

func (r *baseRepositoryImpl[T]) EntityName() string { return r.raw.entity }

func (r *baseRepositoryImpl[T]) Schema() *Schema[T] { return r.schema }

func (r *baseRepositoryImpl[T]) Context() *database.Context { return r.raw.ctx }

func (r *baseRepositoryImpl[T]) Autocommit() bool { return r.raw.autocommit }

func (r *baseRepositoryImpl[T]) HasChanges() bool { return r.raw.HasChanges() }

func (r *baseRepositoryImpl[T]) Commit(ctx context.Context) error { return r.raw.Commit(ctx) }

func (r *baseRepositoryImpl[T]) Rollback() { r.raw.Rollback() }

func (r *baseRepositoryImpl[T]) Reset() { r.raw.Reset() }

func (r *baseRepositoryImpl[T]) RunExclusive(fn func(Repository[T]) error) error {
	return r.raw.ctx.RunExclusive(func(c *database.Context) error {
		return fn(&baseRepositoryImpl[T]{raw: r.raw.held(c), schema: r.schema})
	})
}

func (r *baseRepositoryImpl[T]) cast(rec *database.Record, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return r.schema.Cast(rec)
}

// Insert fails with a constraint StoreError, leaving nothing pending, when a
// required attribute would be null. A record the store accepts but the schema
// cannot cast stays inserted and the error wraps ErrCannotCastRecord.
func (r *baseRepositoryImpl[T]) Insert(ctx context.Context, attrs map[string]interface{}) (*T, error) {
	return r.cast(r.raw.Insert(ctx, attrs))
}

func (r *baseRepositoryImpl[T]) InsertModel(ctx context.Context, model *T) (*T, error) {
	if model == nil {
		return nil, types.InvalidArgument("model is nil")
	}
	return r.Insert(ctx, r.schema.Attributes(model))
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, model *T, attrs map[string]interface{}) (*T, error) {
	ref, ok := r.schema.RefOf(model)
	if !ok {
		return nil, types.InvalidArgument("%s model carries no reference", r.raw.entity)
	}
	return r.UpdateRef(ctx, ref, attrs)
}

func (r *baseRepositoryImpl[T]) UpdateRef(ctx context.Context, ref database.Ref, attrs map[string]interface{}) (*T, error) {
	return r.cast(r.raw.UpdateRef(ctx, ref, attrs))
}

func (r *baseRepositoryImpl[T]) UpdateByID(ctx context.Context, id string, attrs map[string]interface{}) (*T, error) {
	return r.cast(r.raw.UpdateByID(ctx, id, attrs))
}

func (r *baseRepositoryImpl[T]) Fetch(ctx context.Context, ref database.Ref) (*T, error) {
	return r.cast(r.raw.Fetch(ctx, ref))
}

func (r *baseRepositoryImpl[T]) FetchByID(ctx context.Context, id string) (*T, error) {
	return r.cast(r.raw.FetchByID(ctx, id))
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, model *T) error {
	ref, ok := r.schema.RefOf(model)
	if !ok {
		return types.InvalidArgument("%s model carries no reference", r.raw.entity)
	}
	return r.raw.DeleteRef(ctx, ref)
}

func (r *baseRepositoryImpl[T]) DeleteRef(ctx context.Context, ref database.Ref) error {
	return r.raw.DeleteRef(ctx, ref)
}

func (r *baseRepositoryImpl[T]) DeleteByID(ctx context.Context, id string) error {
	return r.raw.DeleteByID(ctx, id)
}

func (r *baseRepositoryImpl[T]) Truncate(ctx context.Context) (int, error) {
	return r.raw.Truncate(ctx)
}

// Find drops records that do not cast to T.
func (r *baseRepositoryImpl[T]) Find(ctx context.Context, opts ...types.FetchOption) ([]*T, error) {
	recs, err := r.raw.Find(ctx, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		if v, ok := r.tryCast(rec); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *baseRepositoryImpl[T]) tryCast(rec *database.Record) (*T, bool) {
	v, err := r.schema.Cast(rec)
	if err != nil {
		database.GetLogger().Debug("Skipping record", "entity", r.raw.entity, "id", rec.ID(), "error", err)
		return nil, false
	}
	return v, true
}

func (r *baseRepositoryImpl[T]) FindOne(ctx context.Context, key string, value interface{}) (*T, bool, error) {
	rec, found, err := r.raw.FindOne(ctx, key, value)
	if err != nil || !found {
		return nil, false, err
	}
	v, err := r.schema.Cast(rec)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, predicate types.Predicate) (int, error) {
	return r.raw.Count(ctx, predicate)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, page, pageSize int, opts ...types.FetchOption) (*types.Pagination[T], error) {
	var pagination *types.Pagination[T]
	err := r.raw.ctx.RunExclusive(func(c *database.Context) error {
		var err error
		pagination, err = pageOf(ctx, c, r.raw.entity, page, pageSize, opts, r.tryCast)
		return err
	})
	return pagination, err
}

// FindTransformed runs Find on repo and maps every result through
// transform. The first transform error is returned as is.
func FindTransformed[T, U any](ctx context.Context, repo QueryRepository[T], transform func(*T) (U, error), opts ...types.FetchOption) ([]U, error) {
	items, err := repo.Find(ctx, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]U, 0, len(items))
	for _, item := range items {
		u, err := transform(item)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
