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
	"fmt"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/types"
)

type rawRepository struct {
	ctx        *database.Context
	entity     string
	autocommit bool
}

// NewRawRepository returns an untyped repository for a registered entity.
func NewRawRepository(c *database.Context, entity string, opts ...Option) (RawRepository, error) {
	return newRawRepository(c, entity, newOptions(opts))
}

func newRawRepository(c *database.Context, entity string, o *options) (*rawRepository, error) {
	if c == nil {
		return nil, types.InvalidArgument("context is nil")
	}
	if _, err := c.Entity(entity); err != nil {
		return nil, err
	}
	return &rawRepository{ctx: c, entity: entity, autocommit: o.autocommit}, nil
}

func (r *rawRepository) EntityName() string { return r.entity }

func (r *rawRepository) Context() *database.Context { return r.ctx }

func (r *rawRepository) Autocommit() bool { return r.autocommit }

func (r *rawRepository) HasChanges() bool { return r.ctx.HasChanges() }

func (r *rawRepository) Commit(ctx context.Context) error { return r.ctx.Save(ctx) }

func (r *rawRepository) Rollback() { r.ctx.Rollback() }

func (r *rawRepository) Reset() { r.ctx.Reset() }

// held returns a copy of r working on the held view of its context.
func (r *rawRepository) held(c *database.Context) *rawRepository {
	cp := *r
	cp.ctx = c
	return &cp
}

func (r *rawRepository) RunExclusive(fn func(RawRepository) error) error {
	return r.ctx.RunExclusive(func(c *database.Context) error {
		return fn(r.held(c))
	})
}

// mutate runs op and, when autocommitting, saves in the same exclusive
// section.
func (r *rawRepository) mutate(ctx context.Context, op func(c *database.Context) error) error {
	return r.ctx.RunExclusive(func(c *database.Context) error {
		if err := op(c); err != nil {
			return err
		}
		if r.autocommit {
			return c.Save(ctx)
		}
		return nil
	})
}

// Insert rejects attribute maps that leave a required attribute null before
// anything becomes pending.
func (r *rawRepository) Insert(ctx context.Context, attrs map[string]interface{}) (*database.Record, error) {
	e, err := r.ctx.Entity(r.entity)
	if err != nil {
		return nil, err
	}
	if err := e.CheckInsert(attrs); err != nil {
		return nil, err
	}
	var rec *database.Record
	err = r.mutate(ctx, func(c *database.Context) (err error) {
		rec, err = c.Insert(r.entity, attrs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// InsertModel inserts a copy of model's attribute values.
func (r *rawRepository) InsertModel(ctx context.Context, model *database.Record) (*database.Record, error) {
	if model == nil {
		return nil, types.InvalidArgument("record is nil")
	}
	return r.Insert(ctx, model.Values())
}

func (r *rawRepository) Update(ctx context.Context, model *database.Record, attrs map[string]interface{}) (*database.Record, error) {
	if model == nil {
		return nil, types.InvalidArgument("record is nil")
	}
	return r.UpdateRef(ctx, model.Ref(), attrs)
}

func (r *rawRepository) UpdateRef(ctx context.Context, ref database.Ref, attrs map[string]interface{}) (*database.Record, error) {
	if err := r.checkRef(ref); err != nil {
		return nil, err
	}
	var rec *database.Record
	err := r.mutate(ctx, func(c *database.Context) (err error) {
		rec, err = c.UpdateRef(ctx, ref, attrs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *rawRepository) UpdateByID(ctx context.Context, id string, attrs map[string]interface{}) (*database.Record, error) {
	ref, err := r.decode(id)
	if err != nil {
		return nil, err
	}
	return r.UpdateRef(ctx, ref, attrs)
}

func (r *rawRepository) Fetch(ctx context.Context, ref database.Ref) (*database.Record, error) {
	if err := r.checkRef(ref); err != nil {
		return nil, err
	}
	return r.ctx.Get(ctx, ref)
}

func (r *rawRepository) FetchByID(ctx context.Context, id string) (*database.Record, error) {
	ref, err := r.decode(id)
	if err != nil {
		return nil, err
	}
	return r.ctx.Get(ctx, ref)
}

func (r *rawRepository) Delete(ctx context.Context, model *database.Record) error {
	if model == nil {
		return types.InvalidArgument("record is nil")
	}
	return r.DeleteRef(ctx, model.Ref())
}

func (r *rawRepository) DeleteRef(ctx context.Context, ref database.Ref) error {
	if err := r.checkRef(ref); err != nil {
		return err
	}
	return r.mutate(ctx, func(c *database.Context) error {
		return c.DeleteRef(ctx, ref)
	})
}

func (r *rawRepository) DeleteByID(ctx context.Context, id string) error {
	ref, err := r.decode(id)
	if err != nil {
		return err
	}
	return r.DeleteRef(ctx, ref)
}

// Truncate deletes every record of the entity and saves once.
func (r *rawRepository) Truncate(ctx context.Context) (int, error) {
	var n int
	err := r.ctx.RunExclusive(func(c *database.Context) error {
		req, err := types.NewFetchRequest(r.entity)
		if err != nil {
			return err
		}
		recs, err := c.Fetch(ctx, req)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := c.Delete(ctx, rec); err != nil {
				return err
			}
		}
		n = len(recs)
		if r.autocommit && n > 0 {
			return c.Save(ctx)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *rawRepository) Find(ctx context.Context, opts ...types.FetchOption) ([]*database.Record, error) {
	req, err := types.NewFetchRequest(r.entity, opts...)
	if err != nil {
		return nil, err
	}
	return r.ctx.Fetch(ctx, req)
}

func (r *rawRepository) FindOne(ctx context.Context, key string, value interface{}) (*database.Record, bool, error) {
	recs, err := r.Find(ctx, types.Where(matchOne(key, value)), types.Page(0, 1))
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

func (r *rawRepository) Count(ctx context.Context, predicate types.Predicate) (int, error) {
	req, err := types.NewFetchRequest(r.entity, types.Where(predicate))
	if err != nil {
		return 0, err
	}
	return r.ctx.Count(ctx, req)
}

func (r *rawRepository) Page(ctx context.Context, page, pageSize int, opts ...types.FetchOption) (*types.Pagination[database.Record], error) {
	var pagination *types.Pagination[database.Record]
	err := r.ctx.RunExclusive(func(c *database.Context) error {
		var err error
		pagination, err = pageOf(ctx, c, r.entity, page, pageSize, opts, func(rec *database.Record) (*database.Record, bool) {
			return rec, true
		})
		return err
	})
	return pagination, err
}

// pageOf counts and fetches one page in the same exclusive section, keeping
// the items that convert.
func pageOf[T any](ctx context.Context, c *database.Context, entity string, page, pageSize int,
	opts []types.FetchOption, convert func(*database.Record) (*T, bool)) (*types.Pagination[T], error) {
	opts = append(append([]types.FetchOption(nil), opts...), types.Page(page, pageSize))
	req, err := types.NewFetchRequest(entity, opts...)
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[T](page, pageSize)
	total, err := c.Count(ctx, req)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	if total == 0 {
		return pagination, nil
	}
	recs, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if v, ok := convert(rec); ok {
			pagination.Items = append(pagination.Items, v)
		}
	}
	return pagination, nil
}

// matchOne is case-insensitive equality for strings, plain equality
// otherwise.
func matchOne(key string, value interface{}) types.Predicate {
	if s, ok := value.(string); ok {
		return types.EqualFold(key, s)
	}
	return types.Eq(key, value)
}

func (r *rawRepository) decode(id string) (database.Ref, error) {
	ref, err := r.ctx.DecodeRef(id)
	if err != nil {
		return database.Ref{}, err
	}
	if ref.Entity() != r.entity {
		return database.Ref{}, fmt.Errorf("%w: %q is not a %s", types.ErrIDNotFound, id, r.entity)
	}
	return ref, nil
}

func (r *rawRepository) checkRef(ref database.Ref) error {
	if ref.Entity() != r.entity {
		return types.InvalidArgument("%s does not reference a %s", ref, r.entity)
	}
	return nil
}
