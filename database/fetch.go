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
	"math"
	"sort"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/datakit/types"
)

// Fetch returns the records matching req as this context sees them: saved
// rows merged with the context's pending inserts, updates and deletes.
// Ascending sorts place nulls first. Ties are broken by primary key, with
// pending inserts last in insertion order.
func (c *Context) Fetch(ctx context.Context, req *types.FetchRequest) ([]*Record, error) {
	unlock := c.lock()
	defer unlock()
	return c.s.fetch(ctx, req)
}

// Count returns how many records Fetch would return without paging.
func (c *Context) Count(ctx context.Context, req *types.FetchRequest) (int, error) {
	unlock := c.lock()
	defer unlock()

	s := c.s
	e, pred, _, err := s.prepare(req)
	if err != nil {
		return 0, err
	}
	if s.inMemory(e, pred) {
		recs, err := s.fetch(ctx, req.WithoutPage())
		if err != nil {
			return 0, err
		}
		return len(recs), nil
	}
	n, err := s.selectQuery(e, pred).Count(ctx)
	if err != nil {
		return 0, storeError("count", err)
	}
	return n, nil
}

// prepare validates req against the model.
func (s *contextState) prepare(req *types.FetchRequest) (*EntityDescription, types.Predicate, []types.SortTerm, error) {
	if req == nil {
		return nil, nil, nil, types.InvalidArgument("fetch request is nil")
	}
	e, err := s.entity(req.Entity())
	if err != nil {
		return nil, nil, nil, err
	}
	var pred types.Predicate
	if p := req.Predicate(); p != nil {
		if pred, err = p.Resolve(e); err != nil {
			return nil, nil, nil, err
		}
	}
	terms := req.Sort()
	for _, t := range terms {
		if _, ok := e.Attribute(t.Key); !ok {
			return nil, nil, nil, types.InvalidArgument("cannot sort %s by unknown attribute %q", e.Name, t.Key)
		}
	}
	return e, pred, terms, nil
}

func (s *contextState) fetch(ctx context.Context, req *types.FetchRequest) ([]*Record, error) {
	e, pred, terms, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return []*Record{}, nil
	}

	if !s.inMemory(e, pred) {
		q := s.orderBy(s.selectQuery(e, pred), terms)
		if req.Paged() {
			q = q.Limit(req.Limit()).Offset(req.Offset())
		}
		return s.scan(ctx, q, e)
	}

	sqlPred := pred
	if types.FoldsText(pred) {
		sqlPred = nil
	}
	stored, err := s.scan(ctx, s.orderBy(s.selectQuery(e, sqlPred), nil), e)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(stored))
	for _, rec := range stored {
		if rec.status != statusPersisted || s.updated[rec.ref] != nil {
			continue
		}
		if sqlPred == nil && pred != nil && !pred.Match(rec) {
			continue
		}
		out = append(out, rec)
	}
	for _, rec := range s.updated {
		if rec.entity.Name == e.Name && (pred == nil || pred.Match(rec)) {
			out = append(out, rec)
		}
	}
	for _, rec := range s.inserted {
		if rec.entity.Name == e.Name && (pred == nil || pred.Match(rec)) {
			out = append(out, rec)
		}
	}
	sortRecords(out, terms)

	if !req.Paged() {
		return out, nil
	}
	start := req.Offset()
	if start >= len(out) {
		return []*Record{}, nil
	}
	end := start + req.Limit()
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

// inMemory reports whether a fetch is answered by merging in memory: the
// entity has pending changes or pred folds text.
func (s *contextState) inMemory(e *EntityDescription, pred types.Predicate) bool {
	return s.touched(e.Name) || types.FoldsText(pred)
}

func (s *contextState) selectQuery(e *EntityDescription, pred types.Predicate) *bun.SelectQuery {
	q := s.coord.DB().NewSelect().TableExpr("?", bun.Ident(e.TableName()))
	if pred != nil {
		// Resolved predicates render without error.
		where, args, _ := pred.AppendSQL(e)
		q = q.Where(where, args...)
	}
	return q
}

// orderBy appends the sort terms and the primary key tie-breaker. Postgres
// sorts nulls last by default, so the placement is spelled out there.
func (s *contextState) orderBy(q *bun.SelectQuery, terms []types.SortTerm) *bun.SelectQuery {
	pg := s.coord.DB().Dialect().Name() == dialect.PG
	for _, t := range terms {
		switch {
		case t.Ascending && pg:
			q = q.OrderExpr("? ASC NULLS FIRST", bun.Ident(t.Key))
		case t.Ascending:
			q = q.OrderExpr("? ASC", bun.Ident(t.Key))
		case pg:
			q = q.OrderExpr("? DESC NULLS LAST", bun.Ident(t.Key))
		default:
			q = q.OrderExpr("? DESC", bun.Ident(t.Key))
		}
	}
	return q.OrderExpr("? ASC", bun.Ident(PKColumn))
}

func (s *contextState) scan(ctx context.Context, q *bun.SelectQuery, e *EntityDescription) ([]*Record, error) {
	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, storeError("fetch", err)
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.materialize(e, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func sortRecords(recs []*Record, terms []types.SortTerm) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		for _, t := range terms {
			c := compareAttr(a, b, t.Key)
			if !t.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		if pa, pb := sortKey(a), sortKey(b); pa != pb {
			return pa < pb
		}
		return a.seq < b.seq
	})
}

func sortKey(r *Record) int64 {
	if r.ref.pk == 0 {
		return math.MaxInt64
	}
	return r.ref.pk
}

// compareAttr orders null before any value.
func compareAttr(a, b *Record, key string) int {
	av, aok := a.Get(key)
	bv, bok := b.Get(key)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	c, _ := types.CompareValues(av, bv)
	return c
}
