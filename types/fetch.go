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

package types

import (
	"fmt"
	"strings"
)

// SortTerm orders results by one attribute.
type SortTerm struct {
	Key       string
	Ascending bool
}

// Asc sorts by key, smallest first. Nulls sort before any value.
func Asc(key string) SortTerm { return SortTerm{Key: key, Ascending: true} }

// Desc sorts by key, largest first. Nulls sort after any value.
func Desc(key string) SortTerm { return SortTerm{Key: key, Ascending: false} }

func (s SortTerm) String() string {
	if s.Ascending {
		return s.Key + " ASC"
	}
	return s.Key + " DESC"
}

// FetchRequest describes one query against an entity: an optional
// predicate, optional sort terms and an optional page window.
// A request is immutable once built.
type FetchRequest struct {
	entity    string
	predicate Predicate
	sort      []SortTerm
	paged     bool
	page      int
	pageSize  int
}

// FetchOption configures a FetchRequest under construction.
type FetchOption func(*FetchRequest)

// Where filters the request with p. A nil predicate matches everything.
func Where(p Predicate) FetchOption {
	return func(r *FetchRequest) { r.predicate = p }
}

// OrderBy appends sort terms, most significant first.
func OrderBy(terms ...SortTerm) FetchOption {
	return func(r *FetchRequest) { r.sort = append(r.sort, terms...) }
}

// Page selects the window [page*pageSize, page*pageSize+pageSize). Pages
// are zero based.
func Page(page, pageSize int) FetchOption {
	return func(r *FetchRequest) {
		r.paged = true
		r.page = page
		r.pageSize = pageSize
	}
}

// NewFetchRequest builds a request for entity. Negative page values and
// empty names are rejected with ErrInvalidArgument.
func NewFetchRequest(entity string, opts ...FetchOption) (*FetchRequest, error) {
	if strings.TrimSpace(entity) == "" {
		return nil, InvalidArgument("entity name is empty")
	}
	r := &FetchRequest{entity: entity}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.paged && (r.page < 0 || r.pageSize < 0) {
		return nil, InvalidArgument("page %d / page size %d must not be negative", r.page, r.pageSize)
	}
	for _, term := range r.sort {
		if strings.TrimSpace(term.Key) == "" {
			return nil, InvalidArgument("sort key is empty")
		}
	}
	return r, nil
}

func (r *FetchRequest) Entity() string { return r.entity }

func (r *FetchRequest) Predicate() Predicate { return r.predicate }

// Sort returns a copy of the sort terms.
func (r *FetchRequest) Sort() []SortTerm {
	out := make([]SortTerm, len(r.sort))
	copy(out, r.sort)
	return out
}

// Paged reports whether the request carries a page window.
func (r *FetchRequest) Paged() bool { return r.paged }

func (r *FetchRequest) Page() int { return r.page }

func (r *FetchRequest) PageSize() int { return r.pageSize }

func (r *FetchRequest) Offset() int { return r.page * r.pageSize }

func (r *FetchRequest) Limit() int { return r.pageSize }

// Empty reports whether the request can only produce an empty page.
func (r *FetchRequest) Empty() bool { return r.paged && r.pageSize == 0 }

// WithoutPage returns a copy of r that selects every matching record.
func (r *FetchRequest) WithoutPage() *FetchRequest {
	cp := *r
	cp.sort = r.Sort()
	cp.paged, cp.page, cp.pageSize = false, 0, 0
	return &cp
}

func (r *FetchRequest) String() string {
	var b strings.Builder
	b.WriteString(r.entity)
	if r.predicate != nil {
		fmt.Fprintf(&b, " WHERE %s", r.predicate)
	}
	if len(r.sort) > 0 {
		terms := make([]string, 0, len(r.sort))
		for _, t := range r.sort {
			terms = append(terms, t.String())
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(terms, ", "))
	}
	if r.paged {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", r.Limit(), r.Offset())
	}
	return b.String()
}
