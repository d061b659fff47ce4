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
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tomoncle/datakit/types"
)

// RefScheme is the URI scheme of durable ids.
const RefScheme = "x-datakit"

// Ref is the store's handle to one record. Saved records are addressed by
// their primary key; records inserted but not yet saved carry a temporary
// identifier that is replaced on save. Refs are comparable.
type Ref struct {
	store  string
	entity string
	pk     int64
	temp   string
}

func (r Ref) IsZero() bool { return r == Ref{} }

func (r Ref) StoreID() string { return r.store }

func (r Ref) Entity() string { return r.entity }

// PK is the primary key of a saved record, 0 for temporary refs.
func (r Ref) PK() int64 { return r.pk }

// IsTemporary reports whether r points at a record not yet saved.
func (r Ref) IsTemporary() bool { return r.temp != "" }

// String returns the durable id of r, e.g.
// x-datakit://0b6c.../Playlist/p42. The zero Ref encodes to "".
func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	local := "p" + strconv.FormatInt(r.pk, 10)
	if r.IsTemporary() {
		local = "t" + r.temp
	}
	u := url.URL{Scheme: RefScheme, Host: r.store, Path: "/" + r.entity + "/" + local}
	return u.String()
}

// decodeRef parses a durable id produced by a store with identifier
// storeID. Anything else yields types.ErrIDNotFound.
func decodeRef(storeID string, model *Model, s string) (Ref, error) {
	notFound := func(reason string) (Ref, error) {
		return Ref{}, fmt.Errorf("%w: %q %s", types.ErrIDNotFound, s, reason)
	}
	u, err := url.Parse(s)
	if err != nil {
		return notFound("is not a URI")
	}
	if u.Scheme != RefScheme {
		return notFound("has an unknown scheme")
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return notFound("is not a record reference")
	}
	if u.Host != storeID {
		return notFound("belongs to another store")
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) != 2 || len(parts[1]) < 2 {
		return notFound("is not a record reference")
	}
	if model != nil {
		if _, ok := model.Entity(parts[0]); !ok {
			return notFound("names an unknown entity")
		}
	}
	ref := Ref{store: storeID, entity: parts[0]}
	local := parts[1]
	switch local[0] {
	case 'p':
		pk, err := strconv.ParseInt(local[1:], 10, 64)
		if err != nil || pk <= 0 {
			return notFound("has a malformed key")
		}
		ref.pk = pk
	case 't':
		id, err := uuid.Parse(local[1:])
		if err != nil {
			return notFound("has a malformed temporary key")
		}
		ref.temp = id.String()
	default:
		return notFound("has a malformed key")
	}
	return ref, nil
}
