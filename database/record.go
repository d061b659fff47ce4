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
	"github.com/tomoncle/datakit/types"
)

type recordStatus int

const (
	statusPersisted recordStatus = iota
	statusInserted
	statusDeleted
	statusDetached
)

// Record is one stored record as seen by a single Context. It is mutated
// only through its Context, so reads that race with operations on the same
// Context on another goroutine must go through RunExclusive.
type Record struct {
	entity    *EntityDescription
	ref       Ref
	values    map[string]interface{}
	committed map[string]interface{}
	version   int64
	status    recordStatus
	seq       uint64
}

var _ types.Getter = (*Record)(nil)

func (r *Record) Entity() string { return r.entity.Name }

// Description returns the entity description of the record.
func (r *Record) Description() *EntityDescription { return r.entity }

// Ref returns the current reference. It changes once, when a pending insert
// is saved.
func (r *Record) Ref() Ref { return r.ref }

// ID is the durable id of the record.
func (r *Record) ID() string { return r.ref.String() }

// Get implements types.Getter. Null attributes report false.
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok && v != nil
}

// Value returns the attribute value, nil when null or unknown.
func (r *Record) Value(key string) interface{} {
	return r.values[key]
}

// Values returns a copy of every attribute, null ones included.
func (r *Record) Values() map[string]interface{} {
	return cloneValues(r.values)
}

// Version is the optimistic concurrency counter read from the store.
func (r *Record) Version() int64 { return r.version }

// IsInserted reports a pending insert.
func (r *Record) IsInserted() bool { return r.status == statusInserted }

// IsDeleted reports a pending delete, or a record removed by a save.
func (r *Record) IsDeleted() bool { return r.status == statusDeleted || r.status == statusDetached }

// ToMap returns the requested attributes (all when keys is empty) plus the
// durable id under ObjectIDKey.
func (r *Record) ToMap(keys ...string) map[string]interface{} {
	if len(keys) == 0 {
		keys = r.entity.AttributeNames()
	}
	out := make(map[string]interface{}, len(keys)+1)
	for _, k := range keys {
		out[k] = cloneValue(r.values[k])
	}
	out[ObjectIDKey] = r.ID()
	return out
}

func cloneValues(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return b
	case types.JsonObject:
		return x.Clone()
	default:
		return v
	}
}
