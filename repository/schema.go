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
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/types"
)

// Value lists the Go types an attribute can be mapped to.
type Value interface {
	string | int64 | float64 | bool | time.Time | []byte | types.JsonObject
}

// EntityNamer lets a record type declare its entity name.
type EntityNamer interface {
	EntityName() string
}

// Field maps one attribute onto a field of T.
type Field[T any] interface {
	Name() string
	Kind() types.AttributeKind
	Optional() bool
	get(v *T) interface{}
	set(v *T, value interface{}) error
}

type field[T any, V Value] struct {
	name string
	kind types.AttributeKind
	ptr  func(*T) *V
}

// Attr maps a required attribute onto the field ptr points at.
//
//	repository.Attr("name", func(p *Playlist) *string { return &p.Name })
func Attr[T any, V Value](name string, ptr func(*T) *V) Field[T] {
	return &field[T, V]{name: name, kind: kindOf[V](), ptr: ptr}
}

func (f *field[T, V]) Name() string              { return f.name }
func (f *field[T, V]) Kind() types.AttributeKind { return f.kind }
func (f *field[T, V]) Optional() bool            { return false }
func (f *field[T, V]) get(v *T) interface{}      { return *f.ptr(v) }

func (f *field[T, V]) set(v *T, value interface{}) error {
	x, ok := value.(V)
	if !ok {
		return fmt.Errorf("%w: attribute %q holds %T, want %s", types.ErrCannotCastRecord, f.name, value, f.kind)
	}
	*f.ptr(v) = x
	return nil
}

type optionalField[T any, V Value] struct {
	name string
	kind types.AttributeKind
	ptr  func(*T) **V
}

// OptionalAttr maps a nullable attribute onto a pointer field; null is nil.
func OptionalAttr[T any, V Value](name string, ptr func(*T) **V) Field[T] {
	return &optionalField[T, V]{name: name, kind: kindOf[V](), ptr: ptr}
}

func (f *optionalField[T, V]) Name() string              { return f.name }
func (f *optionalField[T, V]) Kind() types.AttributeKind { return f.kind }
func (f *optionalField[T, V]) Optional() bool            { return true }

func (f *optionalField[T, V]) get(v *T) interface{} {
	if p := *f.ptr(v); p != nil {
		return *p
	}
	return nil
}

func (f *optionalField[T, V]) set(v *T, value interface{}) error {
	if value == nil {
		*f.ptr(v) = nil
		return nil
	}
	x, ok := value.(V)
	if !ok {
		return fmt.Errorf("%w: attribute %q holds %T, want %s", types.ErrCannotCastRecord, f.name, value, f.kind)
	}
	*f.ptr(v) = &x
	return nil
}

func kindOf[V Value]() types.AttributeKind {
	var zero V
	switch any(zero).(type) {
	case string:
		return types.KindString
	case int64:
		return types.KindInt
	case float64:
		return types.KindFloat
	case bool:
		return types.KindBool
	case time.Time:
		return types.KindTime
	case []byte:
		return types.KindBytes
	case types.JsonObject:
		return types.KindJSON
	default:
		return types.KindInvalid
	}
}

// Schema is the field registry of a record type: how its fields map onto
// the attributes of one entity.
type Schema[T any] struct {
	name   string
	fields []Field[T]
	index  map[string]Field[T]
	ref    func(*T) *database.Ref
}

// NewSchema builds the registry of T. The entity name comes from
// T.EntityName() when T implements EntityNamer, otherwise from the bare
// type name.
func NewSchema[T any](fields ...Field[T]) *Schema[T] {
	s := &Schema[T]{name: defaultEntityName[T](), index: make(map[string]Field[T], len(fields))}
	for _, f := range fields {
		s.fields = append(s.fields, f)
		s.index[f.Name()] = f
	}
	return s
}

// WithEntityName returns a copy of s bound to another entity.
func (s *Schema[T]) WithEntityName(name string) *Schema[T] {
	cp := *s
	cp.name = name
	return &cp
}

// WithRef returns a copy of s that records the ref of each cast record in
// the field ptr points at. Update and Delete by model need it.
func (s *Schema[T]) WithRef(ptr func(*T) *database.Ref) *Schema[T] {
	cp := *s
	cp.ref = ptr
	return &cp
}

func (s *Schema[T]) EntityName() string { return s.name }

func (s *Schema[T]) Fields() []Field[T] { return append([]Field[T](nil), s.fields...) }

func (s *Schema[T]) Field(name string) (Field[T], bool) {
	f, ok := s.index[name]
	return f, ok
}

// Entity describes the entity the schema maps to, for registration with
// a coordinator.
func (s *Schema[T]) Entity() *database.EntityDescription {
	attrs := make([]database.AttributeDescription, 0, len(s.fields))
	for _, f := range s.fields {
		attrs = append(attrs, database.AttributeDescription{Name: f.Name(), Kind: f.Kind(), Optional: f.Optional()})
	}
	return database.NewEntity(s.name, attrs...)
}

// Cast converts rec into a T. Records of another entity, records lacking a
// mapped attribute and values of the wrong type fail with
// types.ErrCannotCastRecord.
func (s *Schema[T]) Cast(rec *database.Record) (*T, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: record is nil", types.ErrCannotCastRecord)
	}
	if rec.Entity() != s.name {
		return nil, fmt.Errorf("%w: record of %s is not a %s", types.ErrCannotCastRecord, rec.Entity(), s.name)
	}
	desc := rec.Description()
	v := new(T)
	for _, f := range s.fields {
		if _, ok := desc.Attribute(f.Name()); !ok {
			return nil, fmt.Errorf("%w: %s has no attribute %q", types.ErrCannotCastRecord, s.name, f.Name())
		}
		value := rec.Value(f.Name())
		if value == nil && !f.Optional() {
			return nil, fmt.Errorf("%w: required attribute %q is null", types.ErrCannotCastRecord, f.Name())
		}
		if err := f.set(v, value); err != nil {
			return nil, err
		}
	}
	if s.ref != nil {
		*s.ref(v) = rec.Ref()
	}
	return v, nil
}

// Attributes returns the mapped fields of v as an attribute map.
func (s *Schema[T]) Attributes(v *T) map[string]interface{} {
	out := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		out[f.Name()] = f.get(v)
	}
	return out
}

// RefOf returns the ref recorded in v, if the schema tracks refs.
func (s *Schema[T]) RefOf(v *T) (database.Ref, bool) {
	if s.ref == nil || v == nil {
		return database.Ref{}, false
	}
	ref := *s.ref(v)
	return ref, !ref.IsZero()
}

func defaultEntityName[T any]() string {
	if n, ok := any(new(T)).(EntityNamer); ok {
		if name := n.EntityName(); name != "" {
			return name
		}
	}
	return EntityNameOf(reflect.TypeOf((*T)(nil)).Elem().String())
}

// EntityNameOf reduces a qualified type name such as "models.Playlist" or
// "store.Box[models.Item]" to the bare type name.
func EntityNameOf(typeName string) string {
	if i := strings.IndexByte(typeName, '['); i >= 0 {
		typeName = typeName[:i]
	}
	typeName = strings.TrimLeft(typeName, "*")
	if i := strings.LastIndexByte(typeName, '.'); i >= 0 {
		typeName = typeName[i+1:]
	}
	return typeName
}
