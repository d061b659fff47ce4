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
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tomoncle/datakit/types"
)

// Reserved column and key names.
const (
	PKColumn      = "_pk"
	VersionColumn = "_version"
	ObjectIDKey   = "_object_id"
)

// AttributeDescription declares one attribute of an entity.
type AttributeDescription struct {
	Name     string              `yaml:"name" json:"name"`
	Kind     types.AttributeKind `yaml:"kind" json:"kind"`
	Optional bool                `yaml:"optional,omitempty" json:"optional,omitempty"`
	Default  interface{}         `yaml:"default,omitempty" json:"default,omitempty"`
}

// EntityDescription declares an entity kind and its attributes.
type EntityDescription struct {
	Name       string                 `yaml:"name" json:"name"`
	Table      string                 `yaml:"table,omitempty" json:"table,omitempty"`
	Attributes []AttributeDescription `yaml:"attributes" json:"attributes"`

	index map[string]int
}

// NewEntity is a convenience constructor for code-defined models.
func NewEntity(name string, attrs ...AttributeDescription) *EntityDescription {
	return &EntityDescription{Name: name, Attributes: attrs}
}

// Attr declares a required attribute.
func Attr(name string, kind types.AttributeKind) AttributeDescription {
	return AttributeDescription{Name: name, Kind: kind}
}

// OptionalAttr declares a nullable attribute.
func OptionalAttr(name string, kind types.AttributeKind) AttributeDescription {
	return AttributeDescription{Name: name, Kind: kind, Optional: true}
}

// WithDefault returns a copy of a carrying a default value.
func (a AttributeDescription) WithDefault(v interface{}) AttributeDescription {
	a.Default = v
	return a
}

// TableName is the table backing the entity.
func (e *EntityDescription) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

func (e *EntityDescription) Attribute(name string) (*AttributeDescription, bool) {
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return &e.Attributes[i], true
}

// AttributeKind implements types.KindResolver.
func (e *EntityDescription) AttributeKind(key string) (types.AttributeKind, bool) {
	attr, ok := e.Attribute(key)
	if !ok {
		return types.KindInvalid, false
	}
	return attr.Kind, true
}

func (e *EntityDescription) AttributeNames() []string {
	names := make([]string, 0, len(e.Attributes))
	for _, a := range e.Attributes {
		names = append(names, a.Name)
	}
	return names
}

// normalize validates the description in place and builds its index.
func (e *EntityDescription) normalize() error {
	if err := checkName("entity", e.Name); err != nil {
		return err
	}
	if strings.ContainsAny(e.Name, "/?#%") {
		return types.InvalidArgument("entity name %q contains a reserved character", e.Name)
	}
	e.index = make(map[string]int, len(e.Attributes))
	for i := range e.Attributes {
		a := &e.Attributes[i]
		if err := checkName("attribute", a.Name); err != nil {
			return fmt.Errorf("entity %s: %w", e.Name, err)
		}
		if _, dup := e.index[a.Name]; dup {
			return types.InvalidArgument("entity %s: duplicate attribute %q", e.Name, a.Name)
		}
		if !a.Kind.IsValid() {
			return types.InvalidArgument("entity %s: attribute %q has no valid kind", e.Name, a.Name)
		}
		def, err := a.Kind.Normalize(a.Default)
		if err != nil {
			return fmt.Errorf("entity %s: default of %q: %w", e.Name, a.Name, err)
		}
		a.Default = def
		e.index[a.Name] = i
	}
	return nil
}

func (e *EntityDescription) clone() *EntityDescription {
	cp := &EntityDescription{Name: e.Name, Table: e.Table}
	cp.Attributes = make([]AttributeDescription, len(e.Attributes))
	copy(cp.Attributes, e.Attributes)
	return cp
}

func checkName(what, name string) error {
	if strings.TrimSpace(name) == "" {
		return types.InvalidArgument("%s name is empty", what)
	}
	if strings.HasPrefix(name, "_") {
		return types.InvalidArgument("%s name %q is reserved", what, name)
	}
	if strings.ContainsAny(name, "?`\"'") {
		return types.InvalidArgument("%s name %q contains a quote or placeholder", what, name)
	}
	return nil
}

// Model is the set of entity kinds a store knows about.
type Model struct {
	mu       sync.RWMutex
	entities map[string]*EntityDescription
	order    []string
}

type modelFile struct {
	Entities []*EntityDescription `yaml:"entities"`
}

// NewModel builds a model from code-defined entities.
func NewModel(entities ...*EntityDescription) (*Model, error) {
	m := &Model{entities: map[string]*EntityDescription{}}
	for _, e := range entities {
		if err := m.Register(e); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ParseModel reads a YAML model document:
//
//	entities:
//	  - name: Playlist
//	    attributes:
//	      - {name: name, kind: string}
//	      - {name: order, kind: int, default: 0}
func ParseModel(data []byte) (*Model, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse model: %w", types.ErrInvalidArgument, err)
	}
	return NewModel(file.Entities...)
}

// LoadModel reads a YAML model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model file: %w", types.ErrInvalidArgument, err)
	}
	return ParseModel(data)
}

// Register adds an entity kind. Registering a name twice is an error.
func (m *Model) Register(e *EntityDescription) error {
	if e == nil {
		return types.InvalidArgument("entity description is nil")
	}
	cp := e.clone()
	if err := cp.normalize(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entities[cp.Name]; exists {
		return types.InvalidArgument("entity %q is already registered", cp.Name)
	}
	m.entities[cp.Name] = cp
	m.order = append(m.order, cp.Name)
	return nil
}

func (m *Model) Entity(name string) (*EntityDescription, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[name]
	return e, ok
}

// Entities returns the registered entities in registration order.
func (m *Model) Entities() []*EntityDescription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*EntityDescription, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.entities[name])
	}
	return out
}

// Marshal renders the model in the format read by ParseModel.
func (m *Model) Marshal() ([]byte, error) {
	return yaml.Marshal(&modelFile{Entities: m.Entities()})
}
