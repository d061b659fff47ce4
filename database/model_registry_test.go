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
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/types"
)

const playlistYAML = `
entities:
  - name: Playlist
    attributes:
      - {name: name, kind: string}
      - {name: order, kind: integer, default: 0}
      - {name: note, kind: string, optional: true}
  - name: Song
    table: songs
    attributes:
      - {name: title, kind: string}
      - {name: played, kind: datetime, optional: true}
`

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]byte(playlistYAML))
	require.NoError(t, err)

	entities := m.Entities()
	require.Len(t, entities, 2)
	assert.Equal(t, "Playlist", entities[0].Name)
	assert.Equal(t, "songs", entities[1].TableName())

	order, ok := entities[0].Attribute("order")
	require.True(t, ok)
	assert.Equal(t, types.KindInt, order.Kind)
	assert.Equal(t, int64(0), order.Default)

	kind, ok := entities[1].AttributeKind("played")
	assert.True(t, ok)
	assert.Equal(t, types.KindTime, kind)
	assert.Equal(t, []string{"title", "played"}, entities[1].AttributeNames())

	out, err := m.Marshal()
	require.NoError(t, err)
	again, err := ParseModel(out)
	require.NoError(t, err)
	assert.Len(t, again.Entities(), 2)
}

func TestModelRejectsInvalidEntities(t *testing.T) {
	tests := []struct {
		name     string
		entities []*EntityDescription
	}{
		{"empty name", []*EntityDescription{NewEntity(" ")}},
		{"reserved name", []*EntityDescription{NewEntity("_meta")}},
		{"reserved character", []*EntityDescription{NewEntity("a/b")}},
		{"reserved attribute", []*EntityDescription{NewEntity("A", Attr("_pk", types.KindInt))}},
		{"duplicate attribute", []*EntityDescription{NewEntity("A", Attr("x", types.KindInt), Attr("x", types.KindString))}},
		{"invalid kind", []*EntityDescription{NewEntity("A", Attr("x", types.KindInvalid))}},
		{"bad default", []*EntityDescription{NewEntity("A", Attr("x", types.KindInt).WithDefault("one"))}},
		{"duplicate entity", []*EntityDescription{NewEntity("A"), NewEntity("A")}},
		{"nil entity", []*EntityDescription{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.entities...)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(playlistYAML), 0o600))

	m, err := LoadModel(path)
	require.NoError(t, err)
	_, ok := m.Entity("Song")
	assert.True(t, ok)

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = ParseModel([]byte("entities: [{name: A, attributes: [{name: x, kind: money}]}]"))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestRegisterCopiesDescription(t *testing.T) {
	e := NewEntity("A", Attr("x", types.KindInt))
	m, err := NewModel(e)
	require.NoError(t, err)

	e.Attributes[0].Name = "y"
	registered, _ := m.Entity("A")
	_, ok := registered.Attribute("x")
	assert.True(t, ok)
}
