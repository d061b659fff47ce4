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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/types"
)

const testModel = `
entities:
  - name: Playlist
    attributes:
      - {name: name, kind: string}
      - {name: order, kind: int, default: 0}
      - {name: note, kind: string, optional: true}
`

type fixture struct {
	dir   string
	db    string
	model string
}

// newFixture writes a model file and a sqlite store holding playlists a, b
// and c with order 0, 1 and 2.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{dir: dir, db: filepath.Join(dir, "store.db"), model: filepath.Join(dir, "model.yaml")}
	require.NoError(t, os.WriteFile(f.model, []byte(testModel), 0o600))

	model, err := database.LoadModel(f.model)
	require.NoError(t, err)
	ctx := context.Background()
	c, err := database.Open(ctx, database.FileStore(f.db), model)
	require.NoError(t, err)
	wc := c.NewContext(types.MainQueue)
	for i, name := range []string{"a", "b", "c"} {
		_, err := wc.Insert("Playlist", map[string]interface{}{"name": name, "order": i})
		require.NoError(t, err)
	}
	require.NoError(t, wc.Save(ctx))
	require.NoError(t, c.Close())
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (*CLIResponse, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", f.db, "--model", f.model}, args...))
	err := cmd.Execute()

	var resp CLIResponse
	if jsonErr := json.Unmarshal(out.Bytes(), &resp); jsonErr != nil {
		return nil, out.String(), err
	}
	return &resp, out.String(), err
}

func recordsOf(t *testing.T, resp *CLIResponse) []map[string]interface{} {
	t.Helper()
	require.NotNil(t, resp)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is an object")
	raw, ok := data["records"].([]interface{})
	require.True(t, ok, "records is a list")
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]interface{}))
	}
	return out
}

func TestEntitiesCommand(t *testing.T) {
	f := newFixture(t)
	resp, _, err := f.run(t, "entities")
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)

	list, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	entity := list[0].(map[string]interface{})
	assert.Equal(t, "Playlist", entity["name"])
	assert.Equal(t, float64(3), entity["records"])
}

func TestCountCommand(t *testing.T) {
	f := newFixture(t)

	resp, _, err := f.run(t, "count", "Playlist")
	require.NoError(t, err)
	assert.Equal(t, float64(3), resp.Data)

	resp, _, err = f.run(t, "count", "Playlist", "--where", "order=1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.Data)

	resp, _, err = f.run(t, "count", "Playlist", "--contains", "name=B", "--null", "note")
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.Data)

	resp, _, err = f.run(t, "count", "Playlist", "--where", "order=first")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp)
	assert.Equal(t, "invalid_argument", resp.Error.Code)
}

func TestFindCommand(t *testing.T) {
	f := newFixture(t)

	resp, _, err := f.run(t, "find", "Playlist", "--sort", "order:desc")
	require.NoError(t, err)
	recs := recordsOf(t, resp)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0]["name"])
	assert.Equal(t, "a", recs[2]["name"])
	assert.Contains(t, recs[0][database.ObjectIDKey], "x-datakit://")

	resp, _, err = f.run(t, "find", "Playlist", "--sort", "order", "--page", "1", "--page-size", "2")
	require.NoError(t, err)
	recs = recordsOf(t, resp)
	require.Len(t, recs, 1)
	assert.Equal(t, "c", recs[0]["name"])
	assert.Equal(t, float64(3), resp.Data.(map[string]interface{})["total"])

	_, _, err = f.run(t, "find", "Playlist", "--sort", "order:sideways")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, text, err := f.run(t, "--format", "text", "find", "Playlist", "--where", "name=a")
	require.NoError(t, err)
	assert.Contains(t, text, "name=a")
	assert.Contains(t, text, "order=0")
}

func TestGetAndDeleteCommands(t *testing.T) {
	f := newFixture(t)
	resp, _, err := f.run(t, "find", "Playlist", "--where", "name=b")
	require.NoError(t, err)
	id := recordsOf(t, resp)[0][database.ObjectIDKey].(string)

	resp, _, err = f.run(t, "get", id)
	require.NoError(t, err)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].(map[string]interface{})["name"])

	resp, _, err = f.run(t, "delete", id)
	require.NoError(t, err)
	assert.Equal(t, float64(1), resp.Data.(map[string]interface{})["deleted"])

	resp, _, err = f.run(t, "get", id)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "not_found", resp.Error.Code)

	resp, _, err = f.run(t, "get", "not-a-valid-uri")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "id_not_found", resp.Error.Code)
}

func TestTruncateCommand(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.run(t, "truncate", "Playlist")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _, err := f.run(t, "truncate", "Playlist", "--yes")
	require.NoError(t, err)
	assert.Equal(t, float64(3), resp.Data.(map[string]interface{})["deleted"])

	resp, _, err = f.run(t, "count", "Playlist")
	require.NoError(t, err)
	assert.Equal(t, float64(0), resp.Data)
}

func TestStatusCommand(t *testing.T) {
	f := newFixture(t)
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", f.db, "status"})
	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "sqlite", data["type"])
	health := data["health"].(map[string]interface{})
	assert.Equal(t, true, health["healthy"])
	assert.NotEmpty(t, health["store_id"])
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.run(t, "--format", "yaml", "count", "Playlist")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _, err := f.run(t, "count", "Song")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "invalid_argument", resp.Error.Code)

	_, _, err = f.run(t, "count")
	assert.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", f.db, "find", "Playlist"})
	assert.Equal(t, ExitCommandError, GetExitCode(cmd.Execute()), "find needs a model")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datakit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  type: sqlite
  dbname: from-file.db
  slow_query_time: 5s
model:
  file: model.yaml
`), 0o600))

	cfg, err := LoadConfig(&RootOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.ConnectionConfig.Type)
	assert.Equal(t, "from-file.db", cfg.ConnectionConfig.DBName)
	assert.Equal(t, "model.yaml", cfg.ModelConfig.File)
	assert.Equal(t, 5e9, float64(cfg.ConnectionConfig.SlowQueryTime))
	assert.Equal(t, 100, cfg.ConnectionConfig.MaxOpenConns, "defaults survive")

	t.Setenv("DATAKIT_DATABASE_DBNAME", "from-env.db")
	cfg, err = LoadConfig(&RootOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.ConnectionConfig.DBName)

	cfg, err = LoadConfig(&RootOptions{ConfigFile: path, DB: "from-flag.db", DBType: "sqlite3", Model: "other.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag.db", cfg.ConnectionConfig.DBName)
	assert.Equal(t, "sqlite3", cfg.ConnectionConfig.Type)
	assert.Equal(t, "other.yaml", cfg.ModelConfig.File)

	_, err = LoadConfig(&RootOptions{ConfigFile: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}
