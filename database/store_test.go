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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/types"
)

func playlistEntity() *EntityDescription {
	return NewEntity("Playlist",
		Attr("name", types.KindString),
		Attr("order", types.KindInt).WithDefault(0),
		OptionalAttr("note", types.KindString),
	)
}

func openTestStore(t *testing.T, entities ...*EntityDescription) *Coordinator {
	t.Helper()
	if len(entities) == 0 {
		entities = []*EntityDescription{playlistEntity()}
	}
	model, err := NewModel(entities...)
	require.NoError(t, err)
	c, err := Open(context.Background(), MemoryStore(), model)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// seed saves one Playlist per name, with order set to its position.
func seed(t *testing.T, c *Coordinator, names ...string) []*Record {
	t.Helper()
	wc := c.NewContext(types.PrivateQueue)
	recs := make([]*Record, 0, len(names))
	for i, name := range names {
		rec, err := wc.Insert("Playlist", map[string]interface{}{"name": name, "order": i})
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	require.NoError(t, wc.Save(context.Background()))
	return recs
}

func names(recs []*Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Value("name").(string))
	}
	return out
}

func fetchRequest(t *testing.T, opts ...types.FetchOption) *types.FetchRequest {
	t.Helper()
	req, err := types.NewFetchRequest("Playlist", opts...)
	require.NoError(t, err)
	return req
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts.UTC()
}
