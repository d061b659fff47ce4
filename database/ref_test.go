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
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/types"
)

func TestRefRoundTrip(t *testing.T) {
	c := openTestStore(t)
	rec := seed(t, c, "a")[0]

	id := rec.ID()
	assert.Equal(t, "x-datakit://"+c.StoreID()+"/Playlist/p"+"1", id)

	ref, err := c.DecodeRef(id)
	require.NoError(t, err)
	assert.Equal(t, rec.Ref(), ref)
	assert.Equal(t, id, c.EncodeRef(ref))
	assert.Equal(t, int64(1), ref.PK())
	assert.False(t, ref.IsTemporary())
}

func TestTemporaryRefRoundTrip(t *testing.T) {
	c := openTestStore(t)
	wc := c.NewContext(types.MainQueue)
	rec, err := wc.Insert("Playlist", map[string]interface{}{"name": "a"})
	require.NoError(t, err)
	require.True(t, rec.Ref().IsTemporary())

	ref, err := c.DecodeRef(rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec.Ref(), ref)

	got, err := wc.GetByID(context.Background(), rec.ID())
	require.NoError(t, err)
	assert.Same(t, rec, got)

	// other contexts never see the pending insert
	_, err = c.NewContext(types.PrivateQueue).Get(context.Background(), ref)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDecodeRefRejects(t *testing.T) {
	c := openTestStore(t)
	base := "x-datakit://" + c.StoreID()

	for _, id := range []string{
		"",
		"not-a-valid-uri",
		"http://" + c.StoreID() + "/Playlist/p1",
		"x-datakit://" + uuid.NewString() + "/Playlist/p1",
		base + "/Unknown/p1",
		base + "/Playlist/p0",
		base + "/Playlist/p-3",
		base + "/Playlist/px",
		base + "/Playlist/t1234",
		base + "/Playlist/q1",
		base + "/Playlist",
		base + "/Playlist/p1/extra",
		base + "/Playlist/p1?x=1",
		base + "/Playlist/p1#frag",
		"%zz",
	} {
		_, err := c.DecodeRef(id)
		assert.ErrorIs(t, err, types.ErrIDNotFound, id)
	}
}

func TestZeroRef(t *testing.T) {
	var ref Ref
	assert.True(t, ref.IsZero())
	assert.Equal(t, "", ref.String())
}

func TestStoreIDSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	model := func() *Model {
		m, err := NewModel(playlistEntity())
		require.NoError(t, err)
		return m
	}

	first, err := Open(ctx, FileStore(path), model())
	require.NoError(t, err)
	rec := seed(t, first, "kept")[0]
	id := rec.ID()
	require.NoError(t, first.Close())

	second, err := Open(ctx, FileStore(path), model())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.Equal(t, first.StoreID(), second.StoreID())
	got, err := second.NewContext(types.MainQueue).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Value("name"))
}
