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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/types"
)

func TestContextChangeEvents(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	wc := c.NewContext(types.MainQueue)

	var kinds []ChangeKind
	cancel := wc.Subscribe(func(e ChangeEvent) {
		assert.Equal(t, wc.ID(), e.ContextID)
		// observers run after the context is released
		_ = wc.HasChanges()
		kinds = append(kinds, e.Kind)
	})

	rec, err := wc.Insert("Playlist", map[string]interface{}{"name": "a"})
	require.NoError(t, err)
	require.NoError(t, wc.Save(ctx))
	_, err = wc.Update(ctx, rec, map[string]interface{}{"name": "b"})
	require.NoError(t, err)
	require.NoError(t, wc.Delete(ctx, rec))
	wc.Rollback()
	wc.Reset()

	assert.Equal(t, []ChangeKind{
		ChangeInserted, ChangeSaved, ChangeUpdated, ChangeDeleted, ChangeRolledBack, ChangeReset,
	}, kinds)

	cancel()
	cancel()
	_, err = wc.Insert("Playlist", map[string]interface{}{"name": "c"})
	require.NoError(t, err)
	assert.Len(t, kinds, 6)
}

func TestCoordinatorSaveEvents(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	saved := seed(t, c, "a", "b")

	var events []SaveEvent
	cancel := c.Subscribe(func(e SaveEvent) { events = append(events, e) })
	defer cancel()

	wc := c.NewContext(types.PrivateQueue)
	inserted, err := wc.Insert("Playlist", map[string]interface{}{"name": "c"})
	require.NoError(t, err)
	_, err = wc.UpdateRef(ctx, saved[0].Ref(), map[string]interface{}{"name": "A"})
	require.NoError(t, err)
	require.NoError(t, wc.DeleteRef(ctx, saved[1].Ref()))
	require.NoError(t, wc.Save(ctx))

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, wc.ID(), e.ContextID)
	assert.Equal(t, []Ref{inserted.Ref()}, e.Inserted)
	assert.False(t, e.Inserted[0].IsTemporary())
	assert.Equal(t, []Ref{saved[0].Ref()}, e.Updated)
	assert.Equal(t, []Ref{saved[1].Ref()}, e.Deleted)

	// saving nothing publishes nothing
	require.NoError(t, wc.Save(ctx))
	assert.Len(t, events, 1)
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "rolled back", ChangeRolledBack.String())
	assert.Equal(t, "unknown", ChangeKind(99).String())
}
