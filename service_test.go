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

package datakit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/repository"
	"github.com/tomoncle/datakit/types"
)

type Song struct {
	Title string
	Plays int64
	Ref   database.Ref
}

func songSchema() *repository.Schema[Song] {
	return repository.NewSchema(
		repository.Attr("title", func(s *Song) *string { return &s.Title }),
		repository.Attr("plays", func(s *Song) *int64 { return &s.Plays }),
	).WithRef(func(s *Song) *database.Ref { return &s.Ref })
}

func initMemoryStore(t *testing.T) *database.Coordinator {
	t.Helper()
	c, err := database.InitDBWithModel(context.Background(), &database.Config{ConnectionConfig: *database.MemoryStore()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
	return c
}

func TestServiceWithoutDatabase(t *testing.T) {
	require.NoError(t, database.CloseDB())
	svc := NewService(songSchema())

	_, err := svc.Count(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrStore)

	initMemoryStore(t)
	n, err := svc.Count(context.Background(), nil)
	require.NoError(t, err, "the service recovers once the database is initialized")
	assert.Equal(t, 0, n)
}

func TestService(t *testing.T) {
	ctx := context.Background()
	initMemoryStore(t)
	svc := NewService(songSchema())

	a, err := svc.Create(ctx, map[string]interface{}{"title": "Blue", "plays": 3})
	require.NoError(t, err)
	b, err := svc.Save(ctx, &Song{Title: "Green", Plays: 7})
	require.NoError(t, err)

	got, err := svc.Get(ctx, a.Ref.String())
	require.NoError(t, err)
	assert.Equal(t, "Blue", got.Title)

	got, err = svc.Update(ctx, b.Ref.String(), map[string]interface{}{"plays": 8})
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Plays)

	one, found, err := svc.FindOne(ctx, "title", "green")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(8), one.Plays)

	n, err := svc.Count(ctx, types.Gt("plays", 5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := svc.Page(ctx, 0, 1, types.OrderBy(types.Desc("plays")))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Green", page.Items[0].Title)

	songs, err := svc.Find(ctx, types.OrderBy(types.Asc("title")))
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "Blue", songs[0].Title)

	require.NoError(t, svc.Delete(ctx, a.Ref.String()))
	_, err = svc.Get(ctx, a.Ref.String())
	assert.ErrorIs(t, err, types.ErrNotFound)

	removed, err := svc.Truncate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	repo, err := svc.Repository(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Song", repo.EntityName())
}

func TestServiceFollowsReinitializedDatabase(t *testing.T) {
	ctx := context.Background()
	first := initMemoryStore(t)
	svc := NewService(songSchema())
	_, err := svc.Create(ctx, map[string]interface{}{"title": "Old", "plays": 1})
	require.NoError(t, err)

	second := initMemoryStore(t)
	require.NotEqual(t, first.StoreID(), second.StoreID())

	n, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	repo, err := svc.Repository(ctx)
	require.NoError(t, err)
	assert.Same(t, second, repo.Context().Coordinator())
}

func TestServiceCallsDoNotSharePendingChanges(t *testing.T) {
	ctx := context.Background()
	initMemoryStore(t)
	svc := NewService(songSchema(), repository.WithAutocommit(false))

	mine, err := svc.Repository(ctx)
	require.NoError(t, err)
	assert.False(t, mine.Autocommit())
	_, err = mine.Insert(ctx, map[string]interface{}{"title": "Draft", "plays": 0})
	require.NoError(t, err)
	require.True(t, mine.HasChanges())

	other, err := svc.Repository(ctx)
	require.NoError(t, err)
	assert.NotSame(t, mine.Context(), other.Context())
	assert.False(t, other.HasChanges())

	n, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "pending changes stay with their repository")

	_, err = svc.Create(ctx, map[string]interface{}{"title": "Live", "plays": 1})
	require.NoError(t, err)
	n, err = svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "service calls save before returning")
	assert.True(t, mine.HasChanges())

	require.NoError(t, mine.Commit(ctx))
	n, err = svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
