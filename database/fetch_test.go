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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/datakit/types"
)

func TestFetchSortAndPage(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	all := make([]string, 10)
	for i := range all {
		all[i] = fmt.Sprintf("n%02d", i)
	}
	seed(t, c, all...)

	wc := c.NewContext(types.MainQueue)
	recs, err := wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Desc("order")), types.Page(1, 3)))
	require.NoError(t, err)
	assert.Equal(t, []string{"n06", "n05", "n04"}, names(recs))

	recs, err = wc.Fetch(ctx, fetchRequest(t, types.Page(3, 3)))
	require.NoError(t, err)
	assert.Equal(t, []string{"n09"}, names(recs), "default order follows insertion")

	recs, err = wc.Fetch(ctx, fetchRequest(t, types.Page(0, 0)))
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	recs, err = wc.Fetch(ctx, fetchRequest(t, types.Page(100, 10)))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFetchMergesPendingChanges(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	saved := seed(t, c, "a", "b", "c")

	wc := c.NewContext(types.MainQueue)
	_, err := wc.UpdateRef(ctx, saved[2].Ref(), map[string]interface{}{"order": -1})
	require.NoError(t, err)
	_, err = wc.Insert("Playlist", map[string]interface{}{"name": "d", "order": 5})
	require.NoError(t, err)
	require.NoError(t, wc.DeleteRef(ctx, saved[0].Ref()))

	recs, err := wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Asc("order"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "d"}, names(recs))

	n, err := wc.Count(ctx, fetchRequest(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err = wc.Fetch(ctx, fetchRequest(t, types.Where(types.Contains("name", "D"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, names(recs))

	recs, err = wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Asc("order")), types.Page(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names(recs))

	n, err = c.NewContext(types.PrivateQueue).Count(ctx, fetchRequest(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "other contexts only see saved records")
}

func TestFetchNullsSortFirst(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	wc := c.NewContext(types.MainQueue)
	for _, attrs := range []map[string]interface{}{
		{"name": "x"},
		{"name": "y", "note": "b"},
		{"name": "z", "note": "a"},
	} {
		_, err := wc.Insert("Playlist", attrs)
		require.NoError(t, err)
	}
	require.NoError(t, wc.Save(ctx))

	recs, err := wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Asc("note"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z", "y"}, names(recs))

	recs, err = wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Desc("note"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z", "x"}, names(recs))

	_, err = wc.Insert("Playlist", map[string]interface{}{"name": "w"})
	require.NoError(t, err)
	recs, err = wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Asc("note"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "w", "z", "y"}, names(recs), "pending inserts sort after saved ties")
}

func TestFetchRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	wc := c.NewContext(types.MainQueue)

	_, err := wc.Fetch(ctx, fetchRequest(t, types.OrderBy(types.Asc("missing"))))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = wc.Fetch(ctx, fetchRequest(t, types.Where(types.Eq("missing", 1))))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = wc.Count(ctx, fetchRequest(t, types.Where(types.Contains("order", "1"))))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	req, err := types.NewFetchRequest("Unknown")
	require.NoError(t, err)
	_, err = wc.Fetch(ctx, req)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = wc.Fetch(ctx, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

// Predicates must select the same records whether they run as SQL or
// against the records held in memory.
func TestPredicatesAgreeInSQLAndMemory(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	wc := c.NewContext(types.MainQueue)
	var first *Record
	for i := 0; i < 10; i++ {
		attrs := map[string]interface{}{"name": fmt.Sprintf("N%02d", i), "order": i}
		if i%2 == 0 {
			attrs["note"] = "x"
		}
		rec, err := wc.Insert("Playlist", attrs)
		require.NoError(t, err)
		if first == nil {
			first = rec
		}
	}
	require.NoError(t, wc.Save(ctx))

	preds := map[string]types.Predicate{
		"eq":          types.Eq("order", 3),
		"gt":          types.Gt("order", 5),
		"le":          types.Le("order", "2"),
		"in":          types.In("order", 1, 2, 42),
		"contains":    types.Contains("name", "n0"),
		"begins with": types.BeginsWith("name", "n1"),
		"ends with":   types.EndsWith("name", "7"),
		"equal fold":  types.EqualFold("name", "n03"),
		"is null":     types.IsNull("note"),
		"not null":    types.NotNull("note"),
		"eq nil":      types.Eq("note", nil),
		"not":         types.Not(types.Eq("note", "x")),
		"or":          types.Or(types.Eq("order", 1), types.Eq("note", "x")),
		"and":         types.And(types.Ge("order", 4), types.IsNull("note")),
	}
	for name, pred := range preds {
		t.Run(name, func(t *testing.T) {
			clean := c.NewContext(types.PrivateQueue)
			want, err := clean.Fetch(ctx, fetchRequest(t, types.Where(pred)))
			require.NoError(t, err)

			// a pending update that keeps every value forces the in-memory path
			dirty := c.NewContext(types.PrivateQueue)
			_, err = dirty.UpdateRef(ctx, first.Ref(), map[string]interface{}{"name": "N00"})
			require.NoError(t, err)
			require.True(t, dirty.HasChanges())
			got, err := dirty.Fetch(ctx, fetchRequest(t, types.Where(pred)))
			require.NoError(t, err)

			assert.Equal(t, names(want), names(got))
		})
	}
}

func TestTextPredicatesFoldNonASCII(t *testing.T) {
	ctx := context.Background()
	c := openTestStore(t)
	seed(t, c, "Ärger", "Öltank", "plain")

	preds := map[string]types.Predicate{
		"equal fold":  types.EqualFold("name", "äRGER"),
		"contains":    types.Contains("name", "LTA"),
		"begins with": types.BeginsWith("name", "öl"),
		"not":         types.Not(types.EqualFold("name", "ÄRGER")),
	}
	want := map[string][]string{
		"equal fold":  {"Ärger"},
		"contains":    {"Öltank"},
		"begins with": {"Öltank"},
		"not":         {"Öltank", "plain"},
	}
	for name, pred := range preds {
		t.Run(name, func(t *testing.T) {
			clean := c.NewContext(types.PrivateQueue)
			got, err := clean.Fetch(ctx, fetchRequest(t, types.Where(pred)))
			require.NoError(t, err)
			assert.Equal(t, want[name], names(got))
			n, err := clean.Count(ctx, fetchRequest(t, types.Where(pred)))
			require.NoError(t, err)
			assert.Equal(t, len(want[name]), n)

			// the same value still pending matches the same way
			dirty := c.NewContext(types.PrivateQueue)
			_, err = dirty.Insert("Playlist", map[string]interface{}{"name": "Ärger", "order": 9})
			require.NoError(t, err)
			got, err = dirty.Fetch(ctx, fetchRequest(t, types.Where(types.EqualFold("name", "ärger"))))
			require.NoError(t, err)
			assert.Equal(t, []string{"Ärger", "Ärger"}, names(got))
		})
	}
}
