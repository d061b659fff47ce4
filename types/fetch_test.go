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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFetchRequest(t *testing.T) {
	req, err := NewFetchRequest("Person", Where(Eq("age", 3)), OrderBy(Asc("name"), Desc("age")), Page(2, 10))
	require.NoError(t, err)
	assert.Equal(t, "Person", req.Entity())
	assert.True(t, req.Paged())
	assert.Equal(t, 20, req.Offset())
	assert.Equal(t, 10, req.Limit())
	assert.Equal(t, []SortTerm{Asc("name"), Desc("age")}, req.Sort())
	assert.False(t, req.Empty())

	all := req.WithoutPage()
	assert.False(t, all.Paged())
	assert.True(t, req.Paged(), "WithoutPage must not change the original")
	assert.NotNil(t, all.Predicate())
}

func TestNewFetchRequestRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		opts   []FetchOption
	}{
		{"empty entity", " ", nil},
		{"negative page", "Person", []FetchOption{Page(-1, 10)}},
		{"negative page size", "Person", []FetchOption{Page(0, -1)}},
		{"empty sort key", "Person", []FetchOption{OrderBy(Asc(""))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetchRequest(tt.entity, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestFetchRequestEmptyPage(t *testing.T) {
	req, err := NewFetchRequest("Person", Page(3, 0))
	require.NoError(t, err)
	assert.True(t, req.Empty())
}

func TestPagination(t *testing.T) {
	p := NewDefaultPagination[int](0, 10)
	assert.NotNil(t, p.Items)
	p.Total = 25
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasNext())
	p.Page = 2
	assert.False(t, p.HasNext())
	assert.Equal(t, 0, NewDefaultPagination[int](0, 0).TotalPages())
}
