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
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeKindNormalize(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		kind AttributeKind
		in   interface{}
		want interface{}
	}{
		{KindString, "x", "x"},
		{KindString, []byte("x"), "x"},
		{KindInt, 7, int64(7)},
		{KindInt, "42", int64(42)},
		{KindInt, float64(3), int64(3)},
		{KindInt, float64(math.MinInt64), int64(math.MinInt64)},
		{KindFloat, 2, float64(2)},
		{KindFloat, "1.5", 1.5},
		{KindBool, int64(1), true},
		{KindBool, "false", false},
		{KindTime, ts.Format(TimeLayout), ts},
		{KindTime, ts.In(time.FixedZone("x", 3600)), ts},
		{KindBytes, "ab", []byte("ab")},
		{KindJSON, `{"a":1}`, JsonObject{"a": float64(1)}},
		{KindJSON, map[string]interface{}{"b": "c"}, JsonObject{"b": "c"}},
		{KindInt, nil, nil},
	}
	for _, tt := range tests {
		got, err := tt.kind.Normalize(tt.in)
		require.NoError(t, err, "%s %v", tt.kind, tt.in)
		assert.Equal(t, tt.want, got, "%s %v", tt.kind, tt.in)
	}
}

func TestAttributeKindNormalizeRejects(t *testing.T) {
	for _, tt := range []struct {
		kind AttributeKind
		in   interface{}
	}{
		{KindInt, 1.5},
		{KindInt, 1e300},
		{KindInt, -1e300},
		{KindInt, float64(math.MaxInt64)},
		{KindInt, math.Inf(1)},
		{KindInt, math.NaN()},
		{KindInt, "abc"},
		{KindString, 3},
		{KindBool, "maybe"},
		{KindTime, "yesterday"},
		{KindJSON, "[1,2]"},
		{KindInvalid, "x"},
	} {
		_, err := tt.kind.Normalize(tt.in)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "%s %v", tt.kind, tt.in)
	}
}

func TestParseAttributeKind(t *testing.T) {
	k, err := ParseAttributeKind(" Time ")
	require.NoError(t, err)
	assert.Equal(t, KindTime, k)

	_, err = ParseAttributeKind("decimal")
	assert.Error(t, err)
}

func TestStoreErrorKinds(t *testing.T) {
	err := NewStoreError(StoreErrorConflict, "save", nil)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrConstraint)
	assert.Contains(t, err.Error(), "conflict")
}
