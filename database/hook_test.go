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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/datakit/types"
)

func queryEvent(query string, err error) *bun.QueryEvent {
	return &bun.QueryEvent{Query: query, StartTime: time.Now().Add(-time.Millisecond), Err: err}
}

func TestQueryHookModes(t *testing.T) {
	cases := []struct {
		env     string
		event   *bun.QueryEvent
		printed bool
	}{
		{"0", queryEvent("SELECT 1", errors.New("boom")), false},
		{"1", queryEvent("SELECT 1", nil), false},
		{"1", queryEvent("SELECT 1", sql.ErrNoRows), false},
		{"1", queryEvent("UPDATE songs SET x = 1", errors.New("boom")), true},
		{"2", queryEvent("SELECT 1", nil), true},
	}
	for _, tc := range cases {
		t.Run(tc.env+" "+tc.event.Query, func(t *testing.T) {
			t.Setenv(QueryHookEnv, tc.env)
			var buf bytes.Buffer
			NewQueryHook(WithQueryHookWriter(&buf)).AfterQuery(context.Background(), tc.event)
			if tc.printed {
				assert.Contains(t, buf.String(), tc.event.Query)
				if tc.event.Err != nil {
					assert.Contains(t, buf.String(), tc.event.Err.Error())
				}
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestQueryHookSilent(t *testing.T) {
	t.Setenv(QueryHookEnv, "2")
	EnableSqlSilent(true)
	defer EnableSqlSilent(false)

	var buf bytes.Buffer
	NewQueryHook(WithQueryHookWriter(&buf)).AfterQuery(context.Background(), queryEvent("DELETE FROM songs", nil))
	assert.Empty(t, buf.String())
}

func TestQueryHookSilentContext(t *testing.T) {
	t.Setenv(QueryHookEnv, "2")
	var buf bytes.Buffer
	hook := NewQueryHook(WithQueryHookWriter(&buf))

	hook.AfterQuery(WithSqlSilent(context.Background()), queryEvent("SELECT 1", nil))
	assert.Empty(t, buf.String())
	hook.AfterQuery(context.Background(), queryEvent("SELECT 2", nil))
	assert.Contains(t, buf.String(), "SELECT 2")
}

func TestSchemaSyncDoesNotSilenceOtherQueries(t *testing.T) {
	t.Setenv(QueryHookEnv, "2")
	ctx := context.Background()
	c := openTestStore(t)
	var buf bytes.Buffer
	c.DB().AddQueryHook(NewQueryHook(WithQueryHookWriter(&buf)))

	require.NoError(t, c.EnsureEntity(ctx, NewEntity("Tag", Attr("label", types.KindString))))
	assert.NotContains(t, buf.String(), "CREATE TABLE")
	assert.False(t, sqlSilentMode.Load())

	_, err := c.DB().ExecContext(ctx, "SELECT 42")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SELECT 42")
}
