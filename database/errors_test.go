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
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/tomoncle/datakit/types"
)

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"no rows", fmt.Errorf("lookup: %w", sql.ErrNoRows), true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql missing table", &mysql.MySQLError{Number: 1146}, true, NoTableErr},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true, SerializationErr},
		{"mysql other", &mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{"pq not null", &pq.Error{Code: "23502"}, true, NotNullViolationErr},
		{"pq serialization", &pq.Error{Code: "40001"}, true, SerializationErr},
		{"pq bad cast", &pq.Error{Code: "22P02"}, true, InvalidTypeCastErr},
		{"sqlite unique", errors.New("UNIQUE constraint failed: songs.title"), true, DuplicateKeyErr},
		{"sqlite missing column", errors.New("no such column: rating"), true, NoColumnErr},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true, SerializationErr},
		{"not sql", errors.New("disk on fire"), false, UnknownErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, kind := IsSqlError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.kind, kind, kind.String())
		})
	}
}

func TestStoreErrorKinds(t *testing.T) {
	assert.NoError(t, storeError("save", nil))

	err := storeError("save", &mysql.MySQLError{Number: 1062})
	assert.ErrorIs(t, err, types.ErrConstraint)
	assert.ErrorIs(t, err, types.ErrStore)

	err = storeError("save", &pq.Error{Code: "40P01"})
	assert.ErrorIs(t, err, types.ErrConflict)

	err = storeError("fetch", errors.New("connection reset by peer"))
	assert.ErrorIs(t, err, types.ErrIO)

	// already classified errors pass through
	nf := fmt.Errorf("%w: record", types.ErrNotFound)
	assert.Same(t, nf, storeError("fetch", nf))
	conflict := types.NewStoreError(types.StoreErrorConflict, "save", nil)
	assert.Same(t, conflict, storeError("commit", conflict))
}
