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
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/tomoncle/datakit/types"
)

// columnSpec is the DDL view of one column.
type columnSpec struct {
	Name       string
	Type       string
	NotNull    bool
	Default    interface{}
	HasDefault bool
}

func quoteIdent(db bun.IDB, s string) string {
	if db.Dialect().Name() == dialect.MySQL {
		return "`" + strings.ReplaceAll(s, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func pkColumnSQL(db bun.IDB) string {
	name := quoteIdent(db, PKColumn)
	switch db.Dialect().Name() {
	case dialect.PG:
		return name + " BIGSERIAL PRIMARY KEY"
	case dialect.MySQL:
		return name + " BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	default:
		return name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func versionColumnSQL(db bun.IDB) string {
	return quoteIdent(db, VersionColumn) + " BIGINT NOT NULL DEFAULT 1"
}

func inferSQLType(name dialect.Name, kind types.AttributeKind) string {
	switch kind {
	case types.KindInt:
		if name == dialect.SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case types.KindFloat:
		switch name {
		case dialect.PG:
			return "DOUBLE PRECISION"
		case dialect.MySQL:
			return "DOUBLE"
		default:
			return "REAL"
		}
	case types.KindBool:
		if name == dialect.MySQL {
			return "TINYINT(1)"
		}
		return "BOOLEAN"
	case types.KindTime:
		if name == dialect.MySQL {
			return "VARCHAR(64)"
		}
		return "TEXT"
	case types.KindBytes:
		switch name {
		case dialect.PG:
			return "BYTEA"
		case dialect.MySQL:
			return "LONGBLOB"
		default:
			return "BLOB"
		}
	case types.KindJSON:
		if name == dialect.MySQL {
			return "LONGTEXT"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

func desiredColumns(db bun.IDB, e *EntityDescription) ([]columnSpec, error) {
	cols := make([]columnSpec, 0, len(e.Attributes))
	for _, a := range e.Attributes {
		col := columnSpec{
			Name:    a.Name,
			Type:    inferSQLType(db.Dialect().Name(), a.Kind),
			NotNull: !a.Optional,
		}
		if a.Default != nil {
			def, err := a.Kind.Encode(a.Default)
			if err != nil {
				return nil, err
			}
			col.Default, col.HasDefault = def, true
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func buildCreateTableSQL(db bun.IDB, table string, cols []columnSpec) string {
	defs := []string{pkColumnSQL(db), versionColumnSQL(db)}
	for _, c := range cols {
		def := quoteIdent(db, c.Name) + " " + c.Type
		if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(db, table), strings.Join(defs, ", "))
}

// buildAddColumnSQL adds c to an existing table. Existing rows have no value
// for the new column, so NOT NULL is only enforced when a default exists.
func buildAddColumnSQL(db bun.IDB, table string, c columnSpec) (string, []interface{}) {
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(db, table), quoteIdent(db, c.Name), c.Type)
	if !c.HasDefault {
		return query, nil
	}
	if c.NotNull {
		query += " NOT NULL"
	}
	return query + " DEFAULT ?", []interface{}{c.Default}
}

func listExistingColumns(ctx context.Context, db bun.IDB, table string) (map[string]struct{}, error) {
	var query string
	switch db.Dialect().Name() {
	case dialect.PG:
		query = "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?"
	case dialect.MySQL:
		query = "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
	default:
		query = "SELECT name FROM pragma_table_info(?)"
	}
	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	cols := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// syncEntity creates the entity table, or adds the columns it is missing.
// Columns are never dropped or modified.
func syncEntity(ctx context.Context, db bun.IDB, logger Logger, e *EntityDescription) error {
	table := e.TableName()
	cols, err := desiredColumns(db, e)
	if err != nil {
		return err
	}
	existing, err := listExistingColumns(ctx, db, table)
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	if len(existing) == 0 {
		if _, err := db.ExecContext(ctx, buildCreateTableSQL(db, table, cols)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
		logger.Info("Created entity table", "entity", e.Name, "table", table, "columns", len(cols))
		return nil
	}
	for _, required := range []string{PKColumn, VersionColumn} {
		if _, ok := existing[required]; !ok {
			return types.NewStoreError(types.StoreErrorIO, "sync schema",
				fmt.Errorf("table %s exists but has no %s column", table, required))
		}
	}
	for _, c := range cols {
		if _, ok := existing[c.Name]; ok {
			continue
		}
		query, args := buildAddColumnSQL(db, table, c)
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			if is, kind := IsSqlError(err); is && kind == ExistColumnErr {
				continue
			}
			return fmt.Errorf("failed to add column %s.%s: %w", table, c.Name, err)
		}
		logger.Info("Added entity column", "entity", e.Name, "table", table, "column", c.Name)
	}
	return nil
}
