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
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MetadataTable keeps per-store settings such as the store identifier.
const MetadataTable = "_datakit_metadata"

const storeIDKey = "store_id"

// MigrationManager prepares a store for use: the metadata table, the store
// identifier and one table per registered entity.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
}

func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, logger: logger}
}

// Prepare creates what is missing and returns the store identifier.
func (mm *MigrationManager) Prepare(ctx context.Context, model *Model) (string, error) {
	if mm.db == nil {
		return "", fmt.Errorf("database not initialized")
	}
	ctx = ddlContext(ctx)
	storeID, err := mm.ensureStoreID(ctx)
	if err != nil {
		return "", err
	}
	if model != nil {
		for _, e := range model.Entities() {
			if err := mm.SyncEntity(ctx, e); err != nil {
				return "", err
			}
		}
	}
	mm.logger.Debug("Store schema ready", "store_id", storeID)
	return storeID, nil
}

// ddlContext keeps DDL out of the SQL log unless DATAKIT_SQL_MIGRATION is set.
func ddlContext(ctx context.Context) context.Context {
	if _, ok := os.LookupEnv("DATAKIT_SQL_MIGRATION"); ok {
		return ctx
	}
	return WithSqlSilent(ctx)
}

// SyncEntity creates or extends the table of one entity.
func (mm *MigrationManager) SyncEntity(ctx context.Context, e *EntityDescription) error {
	if err := syncEntity(ddlContext(ctx), mm.db, mm.logger, e); err != nil {
		return storeError("sync schema", err)
	}
	return nil
}

func (mm *MigrationManager) ensureStoreID(ctx context.Context) (string, error) {
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(64) NOT NULL PRIMARY KEY, %s TEXT)",
		quoteIdent(mm.db, MetadataTable), quoteIdent(mm.db, "meta_key"), quoteIdent(mm.db, "meta_value"))
	if _, err := mm.db.ExecContext(ctx, create); err != nil {
		return "", storeError("create metadata table", err)
	}

	var storeID string
	err := mm.db.NewSelect().
		TableExpr("?", bun.Ident(MetadataTable)).
		ColumnExpr("?", bun.Ident("meta_value")).
		Where("? = ?", bun.Ident("meta_key"), storeIDKey).
		Scan(ctx, &storeID)
	switch {
	case err == nil:
		if _, parseErr := uuid.Parse(storeID); parseErr != nil {
			return "", storeError("read store id", fmt.Errorf("malformed store id %q", storeID))
		}
		return storeID, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", storeError("read store id", err)
	}

	storeID = uuid.NewString()
	if _, err := mm.db.ExecContext(ctx, "INSERT INTO ? (?, ?) VALUES (?, ?)",
		bun.Ident(MetadataTable), bun.Ident("meta_key"), bun.Ident("meta_value"), storeIDKey, storeID); err != nil {
		return "", storeError("write store id", err)
	}
	mm.logger.Info("Assigned store identifier", "store_id", storeID)
	return storeID, nil
}
