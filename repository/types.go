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

package repository

import (
	"context"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/types"
)

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	// Insert creates a record from attrs. Keys left out take the attribute
	// default, nil values are stored as null.
	Insert(ctx context.Context, attrs map[string]interface{}) (*T, error)

	// InsertModel creates a record from the mapped fields of model.
	InsertModel(ctx context.Context, model *T) (*T, error)

	// Update changes the record model was read from. A nil value clears the
	// attribute, keys left out are untouched.
	Update(ctx context.Context, model *T, attrs map[string]interface{}) (*T, error)

	UpdateRef(ctx context.Context, ref database.Ref, attrs map[string]interface{}) (*T, error)

	UpdateByID(ctx context.Context, id string, attrs map[string]interface{}) (*T, error)

	Fetch(ctx context.Context, ref database.Ref) (*T, error)

	FetchByID(ctx context.Context, id string) (*T, error)

	Delete(ctx context.Context, model *T) error

	DeleteRef(ctx context.Context, ref database.Ref) error

	DeleteByID(ctx context.Context, id string) error

	// Truncate deletes every record of the entity and returns how many
	// were deleted.
	Truncate(ctx context.Context) (int, error)
}

// QueryRepository defines filtered, sorted and paged reads.
type QueryRepository[T any] interface {
	Find(ctx context.Context, opts ...types.FetchOption) ([]*T, error)

	// FindOne returns the first record whose key equals value, ignoring case
	// for strings. Without a sort the choice among several matches is
	// unspecified.
	FindOne(ctx context.Context, key string, value interface{}) (*T, bool, error)

	Count(ctx context.Context, predicate types.Predicate) (int, error)

	Page(ctx context.Context, page, pageSize int, opts ...types.FetchOption) (*types.Pagination[T], error)
}

// TransactionRepository passes unit-of-work control through to the context.
type TransactionRepository[T any] interface {
	Commit(ctx context.Context) error
	Rollback()
	Reset()
	HasChanges() bool
	Autocommit() bool
}

// Repository combines CRUD, query and transaction operations for one entity.
type Repository[T any] interface {
	CrudRepository[T]
	QueryRepository[T]
	TransactionRepository[T]
	EntityName() string
	Schema() *Schema[T]
	Context() *database.Context
	// RunExclusive runs fn with the context held. The repository passed to
	// fn must not be used after fn returns.
	RunExclusive(fn func(Repository[T]) error) error
}

// RawRepository is the untyped repository for callers that know the entity
// only by name at runtime.
type RawRepository interface {
	CrudRepository[database.Record]
	QueryRepository[database.Record]
	TransactionRepository[database.Record]
	EntityName() string
	Context() *database.Context
	RunExclusive(fn func(RawRepository) error) error
}
