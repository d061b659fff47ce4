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
	"fmt"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/repository"
	"github.com/tomoncle/datakit/types"
)

type Service[T any] interface {
	// Get returns a single entity by its durable id.
	Get(ctx context.Context, id string) (*T, error)

	// Find returns the entities matching the fetch options.
	Find(ctx context.Context, opts ...types.FetchOption) ([]*T, error)

	// FindOne returns the first entity whose key equals value.
	FindOne(ctx context.Context, key string, value interface{}) (*T, bool, error)

	// Count returns how many entities match predicate.
	Count(ctx context.Context, predicate types.Predicate) (int, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page, pageSize int, opts ...types.FetchOption) (*types.Pagination[T], error)

	// Create inserts an entity from an attribute map.
	Create(ctx context.Context, attrs map[string]interface{}) (*T, error)

	// Save inserts the mapped fields of model.
	Save(ctx context.Context, model *T) (*T, error)

	// Update modifies the entity behind id.
	Update(ctx context.Context, id string, attrs map[string]interface{}) (*T, error)

	// Delete removes the entity behind id.
	Delete(ctx context.Context, id string) error

	// Truncate removes every entity and returns how many were removed.
	Truncate(ctx context.Context) (int, error)

	// Repository returns a repository on a new context. Its pending changes
	// belong to the caller.
	Repository(ctx context.Context) (repository.Repository[T], error)
}

type baseServiceImpl[T any] struct {
	schema *repository.Schema[T]
	opts   []repository.Option
}

// NewService returns a default Service implementation over the global
// coordinator installed by database.InitDB. Every call works on its own
// main queue context and saves before returning, whatever autocommit
// option opts carry.
func NewService[T any](schema *repository.Schema[T], opts ...repository.Option) Service[T] {
	return &baseServiceImpl[T]{schema: schema, opts: opts}
}

// Repository returns a repository on a new context of the current global
// coordinator, configured with the service options. The caller owns it.
func (s *baseServiceImpl[T]) Repository(ctx context.Context) (repository.Repository[T], error) {
	return s.newRepository(ctx, s.opts...)
}

func (s *baseServiceImpl[T]) newRepository(ctx context.Context, opts ...repository.Option) (repository.Repository[T], error) {
	coordinator := database.GetCoordinator()
	if coordinator == nil {
		return nil, fmt.Errorf("%w: database not initialized", types.ErrStore)
	}
	return repository.NewRepository[T](ctx, coordinator.NewContext(types.MainQueue), s.schema, opts...)
}

// unit returns the autocommitting repository a single service call runs on.
func (s *baseServiceImpl[T]) unit(ctx context.Context) (repository.Repository[T], error) {
	opts := append(append([]repository.Option{}, s.opts...), repository.WithAutocommit(true))
	return s.newRepository(ctx, opts...)
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id string) (*T, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FetchByID(ctx, id)
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, opts ...types.FetchOption) ([]*T, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Find(ctx, opts...)
}

func (s *baseServiceImpl[T]) FindOne(ctx context.Context, key string, value interface{}) (*T, bool, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, false, err
	}
	return repo.FindOne(ctx, key, value)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, predicate types.Predicate) (int, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx, predicate)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page, pageSize int, opts ...types.FetchOption) (*types.Pagination[T], error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Page(ctx, page, pageSize, opts...)
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, attrs map[string]interface{}) (*T, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Insert(ctx, attrs)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model *T) (*T, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, err
	}
	return repo.InsertModel(ctx, model)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id string, attrs map[string]interface{}) (*T, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return nil, err
	}
	return repo.UpdateByID(ctx, id, attrs)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id string) error {
	repo, err := s.unit(ctx)
	if err != nil {
		return err
	}
	return repo.DeleteByID(ctx, id)
}

func (s *baseServiceImpl[T]) Truncate(ctx context.Context) (int, error) {
	repo, err := s.unit(ctx)
	if err != nil {
		return 0, err
	}
	return repo.Truncate(ctx)
}
