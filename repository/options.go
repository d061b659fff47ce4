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

type options struct {
	autocommit bool
	entityName string
}

func newOptions(opts []Option) *options {
	o := &options{autocommit: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a repository at construction.
type Option func(*options)

// WithAutocommit controls whether every mutating call saves the context
// right away. It defaults to true.
func WithAutocommit(on bool) Option {
	return func(o *options) { o.autocommit = on }
}

// WithEntityName overrides the entity name derived from the record type.
func WithEntityName(name string) Option {
	return func(o *options) { o.entityName = name }
}
