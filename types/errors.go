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
	"fmt"
)

var (
	// ErrIDNotFound is returned when a durable id does not decode to a
	// reference of the current store.
	ErrIDNotFound = errors.New("datakit: id not found")

	// ErrCannotCastRecord is returned when a stored record does not fit the
	// typed shape requested by the caller.
	ErrCannotCastRecord = errors.New("datakit: cannot cast record")

	// ErrInvalidArgument reports malformed request parameters.
	ErrInvalidArgument = errors.New("datakit: invalid argument")

	// ErrNotFound is returned when a valid reference points at a record that
	// no longer exists.
	ErrNotFound = errors.New("datakit: record not found")

	// ErrStore matches every *StoreError.
	ErrStore = errors.New("datakit: store error")

	ErrConstraint = errors.New("datakit: constraint violation")
	ErrConflict   = errors.New("datakit: save conflict")
	ErrIO         = errors.New("datakit: store i/o failure")
)

// StoreErrorKind classifies a failure reported by the underlying store.
type StoreErrorKind int

const (
	StoreErrorIO StoreErrorKind = iota
	StoreErrorConstraint
	StoreErrorConflict
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreErrorConstraint:
		return "constraint"
	case StoreErrorConflict:
		return "conflict"
	default:
		return "io"
	}
}

func (k StoreErrorKind) sentinel() error {
	switch k {
	case StoreErrorConstraint:
		return ErrConstraint
	case StoreErrorConflict:
		return ErrConflict
	default:
		return ErrIO
	}
}

// StoreError wraps a failure of the underlying store together with the
// operation that triggered it.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

// NewStoreError builds a StoreError. A nil err is replaced by the kind's
// sentinel so the error message is never empty.
func NewStoreError(kind StoreErrorKind, op string, err error) *StoreError {
	if err == nil {
		err = kind.sentinel()
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("datakit: %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStore or the sentinel of e's kind.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore || target == e.Kind.sentinel()
}

// InvalidArgument wraps ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
