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

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// QueueAffinity selects the queue a working context dispatches onto.
type QueueAffinity int

const (
	// MainQueue contexts share the coordinator's serial queue.
	MainQueue QueueAffinity = iota
	// PrivateQueue contexts own a serial queue of their own.
	PrivateQueue
)

var _ BaseEnum = MainQueue

func (q QueueAffinity) IsValid() bool { return q == MainQueue || q == PrivateQueue }

func (q QueueAffinity) Number() int {
	if !q.IsValid() {
		return IllegalValue
	}
	return int(q)
}

func (q QueueAffinity) String() string { return q.Name() }

func (q QueueAffinity) Name() string {
	switch q {
	case MainQueue:
		return "main"
	case PrivateQueue:
		return "private"
	default:
		return IllegalName
	}
}

func (q QueueAffinity) Desc() string {
	switch q {
	case MainQueue:
		return "serial queue shared by every main context of a coordinator"
	case PrivateQueue:
		return "serial queue owned by a single context"
	default:
		return IllegalDesc
	}
}

// ContextState is the lifecycle state of a working context.
type ContextState int

const (
	StateClean ContextState = iota
	StateDirty
	StateReset
)

var _ BaseEnum = StateClean

func (s ContextState) IsValid() bool { return s >= StateClean && s <= StateReset }

func (s ContextState) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s ContextState) String() string { return s.Name() }

func (s ContextState) Name() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateReset:
		return "reset"
	default:
		return IllegalName
	}
}

func (s ContextState) Desc() string {
	switch s {
	case StateClean:
		return "no pending changes"
	case StateDirty:
		return "pending inserts, updates or deletes"
	case StateReset:
		return "pending changes discarded and cache evicted"
	default:
		return IllegalDesc
	}
}
