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
	"sort"
	"sync"
)

type ChangeKind int

const (
	ChangeInserted ChangeKind = iota
	ChangeUpdated
	ChangeDeleted
	ChangeSaved
	ChangeRolledBack
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInserted:
		return "inserted"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	case ChangeSaved:
		return "saved"
	case ChangeRolledBack:
		return "rolled back"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ChangeEvent is delivered to the observers of one Context.
type ChangeEvent struct {
	ContextID string
	Kind      ChangeKind
	Refs      []Ref
}

// SaveEvent is delivered to the observers of a Coordinator after any of
// its contexts saved. Inserted holds the permanent refs.
type SaveEvent struct {
	ContextID string
	Inserted  []Ref
	Updated   []Ref
	Deleted   []Ref
}

// observers is a set of callbacks with explicit unsubscription.
type observers[E any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(E)
}

func newObservers[E any]() *observers[E] {
	return &observers[E]{subs: map[uint64]func(E){}}
}

// subscribe registers fn and returns a cancel func that is safe to call
// more than once.
func (o *observers[E]) subscribe(fn func(E)) func() {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	o.next++
	id := o.next
	o.subs[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// publish calls every observer in subscription order without holding the
// lock, so observers may subscribe or cancel from inside the callback.
func (o *observers[E]) publish(e E) {
	o.mu.RLock()
	ids := make([]uint64, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	fns := make(map[uint64]func(E), len(o.subs))
	for id, fn := range o.subs {
		fns[id] = fn
	}
	o.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fns[id](e)
	}
}
