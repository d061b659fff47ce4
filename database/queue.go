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
	"sync"
)

// serialQueue runs submitted jobs one at a time in submission order. The
// worker goroutine exits when the queue drains and is restarted by the
// next submit, so an idle queue holds no goroutine.
type serialQueue struct {
	name    string
	logger  Logger
	mu      sync.Mutex
	jobs    []func()
	running bool
}

func newSerialQueue(name string, logger Logger) *serialQueue {
	return &serialQueue{name: name, logger: logger}
}

func (q *serialQueue) submit(job func()) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		q.run(job)
	}
}

func (q *serialQueue) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Queued job panicked", "queue", q.name, "panic", r)
		}
	}()
	job()
}
