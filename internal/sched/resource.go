// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sched

import "fmt"

// Resource is state shared between tasks.
type Resource[T any] struct {
	s       *Scheduler
	name    string
	ceiling Priority
	v       T
}

// NewResource wraps v for use by the given tasks (and the idle context).
// Its ceiling is the highest priority among users.
func NewResource[T any](s *Scheduler, name string, v T, users ...TaskID) *Resource[T] {
	r := &Resource[T]{s: s, name: name, v: v}
	for _, id := range users {
		if p := s.Priority(id); p > r.ceiling {
			r.ceiling = p
		}
	}
	return r
}

// Name returns the resource name.
func (r *Resource[T]) Name() string {
	return r.name
}

// Ceiling returns the resource's priority ceiling.
func (r *Resource[T]) Ceiling() Priority {
	return r.ceiling
}

// Lock runs fn with exclusive access to the resource. fn must not retain the
// pointer it is given. Tasks made ready while the lock was held and which
// may preempt the caller run before Lock returns.
func (r *Resource[T]) Lock(fn func(v *T)) {
	s := r.s
	prev := s.running
	if prev > r.ceiling {
		s.tracer.violation(r.name, fmt.Errorf("resource %q with ceiling %d locked at priority %d", r.name, r.ceiling, prev))
	}
	func() {
		if r.ceiling > s.running {
			s.running = r.ceiling
		}
		s.tracer.acquire(r.name)
		defer func() {
			s.tracer.release(r.name)
			s.running = prev
		}()
		fn(&r.v)
	}()
	s.Dispatch()
}
