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

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang/glog"
)

// ErrLockOrder is reported when resources are nested in a way that breaks
// the declared lock order.
var ErrLockOrder = errors.New("lock order violation")

// LockTracer checks resource acquisitions against a declared order.
//
// Resources in the ordered list may be nested only in that order. Exclusive
// resources may not be nested with anything. Resources the tracer does not
// know about are not checked.
//
// A nil *LockTracer is valid and checks nothing.
type LockTracer struct {
	rank      map[string]int
	exclusive map[string]bool
	held      []string
	history   []string

	// OnViolation, if set, receives every violation instead of the error log.
	OnViolation func(error)
	// Record keeps a history of acquisitions, for tests.
	Record bool
}

// NewLockTracer returns a tracer for the given canonical order and set of
// exclusive resources.
func NewLockTracer(order []string, exclusive ...string) *LockTracer {
	t := &LockTracer{rank: make(map[string]int), exclusive: make(map[string]bool)}
	for i, n := range order {
		t.rank[n] = i
	}
	for _, n := range exclusive {
		t.exclusive[n] = true
	}
	return t
}

func (t *LockTracer) acquire(name string) {
	if t == nil {
		return
	}
	if t.Record {
		t.history = append(t.history, name)
	}
	switch {
	case slices.Contains(t.held, name):
		t.violation(name, fmt.Errorf("%q locked recursively", name))
	case len(t.held) > 0 && t.exclusive[name]:
		t.violation(name, fmt.Errorf("exclusive %q locked while holding %v", name, t.held))
	default:
		for _, h := range t.held {
			if t.exclusive[h] {
				t.violation(name, fmt.Errorf("%q locked while holding exclusive %q", name, h))
				break
			}
			hr, hok := t.rank[h]
			nr, nok := t.rank[name]
			if hok && nok && hr > nr {
				t.violation(name, fmt.Errorf("%q locked while holding %q", name, h))
				break
			}
		}
	}
	t.held = append(t.held, name)
}

func (t *LockTracer) release(name string) {
	if t == nil {
		return
	}
	if i := slices.Index(t.held, name); i >= 0 {
		t.held = slices.Delete(t.held, i, i+1)
	}
}

// enterTask gives a preempting task an empty lock stack, returning the stack of
// the preempted context.
func (t *LockTracer) enterTask() []string {
	if t == nil {
		return nil
	}
	saved := t.held
	t.held = nil
	return saved
}

func (t *LockTracer) exitTask(saved []string) {
	if t == nil {
		return
	}
	t.held = saved
}

func (t *LockTracer) violation(name string, err error) {
	if lockViolations != nil {
		lockViolations.Inc(name)
	}
	if t == nil {
		glog.Errorf("%v: %v", ErrLockOrder, err)
		return
	}
	err = fmt.Errorf("%w: %v", ErrLockOrder, err)
	if t.OnViolation != nil {
		t.OnViolation(err)
		return
	}
	glog.Error(err)
}

// History returns the resources acquired so far, in order, if Record is set.
func (t *LockTracer) History() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.history)
}

// Held returns the currently held resources, outermost first.
func (t *LockTracer) Held() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.held)
}
