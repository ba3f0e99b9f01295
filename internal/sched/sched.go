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

// Package sched is a static priority, run-to-completion task scheduler for a
// single core.
//
// All tasks run on the goroutine which calls Dispatch. Other goroutines,
// standing in for interrupt handlers, may only call Pend. Shared state is
// held in Resources, which use the immediate priority ceiling protocol: while
// a Resource is locked only tasks of higher priority than every user of that
// resource may run, so two users never overlap and no lock can deadlock.
//
// Preemption happens at well defined points: when a task finishes, when a
// Resource is unlocked, and whenever the idle context calls Dispatch.
package sched

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/keyrunner/internal/mono"
	"github.com/google/trillian/monitoring"
)

var (
	// ErrAlreadySpawned is returned by SpawnAfter when the task already has
	// a pending delayed spawn.
	ErrAlreadySpawned = errors.New("task already spawned")
	// ErrNotSpawnable is returned by SpawnAfter for interrupt-bound tasks.
	ErrNotSpawnable = errors.New("interrupt tasks cannot be spawned")
)

// TaskID identifies a registered task.
type TaskID int

// Priority is a static task priority. Higher values preempt lower ones; the
// idle context runs at priority 0.
type Priority uint8

// Idle is the priority of the idle context.
const Idle Priority = 0

// Kind describes how a task is triggered.
type Kind int

const (
	// Interrupt tasks are bound to a hardware event and raised with Pend.
	Interrupt Kind = iota
	// Software tasks are raised with Pend by other tasks.
	Software
	// Timer tasks are raised with SpawnAfter, usually by themselves.
	Timer
)

func (k Kind) String() string {
	switch k {
	case Interrupt:
		return "interrupt"
	case Software:
		return "software"
	case Timer:
		return "timer"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Task is a unit of work. Run must not block.
type Task struct {
	Name     string
	Priority Priority
	Kind     Kind
	Run      func()
}

type taskState struct {
	Task
	pending bool
	since   mono.Instant
	spawned bool
}

// Scheduler runs tasks in priority order.
type Scheduler struct {
	clock  *mono.Clock
	tracer *LockTracer

	// mu guards the fields below; they are shared with interrupt context.
	mu     sync.Mutex
	tasks  []*taskState
	timers timerQueue
	seq    uint64
	wake   chan struct{}

	// running is the priority of the executing context. It is only touched
	// from the dispatching goroutine.
	running Priority
}

// Options configures a Scheduler.
type Options struct {
	// Tracer checks the order of resource acquisitions, if set.
	Tracer        *LockTracer
	MetricFactory monitoring.MetricFactory
}

// New returns a scheduler with no tasks which reads time from clk.
func New(clk *mono.Clock, opts Options) *Scheduler {
	once.Do(func() { setupMetrics(opts.MetricFactory) })
	return &Scheduler{
		clock:  clk,
		tracer: opts.Tracer,
		wake:   make(chan struct{}, 1),
	}
}

// Register adds a task and returns its ID.
// Tasks must be registered before Dispatch is first called.
func (s *Scheduler) Register(t Task) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &taskState{Task: t})
	glog.V(1).Infof("registered %s task %q at priority %d", t.Kind, t.Name, t.Priority)
	return TaskID(len(s.tasks) - 1)
}

// Name returns the name of a task.
func (s *Scheduler) Name(id TaskID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Name
}

// Priority returns the priority of a task.
func (s *Scheduler) Priority(id TaskID) Priority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Priority
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() mono.Instant {
	return s.clock.Now()
}

// Pend marks a task ready to run. It is safe to call from any goroutine.
// Pending an already pending task has no further effect.
func (s *Scheduler) Pend(id TaskID) {
	s.mu.Lock()
	t := s.tasks[id]
	if !t.pending {
		t.pending = true
		t.since = s.clock.Now()
	}
	s.mu.Unlock()
	s.notify()
}

// SpawnAfter arranges for a task to become ready d from now.
// A task has room for a single delayed spawn; while one is outstanding
// further calls return ErrAlreadySpawned.
func (s *Scheduler) SpawnAfter(id TaskID, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	if t.Kind == Interrupt {
		return fmt.Errorf("%s: %w", t.Name, ErrNotSpawnable)
	}
	if t.spawned {
		return fmt.Errorf("%s: %w", t.Name, ErrAlreadySpawned)
	}
	t.spawned = true
	s.seq++
	heap.Push(&s.timers, deadline{at: s.clock.Now().Add(d), seq: s.seq, id: id})
	taskSpawns.Inc(t.Name)
	timerQueueDepth.Set(float64(len(s.timers)))
	glog.V(2).Infof("spawn %q in %v", t.Name, d)
	return nil
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// expire moves due timers to the pending state. s.mu must be held.
func (s *Scheduler) expire(now mono.Instant) {
	for len(s.timers) > 0 && !now.Before(s.timers[0].at) {
		d := heap.Pop(&s.timers).(deadline)
		t := s.tasks[d.id]
		t.spawned = false
		if !t.pending {
			t.pending = true
			t.since = d.at
		}
	}
	timerQueueDepth.Set(float64(len(s.timers)))
}

// next claims the highest priority ready task which may preempt the running
// context, or returns nil. It also returns when the task became ready; once
// the task is claimed a concurrent Pend may overwrite that time.
func (s *Scheduler) next() (*taskState, mono.Instant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(s.clock.Now())
	var best *taskState
	for _, t := range s.tasks {
		if t.pending && t.Priority > s.running && (best == nil || t.Priority > best.Priority) {
			best = t
		}
	}
	if best == nil {
		return nil, 0
	}
	best.pending = false
	return best, best.since
}

// Dispatch runs every ready task whose priority exceeds that of the calling
// context, highest first, and returns when none remain.
func (s *Scheduler) Dispatch() {
	for {
		t, since := s.next()
		if t == nil {
			return
		}
		s.run(t, since)
	}
}

func (s *Scheduler) run(t *taskState, since mono.Instant) {
	taskLatency.Observe(s.clock.Since(since).Seconds(), t.Name)
	taskRuns.Inc(t.Name)
	prev := s.running
	s.running = t.Priority
	held := s.tracer.enterTask()
	func() {
		defer func() {
			s.tracer.exitTask(held)
			s.running = prev
		}()
		t.Run()
	}()
}

// Running returns the priority of the executing context.
func (s *Scheduler) Running() Priority {
	return s.running
}

// NextDeadline returns the time at which the earliest delayed spawn is due.
func (s *Scheduler) NextDeadline() (mono.Instant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return 0, false
	}
	return s.timers[0].at, true
}

// Wait blocks until a task is pended, the next delayed spawn is due, max has
// elapsed or ctx is done, whichever is first.
func (s *Scheduler) Wait(ctx context.Context, max time.Duration) {
	d := max
	if at, ok := s.NextDeadline(); ok {
		if until := at.Sub(s.clock.Now()); until < d {
			d = until
		}
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-t.C:
	}
}
