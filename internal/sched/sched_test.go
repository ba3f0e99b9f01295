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
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/keyrunner/internal/mono"
	"github.com/google/trillian/monitoring"
	"github.com/google/trillian/util/clock"
)

var epoch = time.Unix(1700000000, 0)

func newScheduler(t *testing.T, tr *LockTracer) (*Scheduler, *clock.FakeTimeSource) {
	t.Helper()
	fake := clock.NewFake(epoch)
	return New(mono.New(fake), Options{Tracer: tr, MetricFactory: monitoring.InertMetricFactory{}}), fake
}

// log records task executions.
type log struct {
	runs []string
}

func (l *log) task(name string, p Priority, k Kind) Task {
	return Task{Name: name, Priority: p, Kind: k, Run: func() { l.runs = append(l.runs, name) }}
}

func TestPriorityOrder(t *testing.T) {
	s, _ := newScheduler(t, nil)
	var l log
	low := s.Register(l.task("low", 1, Software))
	high := s.Register(l.task("high", 5, Interrupt))
	mid := s.Register(l.task("mid", 3, Interrupt))

	s.Pend(low)
	s.Pend(mid)
	s.Pend(high)
	s.Pend(high)
	s.Dispatch()

	if diff := cmp.Diff([]string{"high", "mid", "low"}, l.runs); diff != "" {
		t.Errorf("run order diff (-want +got):\n%s", diff)
	}
	l.runs = nil
	s.Dispatch()
	if len(l.runs) != 0 {
		t.Errorf("tasks ran twice: %v", l.runs)
	}
}

func TestNestedPreemption(t *testing.T) {
	s, _ := newScheduler(t, nil)
	var l log
	var high TaskID
	low := s.Register(Task{Name: "low", Priority: 1, Kind: Software, Run: func() {
		l.runs = append(l.runs, "low start")
		s.Pend(high)
		s.Dispatch()
		l.runs = append(l.runs, "low end")
	}})
	high = s.Register(l.task("high", 4, Interrupt))

	s.Pend(low)
	s.Dispatch()
	if diff := cmp.Diff([]string{"low start", "high", "low end"}, l.runs); diff != "" {
		t.Errorf("run order diff (-want +got):\n%s", diff)
	}
}

func TestResourceCeiling(t *testing.T) {
	s, _ := newScheduler(t, nil)
	var l log
	user := s.Register(l.task("user", 2, Software))
	above := s.Register(l.task("above", 3, Interrupt))
	r := NewResource(s, "counter", 0, user)
	if got := r.Ceiling(); got != 2 {
		t.Fatalf("Ceiling() = %d, want 2", got)
	}

	r.Lock(func(v *int) {
		*v++
		s.Pend(user)
		s.Pend(above)
		// A preemption point inside the critical section only admits tasks
		// above the ceiling.
		s.Dispatch()
		l.runs = append(l.runs, "unlock")
	})
	if diff := cmp.Diff([]string{"above", "unlock", "user"}, l.runs); diff != "" {
		t.Errorf("run order diff (-want +got):\n%s", diff)
	}
	if got := s.Running(); got != Idle {
		t.Errorf("Running() = %d after unlock, want idle", got)
	}
}

func TestResourceRestoredOnPanic(t *testing.T) {
	s, _ := newScheduler(t, nil)
	user := s.Register(Task{Name: "user", Priority: 2, Kind: Software, Run: func() {}})
	r := NewResource(s, "r", struct{}{}, user)
	func() {
		defer func() { _ = recover() }()
		r.Lock(func(*struct{}) { panic("boom") })
	}()
	if got := s.Running(); got != Idle {
		t.Errorf("Running() = %d after panic, want idle", got)
	}
}

func TestSpawnAfter(t *testing.T) {
	for _, test := range []struct {
		desc  string
		start mono.Instant
	}{
		{desc: "zero"},
		{desc: "wrapping", start: math.MaxUint32 - 50},
	} {
		t.Run(test.desc, func(t *testing.T) {
			fake := clock.NewFake(epoch)
			s := New(mono.NewAt(fake, test.start), Options{})
			var l log
			id := s.Register(l.task("tick", 1, Timer))

			if err := s.SpawnAfter(id, 100*time.Millisecond); err != nil {
				t.Fatalf("SpawnAfter: %v", err)
			}
			if err := s.SpawnAfter(id, 10*time.Millisecond); !errors.Is(err, ErrAlreadySpawned) {
				t.Errorf("second SpawnAfter: got %v, want ErrAlreadySpawned", err)
			}
			fake.Set(epoch.Add(99 * time.Millisecond))
			s.Dispatch()
			if len(l.runs) != 0 {
				t.Fatalf("task ran early at %v", s.Now())
			}
			fake.Set(epoch.Add(100 * time.Millisecond))
			s.Dispatch()
			if len(l.runs) != 1 {
				t.Fatalf("task ran %d times, want 1", len(l.runs))
			}
			if _, ok := s.NextDeadline(); ok {
				t.Error("timer queue not empty")
			}
			if err := s.SpawnAfter(id, time.Millisecond); err != nil {
				t.Errorf("SpawnAfter after firing: %v", err)
			}
		})
	}
}

func TestSpawnInterrupt(t *testing.T) {
	s, _ := newScheduler(t, nil)
	id := s.Register(Task{Name: "usb", Priority: 3, Kind: Interrupt, Run: func() {}})
	if err := s.SpawnAfter(id, time.Second); !errors.Is(err, ErrNotSpawnable) {
		t.Errorf("got %v, want ErrNotSpawnable", err)
	}
}

func TestTimerOrder(t *testing.T) {
	s, fake := newScheduler(t, nil)
	var l log
	a := s.Register(l.task("a", 1, Timer))
	b := s.Register(l.task("b", 1, Timer))
	c := s.Register(l.task("c", 2, Timer))
	for id, d := range map[TaskID]time.Duration{a: 30 * time.Millisecond, b: 10 * time.Millisecond, c: 20 * time.Millisecond} {
		if err := s.SpawnAfter(id, d); err != nil {
			t.Fatalf("SpawnAfter: %v", err)
		}
	}
	if at, ok := s.NextDeadline(); !ok || at != mono.Instant(10) {
		t.Errorf("NextDeadline() = %d, %t, want 10", at, ok)
	}
	for _, ms := range []int{10, 20, 30} {
		fake.Set(epoch.Add(time.Duration(ms) * time.Millisecond))
		s.Dispatch()
	}
	if diff := cmp.Diff([]string{"b", "c", "a"}, l.runs); diff != "" {
		t.Errorf("run order diff (-want +got):\n%s", diff)
	}
}

func TestPendFromGoroutines(t *testing.T) {
	s, _ := newScheduler(t, nil)
	var l log
	id := s.Register(l.task("irq", 5, Interrupt))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Pend(id)
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Wait(ctx, time.Second)
	s.Dispatch()
	if len(l.runs) != 1 {
		t.Errorf("task ran %d times, want 1", len(l.runs))
	}
}

func TestPendDuringDispatch(t *testing.T) {
	s, _ := newScheduler(t, nil)
	var l log
	id := s.Register(l.task("irq", 5, Interrupt))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				s.Pend(id)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	// Dispatch while interrupts keep arriving.
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		s.Dispatch()
	}
	if len(l.runs) == 0 {
		t.Fatal("task never ran")
	}
	n := len(l.runs)
	s.Dispatch()
	if len(l.runs) != n {
		t.Errorf("task still pending after the last dispatch")
	}
}
