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
	"sync"

	"github.com/google/trillian/monitoring"
)

var (
	once            sync.Once
	taskRuns        monitoring.Counter   // task => value
	taskSpawns      monitoring.Counter   // task => value
	taskLatency     monitoring.Histogram // task => seconds from ready to running
	lockViolations  monitoring.Counter   // resource => value
	timerQueueDepth monitoring.Gauge
)

func setupMetrics(mf monitoring.MetricFactory) {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	taskRuns = mf.NewCounter("task_runs", "Number of times a task has run", "task")
	taskSpawns = mf.NewCounter("task_spawns", "Number of delayed spawns of a task", "task")
	taskLatency = mf.NewHistogram("task_latency_seconds", "Time from a task becoming ready to it running", "task")
	lockViolations = mf.NewCounter("lock_order_violations", "Number of out of order resource acquisitions", "resource")
	timerQueueDepth = mf.NewGauge("timer_queue_depth", "Number of scheduled delayed spawns")
}
