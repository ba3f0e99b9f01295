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

package bringup

import (
	"sync"

	"github.com/google/trillian/monitoring"
)

var (
	once            sync.Once
	stagesDone      monitoring.Counter // stage => value
	initStatusFlags monitoring.Gauge
)

func setupMetrics(mf monitoring.MetricFactory) {
	if mf == nil {
		mf = monitoring.InertMetricFactory{}
	}
	stagesDone = mf.NewCounter("bringup_stages_completed", "Number of bring-up stages completed", "stage")
	initStatusFlags = mf.NewGauge("init_status_flags", "Bring-up status flags of the running system")
}
