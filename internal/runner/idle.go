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

package runner

import (
	"context"

	"github.com/google/keyrunner/internal/transport"
)

// Step runs one iteration of the idle loop, followed by every task which
// became ready during it.
func (r *Runner) Step() {
	r.diag.Flush()

	var usbActivity bool
	r.apps.Lock(func(apps *Apps) {
		r.apdu.Lock(func(apdu *transport.ApduDispatch) {
			r.ctaphid.Lock(func(ctaphid *transport.CtaphidDispatch) {
				usbActivity, _ = PollDispatchers(*apdu, *ctaphid, *apps)
			})
		})
	})
	if usbActivity {
		r.s.Pend(r.usbTask)
	}

	r.usbClasses.Lock(func(c *transport.UsbClasses) {
		PollUSB(*c, r.spawnCCID, r.spawnCTAPHID, r.s.Now())
	})
	r.contactless.Lock(func(iso *transport.Iso14443) {
		PollNFC(*iso, r.spawnNFC)
	})
	r.s.Dispatch()
}

// Run is the idle loop. It returns only when ctx is done; on the device it
// is never cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		r.Step()
		if err := ctx.Err(); err != nil {
			return err
		}
		r.s.Wait(ctx, IdleWait)
	}
}
