//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
package cfs

import (
	"fmt"

	"github.com/thi2351/cfssim/trace"
)

// Process is the scheduling view of one simulated process.  Weight is fixed
// at creation; VRuntime grows monotonically while the process is runnable;
// Remaining counts down to zero and never below.
type Process struct {
	PID    trace.PID `json:"pid"`
	Weight uint64    `json:"weight"`
	// VRuntime is the weighted virtual time the process has accumulated.  It
	// is held as a real value so that asymmetric weights do not truncate
	// progress.
	VRuntime  float64        `json:"vruntime"`
	Remaining trace.Duration `json:"remaining"`
}

// NewProcess returns a Process for the given identity and niceness with the
// full burst remaining.
func NewProcess(pid trace.PID, nice int, burst trace.Duration) *Process {
	return &Process{
		PID:       pid,
		Weight:    WeightFromNice(nice),
		Remaining: burst,
	}
}

// Consume deducts up to d from the remaining burst, clamping at zero, and
// returns the amount actually consumed.
func (p *Process) Consume(d trace.Duration) trace.Duration {
	if d >= p.Remaining {
		d = p.Remaining
		p.Remaining = 0
		return d
	}
	p.Remaining -= d
	return d
}

// Done returns true once the process has exhausted its burst.
func (p *Process) Done() bool {
	return p.Remaining == 0
}

func (p *Process) String() string {
	return fmt.Sprintf("%s (weight %d, vruntime %.3f, remaining %d)", p.PID, p.Weight, p.VRuntime, p.Remaining)
}

// Compare orders runnable processes for the run queue: ascending VRuntime,
// then descending Weight, then ascending PID.  The PID tiebreak makes the
// order total, so equal keys imply the same process.
func Compare(a, b *Process) int {
	switch {
	case a.VRuntime < b.VRuntime:
		return -1
	case a.VRuntime > b.VRuntime:
		return 1
	}
	switch {
	case a.Weight > b.Weight:
		return -1
	case a.Weight < b.Weight:
		return 1
	}
	switch {
	case a.PID < b.PID:
		return -1
	case a.PID > b.PID:
		return 1
	}
	return 0
}
