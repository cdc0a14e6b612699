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
// Package trace defines the scalar vocabulary of the simulator -- process
// and CPU identifiers, timestamps, durations -- and the trace records the
// scheduling engine emits.
package trace

import "fmt"

// Timestamp is a simulated time in abstract nanoseconds.  Timestamps have no
// wall-clock mapping and advance monotonically over a simulation.
type Timestamp uint64

// Duration is a delta between two Timestamps.
type Duration uint64

// PID specifies a simulated process ID.  Valid PIDs are nonnegative; they are
// unique within one simulation.
type PID int32

// UnknownPID represents an indeterminate PID value.
const UnknownPID PID = -1

// Valid returns true iff the provided PID is valid.
func (p PID) Valid() bool {
	return p > UnknownPID
}

func (p PID) String() string {
	if p.Valid() {
		return fmt.Sprintf("PID=%d", p)
	}
	return "PID=<unknown>"
}

// CPUID specifies a CPU number.  Valid CPUIDs are positive; simulated CPUs
// are numbered densely from 1.
type CPUID int32

// UnknownCPU represents an indeterminate CPU value.
const UnknownCPU CPUID = 0

// Valid returns true iff the provided CPUID is valid.
func (c CPUID) Valid() bool {
	return c > UnknownCPU
}

func (c CPUID) String() string {
	if c.Valid() {
		return fmt.Sprintf("CPU %d", c)
	}
	return "CPU <unknown>"
}
