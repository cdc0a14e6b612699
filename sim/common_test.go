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
package sim

import (
	"testing"

	"github.com/thi2351/cfssim/trace"
)

// proc builds a ProcessSpec for tests.
func proc(pid trace.PID, nice int, arrival trace.Timestamp, burst trace.Duration) ProcessSpec {
	return ProcessSpec{PID: pid, Nice: nice, Arrival: arrival, Burst: burst}
}

// runTrace simulates the batch with invariant checking enabled and returns
// the emitted records and the result.
func runTrace(t *testing.T, specs []ProcessSpec, numCPU int) ([]trace.Record, *Result) {
	t.Helper()
	emitter := &trace.SliceEmitter{}
	s, err := New(specs, numCPU, WithEmitter(emitter), CheckInvariants(true))
	if err != nil {
		t.Fatalf("New() = %s, want success", err)
	}
	result, err := s.Run()
	if err != nil {
		t.Fatalf("Run() = %s, want success", err)
	}
	return emitter.Records(), result
}
