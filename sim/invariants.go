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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/event"
	"github.com/thi2351/cfssim/trace"
)

// verifyInvariants checks the structural invariants that must hold at every
// external observation point.  Any failure is an engine bug, reported as
// codes.Internal.
func (s *Simulator) verifyInvariants(t trace.Timestamp) error {
	queued := s.rq.Processes()
	queuedByPID := make(map[trace.PID]bool, len(queued))
	var queuedWeight uint64
	for _, p := range queued {
		if queuedByPID[p.PID] {
			return status.Errorf(codes.Internal, "t=%d: %s enqueued more than once", t, p.PID)
		}
		queuedByPID[p.PID] = true
		queuedWeight += p.Weight
	}
	if queuedWeight != s.rq.TotalWeight() {
		return status.Errorf(codes.Internal, "t=%d: run queue weight total %d, but queued processes sum to %d",
			t, s.rq.TotalWeight(), queuedWeight)
	}

	// Every runnable process is queued or running, never both, never
	// neither; virtual runtime never regresses; remaining never underflows
	// past zero (it is unsigned, so a wrapped value shows up as enormous).
	runningByPID := make(map[trace.PID]trace.CPUID)
	var runningWeight uint64
	for _, c := range s.pool.Assigned() {
		runningByPID[c.Running.PID] = c.ID
		runningWeight += c.Running.Weight
	}
	if runningWeight != s.pool.RunningWeight() {
		return status.Errorf(codes.Internal, "t=%d: pool running weight %d, but assigned processes sum to %d",
			t, s.pool.RunningWeight(), runningWeight)
	}
	unfinished := 0
	for _, p := range s.procs {
		if p.VRuntime < s.lastVRuntime[p.PID] {
			return status.Errorf(codes.Internal, "t=%d: %s vruntime regressed from %f to %f",
				t, p.PID, s.lastVRuntime[p.PID], p.VRuntime)
		}
		s.lastVRuntime[p.PID] = p.VRuntime
		if p.Remaining > s.bursts[p.PID] {
			return status.Errorf(codes.Internal, "t=%d: %s remaining %d exceeds its burst %d",
				t, p.PID, p.Remaining, s.bursts[p.PID])
		}
		if !s.arrived[p.PID] || p.Done() {
			continue
		}
		unfinished++
		inQueue := queuedByPID[p.PID]
		if _, running := runningByPID[p.PID]; running == inQueue {
			return status.Errorf(codes.Internal, "t=%d: runnable %s queued=%t running=%t", t, p.PID, inQueue, running)
		}
	}
	if got := len(queued) + len(runningByPID); got != unfinished {
		return status.Errorf(codes.Internal, "t=%d: %d queued + %d running != %d unfinished arrived processes",
			t, len(queued), len(runningByPID), unfinished)
	}

	// Every assigned CPU has exactly one pending END at its recorded slice
	// end, and every pending END belongs to an assigned CPU.
	ends := 0
	for _, e := range s.events.Pending() {
		if e.Kind != event.End {
			continue
		}
		ends++
		c := s.pool.ByID(e.CPU)
		if c == nil || c.Running == nil || c.Running.PID != e.PID || c.SliceEnd != e.Time {
			return status.Errorf(codes.Internal, "t=%d: pending %s does not match an assigned CPU", t, e)
		}
	}
	if ends != len(runningByPID) {
		return status.Errorf(codes.Internal, "t=%d: %d pending END events for %d assigned CPUs", t, ends, len(runningByPID))
	}
	return nil
}
