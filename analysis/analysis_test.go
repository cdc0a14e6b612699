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
package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thi2351/cfssim/trace"
)

// twoCPUTrace is the emitted trace of three staggered processes on two
// CPUs: PID 1 runs CPU 1 over [0, 10), is preempted by PID 3 over [10, 20),
// and resumes over [20, 40); PID 2 holds CPU 2 over [5, 25).
func twoCPUTrace() []trace.Record {
	return []trace.Record{
		{Kind: trace.TimeStamp, Time: 0},
		{Kind: trace.Enqueue, Time: 0, PID: 1},
		{Kind: trace.Assigned, Time: 0, PID: 1, CPU: 1},
		{Kind: trace.TimeStamp, Time: 5},
		{Kind: trace.Enqueue, Time: 5, PID: 2},
		{Kind: trace.Assigned, Time: 5, PID: 2, CPU: 2},
		{Kind: trace.TimeStamp, Time: 10},
		{Kind: trace.Enqueue, Time: 10, PID: 3},
		{Kind: trace.Preempt, Time: 10, PID: 1, IncomingPID: 3, CPU: 1},
		{Kind: trace.TimeStamp, Time: 20},
		{Kind: trace.Finish, Time: 20, PID: 3},
		{Kind: trace.Assigned, Time: 20, PID: 1, CPU: 1},
		{Kind: trace.TimeStamp, Time: 25},
		{Kind: trace.Finish, Time: 25, PID: 2},
		{Kind: trace.TimeStamp, Time: 40},
		{Kind: trace.Finish, Time: 40, PID: 1},
		{Kind: trace.AllDone, Time: 40},
	}
}

func TestCPUMetrics(t *testing.T) {
	report, err := NewReport(twoCPUTrace(), 2)
	if err != nil {
		t.Fatalf("NewReport() = %s, want success", err)
	}
	want := []CPUMetrics{
		{CPU: 1, BusyTime: 40, Dispatches: 3, Utilization: 1.0},
		{CPU: 2, BusyTime: 20, Dispatches: 1, Utilization: 0.5},
	}
	if diff := cmp.Diff(want, report.PerCPU); diff != "" {
		t.Errorf("per-CPU metrics: diff (-want +got):\n%s", diff)
	}
}

func TestProcessMetrics(t *testing.T) {
	report, err := NewReport(twoCPUTrace(), 2)
	if err != nil {
		t.Fatalf("NewReport() = %s, want success", err)
	}
	want := []ProcessMetrics{
		// Runs [0,10) and [20,40); waits [10,20) after its preemption.
		{PID: 1, RunTime: 30, WaitTime: 10, Dispatches: 2, Preemptions: 1, FinishTime: 40},
		// Dispatched the moment it arrived.
		{PID: 2, RunTime: 20, WaitTime: 0, Dispatches: 1, FinishTime: 25},
		// Preempts PID 1 immediately on arrival.
		{PID: 3, RunTime: 10, WaitTime: 0, Dispatches: 1, FinishTime: 20},
	}
	if diff := cmp.Diff(want, report.PerProcess); diff != "" {
		t.Errorf("per-process metrics: diff (-want +got):\n%s", diff)
	}
}

func TestRunningAt(t *testing.T) {
	report, err := NewReport(twoCPUTrace(), 2)
	if err != nil {
		t.Fatalf("NewReport() = %s, want success", err)
	}
	tests := []struct {
		description string
		cpu         trace.CPUID
		t           trace.Timestamp
		wantPID     trace.PID
		wantFound   bool
	}{{
		description: "first span on CPU 1",
		cpu:         1,
		t:           4,
		wantPID:     1,
		wantFound:   true,
	}, {
		description: "boundary belongs to the newer span",
		cpu:         1,
		t:           10,
		wantPID:     3,
		wantFound:   true,
	}, {
		description: "resumed span on CPU 1",
		cpu:         1,
		t:           33,
		wantPID:     1,
		wantFound:   true,
	}, {
		description: "CPU 2 mid-run",
		cpu:         2,
		t:           17,
		wantPID:     2,
		wantFound:   true,
	}, {
		description: "CPU 2 after its only span",
		cpu:         2,
		t:           39,
		wantFound:   false,
		wantPID:     trace.UnknownPID,
	}, {
		description: "unknown CPU",
		cpu:         9,
		t:           5,
		wantFound:   false,
		wantPID:     trace.UnknownPID,
	}}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			pid, found := report.RunningAt(test.cpu, test.t)
			if found != test.wantFound || pid != test.wantPID {
				t.Errorf("RunningAt(%s, %d) = (%s, %t), want (PID=%d, %t)",
					test.cpu, test.t, pid, found, test.wantPID, test.wantFound)
			}
		})
	}
}

func TestReportRejectsInconsistentTraces(t *testing.T) {
	tests := []struct {
		description string
		records     []trace.Record
	}{{
		description: "double assignment to one CPU",
		records: []trace.Record{
			{Kind: trace.Assigned, Time: 0, PID: 1, CPU: 1},
			{Kind: trace.Assigned, Time: 5, PID: 2, CPU: 1},
		},
	}, {
		description: "expiry on an idle CPU",
		records: []trace.Record{
			{Kind: trace.Expired, Time: 5, PID: 1, CPU: 1},
		},
	}, {
		description: "preemption names the wrong victim",
		records: []trace.Record{
			{Kind: trace.Assigned, Time: 0, PID: 1, CPU: 1},
			{Kind: trace.Preempt, Time: 10, PID: 2, IncomingPID: 3, CPU: 1},
		},
	}, {
		description: "trace ends with a process still running",
		records: []trace.Record{
			{Kind: trace.Assigned, Time: 0, PID: 1, CPU: 1},
			{Kind: trace.AllDone, Time: 10},
		},
	}}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if _, err := NewReport(test.records, 2); err == nil {
				t.Errorf("NewReport() succeeded, want error")
			}
		})
	}
}
