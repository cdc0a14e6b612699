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
// Package analysis aggregates a simulation trace into per-CPU and
// per-process metrics.  Each CPU's busy intervals are kept in a
// one-dimensional interval tree, so the running process at any instant can
// be queried after the fact.
package analysis

import (
	"sort"
	"sync"

	"github.com/Workiva/go-datastructures/augmentedtree"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/trace"
)

// span is a contiguous interval during which one process ran on one CPU.
type span struct {
	pid        trace.PID
	cpu        trace.CPUID
	start, end trace.Timestamp
	id         uint64
}

func (s *span) duration() trace.Duration {
	return trace.Duration(s.end - s.start)
}

// LowAtDimension returns the start timestamp of the span.  Required to
// support augmentedtree.Interval.
func (s *span) LowAtDimension(d uint64) int64 {
	return int64(s.start)
}

// HighAtDimension returns the end timestamp of the span.  Required to
// support augmentedtree.Interval.
func (s *span) HighAtDimension(d uint64) int64 {
	return int64(s.end)
}

// OverlapsAtDimension returns true if an interval overlaps this span at the
// specified dimension.  Required to support augmentedtree.Interval.
func (s *span) OverlapsAtDimension(j augmentedtree.Interval, d uint64) bool {
	return s.HighAtDimension(d) >= j.LowAtDimension(d) &&
		j.HighAtDimension(d) >= s.LowAtDimension(d)
}

// ID returns the unique identifier for this span.  Required to support
// augmentedtree.Interval.
func (s *span) ID() uint64 {
	return s.id
}

// The ID for augmentedtree.Intervals used in queries.
const queryID uint64 = 0

// pointQuery is a zero-length interval used for instant lookups.
type pointQuery trace.Timestamp

func (q pointQuery) LowAtDimension(d uint64) int64  { return int64(q) }
func (q pointQuery) HighAtDimension(d uint64) int64 { return int64(q) }
func (q pointQuery) OverlapsAtDimension(j augmentedtree.Interval, d uint64) bool {
	return q.HighAtDimension(d) >= j.LowAtDimension(d) &&
		j.HighAtDimension(d) >= q.LowAtDimension(d)
}
func (q pointQuery) ID() uint64 { return queryID }

// CPUMetrics aggregates one CPU's activity over a run.
type CPUMetrics struct {
	CPU trace.CPUID `json:"cpu"`
	// BusyTime is the total time the CPU held a process.
	BusyTime trace.Duration `json:"busyTime"`
	// Dispatches counts assignments to this CPU, including incoming
	// preemptions.
	Dispatches int `json:"dispatches"`
	// Utilization is BusyTime over the run's wall-clock span.
	Utilization float64 `json:"utilization"`
}

// ProcessMetrics aggregates one process's schedule over a run.
type ProcessMetrics struct {
	PID trace.PID `json:"pid"`
	// RunTime is the total time the process held a CPU.
	RunTime trace.Duration `json:"runTime"`
	// WaitTime is the total time the process spent runnable but queued.
	WaitTime trace.Duration `json:"waitTime"`
	// Dispatches counts the times the process was placed on a CPU.
	Dispatches int `json:"dispatches"`
	// Preemptions counts the times the process was displaced by another.
	Preemptions int `json:"preemptions"`
	// FinishTime is the timestamp at which the process completed.
	FinishTime trace.Timestamp `json:"finishTime"`
}

// Report is the aggregated view of one simulation trace.
type Report struct {
	// Start and End bound the trace's simulated time span.
	Start trace.Timestamp `json:"start"`
	End   trace.Timestamp `json:"end"`
	// PerCPU metrics, in increasing CPU order.
	PerCPU []CPUMetrics `json:"perCpu"`
	// PerProcess metrics, in increasing PID order.
	PerProcess []ProcessMetrics `json:"perProcess"`

	mu    sync.Mutex
	trees map[trace.CPUID]augmentedtree.Tree
}

// procState tracks one process while scanning the record stream.
type procState struct {
	metrics      ProcessMetrics
	waitingSince trace.Timestamp
	waiting      bool
}

// NewReport scans an emitted record stream and aggregates it.  Records must
// be in emission order; a stream that does not describe a consistent
// schedule yields a codes.InvalidArgument error.
func NewReport(records []trace.Record, numCPU int) (*Report, error) {
	spansByCPU := map[trace.CPUID][]*span{}
	open := map[trace.CPUID]*span{}
	procs := map[trace.PID]*procState{}
	dispatchesByCPU := map[trace.CPUID]int{}
	var nextID uint64

	proc := func(pid trace.PID) *procState {
		ps, ok := procs[pid]
		if !ok {
			ps = &procState{metrics: ProcessMetrics{PID: pid}}
			procs[pid] = ps
		}
		return ps
	}
	openSpan := func(pid trace.PID, cpu trace.CPUID, t trace.Timestamp) error {
		if open[cpu] != nil {
			return status.Errorf(codes.InvalidArgument, "%s assigned %s while %s still runs", cpu, pid, open[cpu].pid)
		}
		nextID++
		open[cpu] = &span{pid: pid, cpu: cpu, start: t, id: nextID}
		ps := proc(pid)
		if ps.waiting {
			ps.metrics.WaitTime += trace.Duration(t - ps.waitingSince)
			ps.waiting = false
		}
		ps.metrics.Dispatches++
		dispatchesByCPU[cpu]++
		return nil
	}
	closeSpan := func(cpu trace.CPUID, t trace.Timestamp) (*span, error) {
		sp := open[cpu]
		if sp == nil {
			return nil, status.Errorf(codes.InvalidArgument, "no span open on %s at t=%d", cpu, t)
		}
		sp.end = t
		open[cpu] = nil
		spansByCPU[cpu] = append(spansByCPU[cpu], sp)
		proc(sp.pid).metrics.RunTime += sp.duration()
		return sp, nil
	}
	cpuForPID := func(pid trace.PID) (trace.CPUID, bool) {
		for cpu, sp := range open {
			if sp != nil && sp.pid == pid {
				return cpu, true
			}
		}
		return trace.UnknownCPU, false
	}

	report := &Report{trees: map[trace.CPUID]augmentedtree.Tree{}}
	first := true
	for _, r := range records {
		if first {
			report.Start = r.Time
			first = false
		}
		report.End = r.Time
		switch r.Kind {
		case trace.Enqueue:
			ps := proc(r.PID)
			ps.waitingSince = r.Time
			ps.waiting = true
		case trace.Assigned:
			if err := openSpan(r.PID, r.CPU, r.Time); err != nil {
				return nil, err
			}
		case trace.Preempt:
			sp, err := closeSpan(r.CPU, r.Time)
			if err != nil {
				return nil, err
			}
			if sp.pid != r.PID {
				return nil, status.Errorf(codes.InvalidArgument, "preemption of %s on %s, but %s was running", r.PID, r.CPU, sp.pid)
			}
			victim := proc(r.PID)
			victim.metrics.Preemptions++
			victim.waitingSince = r.Time
			victim.waiting = true
			if err := openSpan(r.IncomingPID, r.CPU, r.Time); err != nil {
				return nil, err
			}
		case trace.Expired:
			if _, err := closeSpan(r.CPU, r.Time); err != nil {
				return nil, err
			}
			ps := proc(r.PID)
			ps.waitingSince = r.Time
			ps.waiting = true
		case trace.Finish:
			cpu, ok := cpuForPID(r.PID)
			if ok {
				if _, err := closeSpan(cpu, r.Time); err != nil {
					return nil, err
				}
			}
			proc(r.PID).metrics.FinishTime = r.Time
		}
	}
	for cpu, sp := range open {
		if sp != nil {
			return nil, status.Errorf(codes.InvalidArgument, "trace ended with %s still running on %s", sp.pid, cpu)
		}
	}

	// Build each CPU's interval tree and busy total concurrently.
	cpus := lo.Keys(spansByCPU)
	metricsByCPU := make(map[trace.CPUID]CPUMetrics, len(cpus))
	var mu sync.Mutex
	eg := errgroup.Group{}
	wallclock := trace.Duration(report.End - report.Start)
	for _, cpu := range cpus {
		cpu := cpu
		eg.Go(func() error {
			tree := augmentedtree.New(1)
			for _, sp := range spansByCPU[cpu] {
				tree.Add(sp)
			}
			busy := lo.SumBy(spansByCPU[cpu], func(sp *span) trace.Duration {
				return sp.duration()
			})
			m := CPUMetrics{CPU: cpu, BusyTime: busy, Dispatches: dispatchesByCPU[cpu]}
			if wallclock > 0 {
				m.Utilization = float64(busy) / float64(wallclock)
			}
			mu.Lock()
			defer mu.Unlock()
			metricsByCPU[cpu] = m
			report.trees[cpu] = tree
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for cpu := trace.CPUID(1); int(cpu) <= numCPU; cpu++ {
		m, ok := metricsByCPU[cpu]
		if !ok {
			m = CPUMetrics{CPU: cpu}
		}
		report.PerCPU = append(report.PerCPU, m)
	}
	for _, ps := range procs {
		report.PerProcess = append(report.PerProcess, ps.metrics)
	}
	sort.Slice(report.PerProcess, func(a, b int) bool {
		return report.PerProcess[a].PID < report.PerProcess[b].PID
	})
	return report, nil
}

// RunningAt returns the PID running on the given CPU at instant t, if any.
// Span boundaries belong to the newer span: a process assigned at t is
// considered running at t.
func (r *Report) RunningAt(cpu trace.CPUID, t trace.Timestamp) (trace.PID, bool) {
	r.mu.Lock()
	tree, ok := r.trees[cpu]
	r.mu.Unlock()
	if !ok {
		return trace.UnknownPID, false
	}
	var best *span
	for _, ival := range tree.Query(pointQuery(t)) {
		sp := ival.(*span)
		if best == nil || sp.start > best.start {
			best = sp
		}
	}
	if best == nil {
		return trace.UnknownPID, false
	}
	return best.pid, true
}
