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
// Package cpupool manages the simulated CPUs: a dense descriptor array for
// direct access by ID, and a min-heap of the idle CPUs ordered by
// accumulated busy time so the least-used CPU is dispatched to next.
package cpupool

import (
	"container/heap"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/cfs"
	"github.com/thi2351/cfssim/trace"
)

// CPU describes one simulated CPU.  LastDispatch and SliceEnd are meaningful
// only while Running is non-nil.
type CPU struct {
	ID trace.CPUID
	// RunningTime is the sum of the intervals during which this CPU held a
	// process.  It orders the idle heap, so dispatches favour the least-used
	// CPU.
	RunningTime  trace.Duration
	Running      *cfs.Process
	LastDispatch trace.Timestamp
	// SliceEnd is the timestamp of the END event scheduled for the current
	// assignment.  The engine needs it to withdraw that event exactly.
	SliceEnd trace.Timestamp
	// heapIndex is the CPU's position in the idle heap, or -1 while
	// assigned.
	heapIndex int
}

func (c *CPU) String() string {
	if c.Running == nil {
		return fmt.Sprintf("%s idle (busy %d)", c.ID, c.RunningTime)
	}
	return fmt.Sprintf("%s running %s since %d (busy %d)", c.ID, c.Running.PID, c.LastDispatch, c.RunningTime)
}

// idleHeap orders idle CPUs by (RunningTime asc, ID asc).
type idleHeap []*CPU

func (h idleHeap) Len() int { return len(h) }

func (h idleHeap) Less(i, j int) bool {
	if h[i].RunningTime != h[j].RunningTime {
		return h[i].RunningTime < h[j].RunningTime
	}
	return h[i].ID < h[j].ID
}

func (h idleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *idleHeap) Push(x any) {
	c := x.(*CPU)
	c.heapIndex = len(*h)
	*h = append(*h, c)
}

func (h *idleHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.heapIndex = -1
	*h = old[:n-1]
	return c
}

// Pool is the set of simulated CPUs.  The heap contains exactly the CPUs
// with no running process.
type Pool struct {
	cpus []*CPU
	idle idleHeap
	// runningWeight is the sum of the weights of all currently-running
	// processes; the run queue's timeslice denominator includes it.
	runningWeight uint64
}

// New returns a Pool of n idle CPUs with IDs 1..n.
func New(n int) *Pool {
	p := &Pool{
		cpus: make([]*CPU, n),
		idle: make(idleHeap, 0, n),
	}
	for i := 0; i < n; i++ {
		c := &CPU{ID: trace.CPUID(i + 1), heapIndex: -1}
		p.cpus[i] = c
		heap.Push(&p.idle, c)
	}
	return p
}

// NumCPU returns the number of CPUs in the pool.
func (p *Pool) NumCPU() int {
	return len(p.cpus)
}

// RunningWeight returns the summed weight of all currently-running
// processes.
func (p *Pool) RunningWeight() uint64 {
	return p.runningWeight
}

// ByID returns the CPU with the given 1-based ID, or nil if out of range.
func (p *Pool) ByID(id trace.CPUID) *CPU {
	if id < 1 || int(id) > len(p.cpus) {
		return nil
	}
	return p.cpus[id-1]
}

// PeekIdle returns the idle CPU that will be chosen next -- least
// accumulated busy time, ties to the lowest ID -- or nil if every CPU is
// assigned.
func (p *Pool) PeekIdle() *CPU {
	if len(p.idle) == 0 {
		return nil
	}
	return p.idle[0]
}

// Dispatch assigns proc to the preferred idle CPU at time t and returns that
// CPU, or nil if no CPU is idle.
func (p *Pool) Dispatch(proc *cfs.Process, t trace.Timestamp) *CPU {
	if len(p.idle) == 0 {
		return nil
	}
	c := heap.Pop(&p.idle).(*CPU)
	p.assign(c, proc, t)
	return c
}

// DispatchTo assigns proc to the specific idle CPU c at time t, withdrawing
// c from the idle heap.  The expiry and completion paths reuse the CPU they
// just freed rather than the heap's preferred one.
func (p *Pool) DispatchTo(c *CPU, proc *cfs.Process, t trace.Timestamp) error {
	if c.heapIndex < 0 {
		return status.Errorf(codes.Internal, "%s is not idle", c.ID)
	}
	heap.Remove(&p.idle, c.heapIndex)
	p.assign(c, proc, t)
	return nil
}

func (p *Pool) assign(c *CPU, proc *cfs.Process, t trace.Timestamp) {
	c.Running = proc
	c.LastDispatch = t
	p.runningWeight += proc.Weight
}

// Release accumulates elapsed busy time on c, clears its assignment, and
// returns it to the idle heap.  The released process's weight leaves the
// running-weight total.
func (p *Pool) Release(c *CPU, elapsed trace.Duration) {
	c.RunningTime += elapsed
	if c.Running != nil {
		p.runningWeight -= c.Running.Weight
	}
	c.Running = nil
	c.SliceEnd = 0
	heap.Push(&p.idle, c)
}

// Assigned returns the CPUs that currently hold a process, in increasing ID
// order.  This is the scan order preemption uses to break ties.
func (p *Pool) Assigned() []*CPU {
	var assigned []*CPU
	for _, c := range p.cpus {
		if c.Running != nil {
			assigned = append(assigned, c)
		}
	}
	return assigned
}

// All returns every CPU in increasing ID order.
func (p *Pool) All() []*CPU {
	return p.cpus
}
