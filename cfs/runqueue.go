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
// Package cfs implements the ready set of a completely-fair scheduler: a run
// queue of runnable processes ordered by virtual runtime, the
// niceness-to-weight mapping, and the timeslice and virtual-runtime
// arithmetic.
package cfs

import (
	"sync"

	"github.com/thi2351/cfssim/rbtree"
	"github.com/thi2351/cfssim/trace"
)

const (
	// SchedLatency is the target period, in simulated nanoseconds, over which
	// every runnable process receives at least one slice.
	SchedLatency trace.Duration = 200
	// MinGranularity is the lower bound on any timeslice, and the minimum
	// time a process must run before it may be preempted.
	MinGranularity trace.Duration = 10
	// WeightNorm is the weight at which virtual runtime advances at the same
	// rate as real runtime.
	WeightNorm = 1024
)

// RunQueue holds the runnable-but-not-running processes, ordered by
// (VRuntime asc, Weight desc, PID asc), and the sum of their weights.
// Mutations are serialised by an internal mutex so the queue may be shared
// by a multi-threaded host; the simulator itself drives it from one
// goroutine.
type RunQueue struct {
	mu          sync.Mutex
	tree        *rbtree.Tree[*Process]
	totalWeight uint64
}

// NewRunQueue returns an empty run queue.
func NewRunQueue() *RunQueue {
	return &RunQueue{tree: rbtree.New(Compare)}
}

// Enqueue adds p to the queue and accounts its weight.
func (rq *RunQueue) Enqueue(p *Process) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if rq.tree.Insert(p) {
		rq.totalWeight += p.Weight
	}
}

// Dequeue removes p from the queue, returning whether it was present.  The
// weight total is only adjusted when a process is actually removed, so
// dequeueing an absent process is harmless.
func (rq *RunQueue) Dequeue(p *Process) bool {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if !rq.tree.Delete(p) {
		return false
	}
	rq.totalWeight -= p.Weight
	return true
}

// PickNext returns the process with the least virtual runtime without
// removing it, or nil if the queue is empty.  Ties go to the heaviest
// weight, then the smallest PID.
func (rq *RunQueue) PickNext() *Process {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	p, ok := rq.tree.Min()
	if !ok {
		return nil
	}
	return p
}

// Len returns the number of queued processes.
func (rq *RunQueue) Len() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.tree.Len()
}

// TotalWeight returns the sum of the weights of the queued processes.
func (rq *RunQueue) TotalWeight() uint64 {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.totalWeight
}

// Processes returns the queued processes in queue order.
func (rq *RunQueue) Processes() []*Process {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.tree.Items()
}

// Timeslice returns the slice p is entitled to under the current weighted
// landscape: SchedLatency scaled by p's share of the total runnable weight,
// clamped below by MinGranularity.  The denominator is the queued weight
// plus runningWeight, the weights of all currently-running processes --
// queued weight alone undercounts the landscape whenever CPUs are busy.
func (rq *RunQueue) Timeslice(p *Process, runningWeight uint64) trace.Duration {
	rq.mu.Lock()
	w := rq.totalWeight + runningWeight
	rq.mu.Unlock()
	if w == 0 {
		w = 1
	}
	slice := trace.Duration(uint64(SchedLatency) * p.Weight / w)
	if slice < MinGranularity {
		slice = MinGranularity
	}
	return slice
}

// UpdateVRuntime advances p's virtual runtime by delta real nanoseconds
// scaled by WeightNorm / p.Weight.  p must not be enqueued: the queue is
// keyed on VRuntime.
func (rq *RunQueue) UpdateVRuntime(p *Process, delta trace.Duration) {
	p.VRuntime += float64(delta) * WeightNorm / float64(p.Weight)
}

// TaskTick repositions p after it has consumed elapsed nanoseconds: dequeue,
// advance virtual runtime, re-enqueue.  When p was running rather than
// queued the dequeue is a no-op and TaskTick moves it into the queue, which
// is exactly what descheduling needs.
func (rq *RunQueue) TaskTick(p *Process, elapsed trace.Duration) {
	rq.Dequeue(p)
	rq.UpdateVRuntime(p, elapsed)
	rq.Enqueue(p)
}
