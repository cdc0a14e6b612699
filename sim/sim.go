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
// Package sim contains the event loop of the fair-scheduler simulator.  It
// consumes the pending-event tree, coordinates the run queue and the CPU
// pool, and emits one trace record per scheduling decision.  The simulation
// is strictly single-threaded and a pure function of the process list and
// the CPU count.
package sim

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/cfs"
	"github.com/thi2351/cfssim/cpupool"
	"github.com/thi2351/cfssim/event"
	"github.com/thi2351/cfssim/trace"
)

// ProcessSpec describes one process of the input batch.
type ProcessSpec struct {
	PID     trace.PID       `json:"pid"`
	Nice    int             `json:"nice"`
	Arrival trace.Timestamp `json:"arrival"`
	Burst   trace.Duration  `json:"burst"`
}

// Option configures a Simulator.
type Option func(s *Simulator)

// WithEmitter directs trace records to e instead of discarding them.
func WithEmitter(e trace.Emitter) Option {
	return func(s *Simulator) {
		s.emitter = e
	}
}

// CheckInvariants makes the engine verify its structural invariants after
// every event.  A violation aborts the run with a codes.Internal error: it
// indicates a bug in the engine, never bad input.
func CheckInvariants(check bool) Option {
	return func(s *Simulator) {
		s.checkInvariants = check
	}
}

// Result summarises a completed simulation.
type Result struct {
	// FinishTime is the timestamp of the last processed event, at which the
	// final process completed.
	FinishTime trace.Timestamp `json:"finishTime"`
	// Events is the number of event-loop iterations; arrivals coalesced
	// into an earlier iteration's batch are not counted separately.
	Events int `json:"events"`
}

// Simulator holds the state of one simulation run.  A Simulator is
// single-use: construct with New, call Run once.
type Simulator struct {
	procs  []*cfs.Process
	bursts map[trace.PID]trace.Duration
	rq     *cfs.RunQueue
	pool   *cpupool.Pool
	events *event.Tree

	emitter         trace.Emitter
	checkInvariants bool

	arrived   map[trace.PID]bool
	completed int
	// lastVRuntime remembers each process's previous virtual runtime so the
	// invariant check can reject regressions.
	lastVRuntime map[trace.PID]float64
}

// New builds a Simulator over the given process batch and CPU count.
// Processes must have unique nonnegative PIDs and positive bursts; numCPU
// must be positive.
func New(specs []ProcessSpec, numCPU int, opts ...Option) (*Simulator, error) {
	if numCPU <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "number of CPUs must be positive, got %d", numCPU)
	}
	if len(specs) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "no processes to simulate")
	}
	s := &Simulator{
		bursts:       make(map[trace.PID]trace.Duration, len(specs)),
		rq:           cfs.NewRunQueue(),
		pool:         cpupool.New(numCPU),
		events:       event.NewTree(),
		emitter:      trace.NopEmitter(),
		arrived:      make(map[trace.PID]bool, len(specs)),
		lastVRuntime: make(map[trace.PID]float64, len(specs)),
	}
	seen := make(map[trace.PID]bool, len(specs))
	for _, spec := range specs {
		if !spec.PID.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "invalid %s", spec.PID)
		}
		if seen[spec.PID] {
			return nil, status.Errorf(codes.InvalidArgument, "duplicate %s", spec.PID)
		}
		if spec.Burst == 0 {
			return nil, status.Errorf(codes.InvalidArgument, "%s has a non-positive burst", spec.PID)
		}
		seen[spec.PID] = true
		p := cfs.NewProcess(spec.PID, spec.Nice, spec.Burst)
		s.procs = append(s.procs, p)
		s.bursts[p.PID] = spec.Burst
		s.events.Insert(event.Event{Kind: event.Arrival, Time: spec.Arrival, PID: p.PID})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run drives the simulation to completion and returns its result.  With
// invariant checking enabled it returns a codes.Internal error on the first
// violated invariant.
func (s *Simulator) Run() (*Result, error) {
	var t trace.Timestamp
	events := 0
	for s.completed < len(s.procs) {
		e, ok := s.events.Pop()
		if !ok {
			return nil, status.Errorf(codes.Internal,
				"event tree exhausted with %d of %d processes incomplete", len(s.procs)-s.completed, len(s.procs))
		}
		events++
		t = e.Time
		s.emit(trace.Record{Kind: trace.TimeStamp, Time: t})
		var err error
		switch e.Kind {
		case event.Arrival:
			err = s.handleArrival(e)
		case event.End:
			err = s.handleEnd(e)
		}
		if err != nil {
			return nil, err
		}
		if s.checkInvariants {
			if err := s.verifyInvariants(t); err != nil {
				return nil, err
			}
		}
	}
	if s.checkInvariants {
		var busy, bursts trace.Duration
		for _, c := range s.pool.All() {
			busy += c.RunningTime
		}
		for _, b := range s.bursts {
			bursts += b
		}
		if busy != bursts {
			return nil, status.Errorf(codes.Internal,
				"CPUs accumulated %d busy ns over the run, but bursts sum to %d", busy, bursts)
		}
	}
	s.emit(trace.Record{Kind: trace.AllDone, Time: t})
	return &Result{FinishTime: t, Events: events}, nil
}

// handleArrival materialises every arrival at this timestamp, refreshes the
// timeslices of running processes under the changed weight landscape, fills
// idle CPUs from the run queue, and finally preempts eligible CPUs, at most
// once per materialised arrival.
func (s *Simulator) handleArrival(e event.Event) error {
	t := e.Time

	// Coalesce all arrivals at this timestamp into one batch.
	arrivals := 0
	for {
		s.enqueueArrival(e.PID, t)
		arrivals++
		next, ok := s.events.Peek()
		if !ok || next.Kind != event.Arrival || next.Time != t {
			break
		}
		s.events.Pop()
		e = next
	}

	s.refreshTimeslices(t)
	arrivals -= s.fillIdleCPUs(t)
	return s.preempt(t, arrivals)
}

// enqueueArrival puts a newly arrived process on the run queue.
func (s *Simulator) enqueueArrival(pid trace.PID, t trace.Timestamp) {
	p := s.processByPID(pid)
	s.arrived[pid] = true
	s.rq.Enqueue(p)
	s.emit(trace.Record{Kind: trace.Enqueue, Time: t, PID: pid})
}

// refreshTimeslices revisits every assigned CPU after the runnable weight
// changed.  Each running process's pending END event is withdrawn; if the
// process has already overrun its entitlement under the new landscape it is
// descheduled into the run queue, otherwise a replacement END is scheduled
// under the new slice.
func (s *Simulator) refreshTimeslices(t trace.Timestamp) {
	for _, c := range s.pool.Assigned() {
		p := c.Running
		newSlice := s.rq.Timeslice(p, s.pool.RunningWeight())
		runFor := trace.Duration(t - c.LastDispatch)
		s.events.Delete(event.Event{Kind: event.End, Time: c.SliceEnd, PID: p.PID, CPU: c.ID})
		if runFor >= newSlice {
			// The process has already overrun its entitlement under the new
			// landscape: expire it now rather than at the withdrawn END.
			s.rq.TaskTick(p, runFor)
			p.Consume(runFor)
			s.pool.Release(c, runFor)
			if p.Done() {
				s.rq.Dequeue(p)
				s.finish(p, t)
			} else {
				s.emit(trace.Record{Kind: trace.Expired, Time: t, PID: p.PID, CPU: c.ID})
			}
			continue
		}
		// The replacement slice is clamped by the burst remaining as of the
		// dispatch, like the END scheduled at dispatch time was.
		end := c.LastDispatch + trace.Timestamp(minDuration(newSlice, p.Remaining))
		c.SliceEnd = end
		s.events.Insert(event.Event{Kind: event.End, Time: end, PID: p.PID, CPU: c.ID})
	}
}

// fillIdleCPUs dispatches minimum-vruntime processes onto idle CPUs until
// one or the other runs out, returning the number of dispatches.
func (s *Simulator) fillIdleCPUs(t trace.Timestamp) int {
	dispatched := 0
	for s.pool.PeekIdle() != nil && s.rq.Len() > 0 {
		p := s.rq.PickNext()
		s.rq.Dequeue(p)
		c := s.pool.Dispatch(p, t)
		s.scheduleEnd(c, p, t)
		s.emit(trace.Record{Kind: trace.Assigned, Time: t, PID: p.PID, CPU: c.ID})
		dispatched++
	}
	return dispatched
}

// preempt replaces running processes with queue heads, at most budget times.
// The victim is the assigned CPU whose process has the largest virtual
// runtime among those that have run at least MinGranularity; the ID-order
// scan breaks ties in favour of the lowest CPU.  The incoming process takes
// the victim's own CPU.
func (s *Simulator) preempt(t trace.Timestamp, budget int) error {
	for budget > 0 && s.rq.Len() > 0 {
		var victim *cpupool.CPU
		for _, c := range s.pool.Assigned() {
			if trace.Duration(t-c.LastDispatch) < cfs.MinGranularity {
				continue
			}
			if victim == nil || c.Running.VRuntime > victim.Running.VRuntime {
				victim = c
			}
		}
		if victim == nil {
			return nil
		}
		old := victim.Running
		elapsed := trace.Duration(t - victim.LastDispatch)
		s.events.Delete(event.Event{Kind: event.End, Time: victim.SliceEnd, PID: old.PID, CPU: victim.ID})
		s.rq.TaskTick(old, elapsed)
		old.Consume(elapsed)
		s.pool.Release(victim, elapsed)
		// The victim's pending END was clamped by its remaining burst and
		// had not fired, so it cannot have completed here; the guard keeps
		// the trace consistent regardless.
		preempted := true
		if old.Done() {
			s.rq.Dequeue(old)
			s.finish(old, t)
			preempted = false
		}
		next := s.rq.PickNext()
		if next == nil {
			return nil
		}
		s.rq.Dequeue(next)
		if err := s.pool.DispatchTo(victim, next, t); err != nil {
			return err
		}
		s.scheduleEnd(victim, next, t)
		if preempted {
			s.emit(trace.Record{Kind: trace.Preempt, Time: t, PID: old.PID, IncomingPID: next.PID, CPU: victim.ID})
		} else {
			s.emit(trace.Record{Kind: trace.Assigned, Time: t, PID: next.PID, CPU: victim.ID})
		}
		budget--
	}
	return nil
}

// handleEnd finalises a timeslice expiry: the expiring process is ticked
// back into the run queue (or completed), and the freed CPU immediately
// takes the queue head if one exists.
func (s *Simulator) handleEnd(e event.Event) error {
	t := e.Time
	c := s.pool.ByID(e.CPU)
	if c == nil || c.Running == nil || c.Running.PID != e.PID {
		// Stale expiry superseded by a preemption; nothing to finalise.
		return nil
	}
	p := c.Running
	runDone := trace.Duration(t - c.LastDispatch)
	p.Consume(runDone)
	s.rq.TaskTick(p, runDone)
	s.pool.Release(c, runDone)
	if p.Done() {
		s.rq.Dequeue(p)
		s.finish(p, t)
	} else {
		s.emit(trace.Record{Kind: trace.Expired, Time: t, PID: p.PID, CPU: c.ID})
	}
	if next := s.rq.PickNext(); next != nil {
		s.rq.Dequeue(next)
		if err := s.pool.DispatchTo(c, next, t); err != nil {
			return err
		}
		s.scheduleEnd(c, next, t)
		s.emit(trace.Record{Kind: trace.Assigned, Time: t, PID: next.PID, CPU: c.ID})
	}
	return nil
}

// scheduleEnd computes p's timeslice on c and schedules the matching END
// event, clamped so a process never runs past its remaining burst.
func (s *Simulator) scheduleEnd(c *cpupool.CPU, p *cfs.Process, t trace.Timestamp) {
	slice := s.rq.Timeslice(p, s.pool.RunningWeight())
	end := t + trace.Timestamp(minDuration(slice, p.Remaining))
	c.SliceEnd = end
	s.events.Insert(event.Event{Kind: event.End, Time: end, PID: p.PID, CPU: c.ID})
}

func (s *Simulator) finish(p *cfs.Process, t trace.Timestamp) {
	s.completed++
	s.emit(trace.Record{Kind: trace.Finish, Time: t, PID: p.PID})
}

func (s *Simulator) emit(r trace.Record) {
	s.emitter.Emit(r)
}

// Processes returns the simulated processes in input order.  After Run
// completes, each carries its final virtual runtime and a zero remaining
// burst.
func (s *Simulator) Processes() []*cfs.Process {
	return s.procs
}

func (s *Simulator) processByPID(pid trace.PID) *cfs.Process {
	for _, p := range s.procs {
		if p.PID == pid {
			return p
		}
	}
	return nil
}

func minDuration(a, b trace.Duration) trace.Duration {
	if a < b {
		return a
	}
	return b
}
