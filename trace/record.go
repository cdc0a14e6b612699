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
package trace

import (
	"fmt"
	"io"

	log "github.com/golang/glog"
)

// RecordKind discriminates the scheduling decisions a simulation reports.
type RecordKind int8

const (
	// TimeStamp marks the beginning of one event-loop iteration.
	TimeStamp RecordKind = iota
	// Enqueue reports a process arriving and joining the run queue.
	Enqueue
	// Assigned reports a dispatch of a process to an idle CPU.
	Assigned
	// Preempt reports a running process being replaced on its CPU.
	Preempt
	// Expired reports a timeslice expiry for a process that is not yet done.
	Expired
	// Finish reports a process completing its burst.
	Finish
	// AllDone is the terminal record of a simulation.
	AllDone
)

func (k RecordKind) String() string {
	switch k {
	case TimeStamp:
		return "TimeStamp"
	case Enqueue:
		return "Enqueue"
	case Assigned:
		return "Assigned"
	case Preempt:
		return "Preempt"
	case Expired:
		return "Expired"
	case Finish:
		return "Finish"
	case AllDone:
		return "AllDone"
	}
	return "<unknown>"
}

// Record is one scheduling decision at one simulated instant.  Which fields
// are meaningful depends on Kind: Enqueue and Finish carry only PID; Assigned
// and Expired carry PID and CPU; Preempt carries the outgoing PID, the
// IncomingPID, and the CPU; TimeStamp and AllDone carry only Time.
type Record struct {
	Kind        RecordKind `json:"kind"`
	Time        Timestamp  `json:"time"`
	PID         PID        `json:"pid,omitempty"`
	IncomingPID PID        `json:"incomingPid,omitempty"`
	CPU         CPUID      `json:"cpu,omitempty"`
}

// String renders the record as its canonical trace line.
func (r Record) String() string {
	switch r.Kind {
	case TimeStamp:
		return fmt.Sprintf("Time stamp: %d", r.Time)
	case Enqueue:
		return fmt.Sprintf("Enqueue PID=%d", r.PID)
	case Assigned:
		return fmt.Sprintf("Assigned process with PID=%d to CPU %d", r.PID, r.CPU)
	case Preempt:
		return fmt.Sprintf("Preempt process PID=%d and entering process PID=%d to CPU %d", r.PID, r.IncomingPID, r.CPU)
	case Expired:
		return fmt.Sprintf("Expired time-slice of PID=%d in CPU %d", r.PID, r.CPU)
	case Finish:
		return fmt.Sprintf("Finish PID=%d", r.PID)
	case AllDone:
		return fmt.Sprintf("All done at Time stamp = %d", r.Time)
	}
	return fmt.Sprintf("<unknown record kind %d>", r.Kind)
}

// Emitter receives trace records as the engine makes scheduling decisions.
type Emitter interface {
	Emit(r Record)
}

// SliceEmitter accumulates emitted records in order.
type SliceEmitter struct {
	records []Record
}

// Emit appends r to the accumulated records.
func (se *SliceEmitter) Emit(r Record) {
	se.records = append(se.records, r)
}

// Records returns the records emitted so far, in emission order.
func (se *SliceEmitter) Records() []Record {
	return se.records
}

// WriterEmitter renders each record as its canonical line on an io.Writer.
type WriterEmitter struct {
	w io.Writer
}

// NewWriterEmitter returns a WriterEmitter printing to w.
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{w: w}
}

// Emit writes r's canonical line.  Write failures are logged and otherwise
// ignored; the simulation's result does not depend on the sink.
func (we *WriterEmitter) Emit(r Record) {
	if _, err := fmt.Fprintln(we.w, r); err != nil {
		log.Errorf("failed to write trace record: %s", err)
	}
}

// nopEmitter discards all records.
type nopEmitter struct{}

func (nopEmitter) Emit(Record) {}

// NopEmitter returns an Emitter that discards everything it receives.
func NopEmitter() Emitter {
	return nopEmitter{}
}
