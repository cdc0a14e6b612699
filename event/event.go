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
// Package event holds the pending-event tree: the canonical, time-ordered
// schedule of future scheduler actions.
package event

import (
	"fmt"

	"github.com/thi2351/cfssim/rbtree"
	"github.com/thi2351/cfssim/trace"
)

// Kind distinguishes the two scheduler events.
type Kind int8

const (
	// Arrival is a process becoming runnable.  Arrival events carry a PID
	// and no CPU.
	Arrival Kind = iota
	// End is a timeslice expiry on a CPU.  End events carry both a PID and
	// a CPU.
	End
)

func (k Kind) String() string {
	switch k {
	case Arrival:
		return "ARRIVAL"
	case End:
		return "END"
	}
	return "<unknown>"
}

// Event is one pending scheduler action.  Events are compared and deleted
// purely on their logical fields, never on identity.
type Event struct {
	Kind Kind
	Time trace.Timestamp
	PID  trace.PID
	CPU  trace.CPUID
}

func (e Event) String() string {
	if e.Kind == End {
		return fmt.Sprintf("%s t=%d %s %s", e.Kind, e.Time, e.PID, e.CPU)
	}
	return fmt.Sprintf("%s t=%d %s", e.Kind, e.Time, e.PID)
}

// Compare orders events by ascending time; at equal times End orders before
// Arrival, so expiries at a timestamp are finalised before arrivals at that
// same timestamp.  Remaining ties break by PID for arrivals and by CPU for
// ends, making the order total over distinct events.
func Compare(a, b Event) int {
	switch {
	case a.Time < b.Time:
		return -1
	case a.Time > b.Time:
		return 1
	}
	if a.Kind != b.Kind {
		if a.Kind == End {
			return -1
		}
		return 1
	}
	if a.Kind == Arrival {
		switch {
		case a.PID < b.PID:
			return -1
		case a.PID > b.PID:
			return 1
		}
		return 0
	}
	switch {
	case a.CPU < b.CPU:
		return -1
	case a.CPU > b.CPU:
		return 1
	}
	return 0
}

// Tree is the set of pending events.  Events are stored by value, so
// inserters retain ownership of what they pass in.
type Tree struct {
	tree *rbtree.Tree[Event]
}

// NewTree returns an empty event tree.
func NewTree() *Tree {
	return &Tree{tree: rbtree.New(Compare)}
}

// Insert schedules e.
func (t *Tree) Insert(e Event) {
	t.tree.Insert(e)
}

// Peek returns the earliest pending event without removing it.
func (t *Tree) Peek() (Event, bool) {
	return t.tree.Min()
}

// Pop removes and returns the earliest pending event.
func (t *Tree) Pop() (Event, bool) {
	e, ok := t.tree.Min()
	if !ok {
		return Event{}, false
	}
	t.tree.Delete(e)
	return e, true
}

// Delete withdraws the event exactly matching e, returning whether it was
// pending.
func (t *Tree) Delete(e Event) bool {
	return t.tree.Delete(e)
}

// Len returns the number of pending events.
func (t *Tree) Len() int {
	return t.tree.Len()
}

// Pending returns the pending events in firing order.
func (t *Tree) Pending() []Event {
	return t.tree.Items()
}
