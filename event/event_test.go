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
package event

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPopOrder(t *testing.T) {
	tests := []struct {
		description string
		insert      []Event
		want        []Event
	}{{
		description: "ordered by time",
		insert: []Event{
			{Kind: Arrival, Time: 30, PID: 1},
			{Kind: Arrival, Time: 10, PID: 2},
			{Kind: Arrival, Time: 20, PID: 3},
		},
		want: []Event{
			{Kind: Arrival, Time: 10, PID: 2},
			{Kind: Arrival, Time: 20, PID: 3},
			{Kind: Arrival, Time: 30, PID: 1},
		},
	}, {
		description: "end finalised before arrival at the same timestamp",
		insert: []Event{
			{Kind: Arrival, Time: 10, PID: 1},
			{Kind: End, Time: 10, PID: 2, CPU: 1},
		},
		want: []Event{
			{Kind: End, Time: 10, PID: 2, CPU: 1},
			{Kind: Arrival, Time: 10, PID: 1},
		},
	}, {
		description: "simultaneous arrivals break by pid",
		insert: []Event{
			{Kind: Arrival, Time: 5, PID: 7},
			{Kind: Arrival, Time: 5, PID: 2},
			{Kind: Arrival, Time: 5, PID: 4},
		},
		want: []Event{
			{Kind: Arrival, Time: 5, PID: 2},
			{Kind: Arrival, Time: 5, PID: 4},
			{Kind: Arrival, Time: 5, PID: 7},
		},
	}, {
		description: "simultaneous ends break by cpu",
		insert: []Event{
			{Kind: End, Time: 5, PID: 1, CPU: 3},
			{Kind: End, Time: 5, PID: 2, CPU: 1},
		},
		want: []Event{
			{Kind: End, Time: 5, PID: 2, CPU: 1},
			{Kind: End, Time: 5, PID: 1, CPU: 3},
		},
	}}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			tree := NewTree()
			for _, e := range test.insert {
				tree.Insert(e)
			}
			var got []Event
			for {
				e, ok := tree.Pop()
				if !ok {
					break
				}
				got = append(got, e)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("pop order: diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	tree := NewTree()
	e := Event{Kind: Arrival, Time: 10, PID: 1}
	tree.Insert(e)
	got, ok := tree.Peek()
	if !ok || got != e {
		t.Errorf("Peek() = (%s, %t), want (%s, true)", got, ok, e)
	}
	if tree.Len() != 1 {
		t.Errorf("Len() after Peek = %d, want 1", tree.Len())
	}
}

// TestDeleteByEquality confirms that withdrawal matches on logical fields
// only, so an event built independently of the inserted value deletes it.
func TestDeleteByEquality(t *testing.T) {
	tree := NewTree()
	tree.Insert(Event{Kind: End, Time: 40, PID: 3, CPU: 2})
	tree.Insert(Event{Kind: End, Time: 40, PID: 3, CPU: 1})
	if !tree.Delete(Event{Kind: End, Time: 40, PID: 3, CPU: 2}) {
		t.Errorf("Delete of a pending event = false, want true")
	}
	if tree.Delete(Event{Kind: End, Time: 41, PID: 3, CPU: 1}) {
		t.Errorf("Delete with a mismatched time = true, want false")
	}
	want := []Event{{Kind: End, Time: 40, PID: 3, CPU: 1}}
	if diff := cmp.Diff(want, tree.Pending()); diff != "" {
		t.Errorf("pending events: diff (-want +got):\n%s", diff)
	}
}
