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
package storage

import (
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/trace"
)

func testRun(finish trace.Timestamp) *Run {
	return &Run{NumCPU: 1, FinishTime: finish}
}

func TestPutAndGet(t *testing.T) {
	store, err := NewRunStore(4)
	if err != nil {
		t.Fatalf("NewRunStore() = %s, want success", err)
	}
	id := store.Put(testRun(40))
	if id == "" {
		t.Fatalf("Put returned an empty ID")
	}
	run, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get(%q) = %s, want success", id, err)
	}
	if run.ID != id || run.FinishTime != 40 {
		t.Errorf("Get(%q) = %+v, want the stored run carrying its ID", id, run)
	}
}

func TestGetMissingRun(t *testing.T) {
	store, err := NewRunStore(4)
	if err != nil {
		t.Fatalf("NewRunStore() = %s, want success", err)
	}
	if _, err := store.Get("nope"); status.Code(err) != codes.NotFound {
		t.Errorf("Get of a missing run = %s, want NotFound", err)
	}
}

func TestEvictionDropsOldest(t *testing.T) {
	store, err := NewRunStore(2)
	if err != nil {
		t.Fatalf("NewRunStore() = %s, want success", err)
	}
	first := store.Put(testRun(10))
	second := store.Put(testRun(20))
	third := store.Put(testRun(30))
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if _, err := store.Get(first); status.Code(err) != codes.NotFound {
		t.Errorf("the oldest run survived eviction")
	}
	for _, id := range []string{second, third} {
		if _, err := store.Get(id); err != nil {
			t.Errorf("Get(%q) = %s, want the run to survive", id, err)
		}
	}
}

func TestDistinctIDs(t *testing.T) {
	store, err := NewRunStore(8)
	if err != nil {
		t.Fatalf("NewRunStore() = %s, want success", err)
	}
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		id := store.Put(testRun(trace.Timestamp(i)))
		if seen[id] {
			t.Fatalf("Put returned duplicate ID %q", id)
		}
		seen[id] = true
	}
	if got := len(store.IDs()); got != 8 {
		t.Errorf("IDs() returned %d entries, want 8", got)
	}
}

func TestRejectsNonPositiveSize(t *testing.T) {
	if _, err := NewRunStore(0); status.Code(err) != codes.InvalidArgument {
		t.Errorf("NewRunStore(0) = %s, want InvalidArgument", err)
	}
}
