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
// Package storage keeps completed simulation runs in a bounded in-memory
// cache so the serving layer can answer trace and metrics queries without
// re-simulating.
package storage

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/simplelru"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/analysis"
	"github.com/thi2351/cfssim/sim"
	"github.com/thi2351/cfssim/trace"
)

// Run is one completed simulation and its derived data.
type Run struct {
	ID         string            `json:"id"`
	NumCPU     int               `json:"numCpu"`
	Processes  []sim.ProcessSpec `json:"processes"`
	FinishTime trace.Timestamp   `json:"finishTime"`
	Records    []trace.Record    `json:"records"`
	Report     *analysis.Report  `json:"report"`
}

// RunStore is a thread-safe, size-bounded store of completed runs.  When
// full, adding a run evicts the least recently used one.
type RunStore struct {
	mu  sync.Mutex
	lru *simplelru.LRU
}

// NewRunStore returns a RunStore holding at most size runs.
func NewRunStore(size int) (*RunStore, error) {
	if size <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "store size must be positive, got %d", size)
	}
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create LRU: %s", err)
	}
	return &RunStore{lru: lru}, nil
}

// Put stores run under a freshly generated ID, which is also written back
// onto the run and returned.
func (rs *RunStore) Put(run *Run) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	run.ID = uuid.NewString()
	rs.lru.Add(run.ID, run)
	return run.ID
}

// Get returns the run stored under id.
func (rs *RunStore) Get(id string) (*Run, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	value, ok := rs.lru.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no run %q", id)
	}
	return value.(*Run), nil
}

// Len returns the number of stored runs.
func (rs *RunStore) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lru.Len()
}

// IDs returns the stored run IDs in lexical order.
func (rs *RunStore) IDs() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var ids []string
	for _, key := range rs.lru.Keys() {
		ids = append(ids, key.(string))
	}
	sort.Strings(ids)
	return ids
}
