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
// Package testhelpers contains helpers for tests
package testhelpers

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thi2351/cfssim/trace"
)

// RenderRecords renders records as their canonical trace lines, one per
// line, for golden comparisons.
func RenderRecords(records []trace.Record) string {
	var lines []string
	for _, r := range records {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}

// DiffRecords compares two record sequences and reports their diff.
func DiffRecords(t *testing.T, got, want []trace.Record) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected trace records: diff (-want +got):\n%s", diff)
	}
}

// Filter returns the records of the given kinds, in order.
func Filter(records []trace.Record, kinds ...trace.RecordKind) []trace.Record {
	keep := map[trace.RecordKind]bool{}
	for _, k := range kinds {
		keep[k] = true
	}
	var out []trace.Record
	for _, r := range records {
		if keep[r.Kind] {
			out = append(out, r)
		}
	}
	return out
}
