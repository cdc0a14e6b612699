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
// Package loader parses simulator input files.  The format is one header
// line "num_cpu num_processes" followed by one line per process:
// "pid niceness arrival burst", all integers.  Blank lines are ignored.
package loader

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thi2351/cfssim/cfs"
	"github.com/thi2351/cfssim/sim"
	"github.com/thi2351/cfssim/trace"
)

// Input is a parsed simulator input: the CPU count and the process batch.
type Input struct {
	NumCPU    int               `json:"numCpu"`
	Processes []sim.ProcessSpec `json:"processes"`
}

// LoadFile parses the input file at path.
func LoadFile(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to open input file: %s", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses an input from r.  Errors carry the 1-based line number of the
// offending line.
func Load(r io.Reader) (*Input, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() ([]string, bool) {
		for sc.Scan() {
			line++
			fields := strings.Fields(sc.Text())
			if len(fields) > 0 {
				return fields, true
			}
		}
		return nil, false
	}

	header, ok := next()
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "empty input")
	}
	if len(header) != 2 {
		return nil, status.Errorf(codes.InvalidArgument, "line %d: header must be \"num_cpu num_processes\"", line)
	}
	numCPU, err := strconv.Atoi(header[0])
	if err != nil || numCPU <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "line %d: invalid CPU count %q", line, header[0])
	}
	numProc, err := strconv.Atoi(header[1])
	if err != nil || numProc <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "line %d: invalid process count %q", line, header[1])
	}

	in := &Input{NumCPU: numCPU}
	seen := map[trace.PID]bool{}
	for i := 0; i < numProc; i++ {
		fields, ok := next()
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "line %d: expected %d process lines, got %d", line, numProc, i)
		}
		spec, err := parseProcess(fields, line)
		if err != nil {
			return nil, err
		}
		if seen[spec.PID] {
			return nil, status.Errorf(codes.InvalidArgument, "line %d: duplicate %s", line, spec.PID)
		}
		seen[spec.PID] = true
		in.Processes = append(in.Processes, spec)
	}
	if extra, ok := next(); ok {
		return nil, status.Errorf(codes.InvalidArgument, "line %d: unexpected trailing content %q", line, strings.Join(extra, " "))
	}
	if err := sc.Err(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to read input: %s", err)
	}
	return in, nil
}

func parseProcess(fields []string, line int) (sim.ProcessSpec, error) {
	var spec sim.ProcessSpec
	if len(fields) != 4 {
		return spec, status.Errorf(codes.InvalidArgument, "line %d: process lines must be \"pid niceness arrival burst\"", line)
	}
	pid, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil || pid < 0 {
		return spec, status.Errorf(codes.InvalidArgument, "line %d: invalid pid %q", line, fields[0])
	}
	nice, err := strconv.Atoi(fields[1])
	if err != nil {
		return spec, status.Errorf(codes.InvalidArgument, "line %d: invalid niceness %q", line, fields[1])
	}
	if nice < cfs.MinNice || nice > cfs.MaxNice {
		return spec, status.Errorf(codes.InvalidArgument, "line %d: niceness %d out of range [%d, %d]", line, nice, cfs.MinNice, cfs.MaxNice)
	}
	arrival, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return spec, status.Errorf(codes.InvalidArgument, "line %d: invalid arrival %q", line, fields[2])
	}
	burst, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil || burst == 0 {
		return spec, status.Errorf(codes.InvalidArgument, "line %d: invalid burst %q; bursts must be positive", line, fields[3])
	}
	spec.PID = trace.PID(pid)
	spec.Nice = nice
	spec.Arrival = trace.Timestamp(arrival)
	spec.Burst = trace.Duration(burst)
	return spec, nil
}
