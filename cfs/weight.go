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
package cfs

// MinNice and MaxNice bound the accepted niceness range.  Niceness values
// outside the range are clamped.
const (
	MinNice = -20
	MaxNice = 19
)

// niceToWeight maps each niceness in [MinNice, MaxNice] to its scheduling
// weight.  Adjacent entries differ by a factor of roughly 1.25, so that each
// niceness step shifts a process's CPU share by about 10%.  nice=0 maps to
// WeightNorm.
var niceToWeight = [MaxNice - MinNice + 1]uint64{
	// -20 .. -16
	88761, 71755, 56483, 46273, 36291,
	// -15 .. -11
	29154, 23254, 18705, 14949, 11916,
	// -10 .. -6
	9548, 7620, 6100, 4904, 3906,
	// -5 .. -1
	3121, 2501, 1991, 1586, 1277,
	// 0 .. 4
	1024, 820, 655, 526, 423,
	// 5 .. 9
	335, 272, 215, 172, 137,
	// 10 .. 14
	110, 87, 70, 56, 45,
	// 15 .. 19
	36, 29, 23, 18, 15,
}

// WeightFromNice returns the scheduling weight for the provided niceness,
// clamping it into [MinNice, MaxNice] first.
func WeightFromNice(nice int) uint64 {
	if nice < MinNice {
		nice = MinNice
	}
	if nice > MaxNice {
		nice = MaxNice
	}
	return niceToWeight[nice-MinNice]
}
