// Copyright 2025 vulndeck
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package impact

import (
	"math"
	"testing"

	"github.com/vulndeck/vulndeck/pkg/api/types"
)

func TestScore(t *testing.T) {
	log2 := math.Log10(2)
	testCases := []struct {
		name        string
		severity    types.Severity
		projects    int
		images      int
		occurrences int
		want        float64
	}{
		{
			name:     "zero occurrences keeps the severity base",
			severity: types.SeverityHigh,
			want:     8,
		},
		{
			name:        "critical single occurrence clamps at the ceiling",
			severity:    types.SeverityCritical,
			projects:    1,
			images:      1,
			occurrences: 1,
			// raw = 10 * (1 + 2*log10(2)*0.2 + log10(2)*0.1) > 10
			want: 10,
		},
		{
			name:        "medium single occurrence",
			severity:    types.SeverityMedium,
			projects:    1,
			images:      1,
			occurrences: 1,
			want:        5 * (1 + 2*log2*0.2 + log2*0.1),
		},
		{
			name:        "low spread across many projects",
			severity:    types.SeverityLow,
			projects:    9,
			images:      9,
			occurrences: 99,
			want:        2 * (1 + 2*0.2 + 2*0.1),
		},
		{
			name:        "unknown severity scores from base one",
			severity:    types.SeverityUnknown,
			projects:    1,
			images:      1,
			occurrences: 1,
			want:        1 * (1 + 2*log2*0.2 + log2*0.1),
		},
		{
			name:        "unrecognized severity falls back to base one",
			severity:    types.Severity("WONTFIX"),
			projects:    1,
			images:      1,
			occurrences: 1,
			want:        1 * (1 + 2*log2*0.2 + log2*0.1),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.severity, tc.projects, tc.images, tc.occurrences)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Score(%s, %d, %d, %d) = %v, want %v",
					tc.severity, tc.projects, tc.images, tc.occurrences, got, tc.want)
			}
		})
	}
}

func TestScore_MonotonicInOccurrences(t *testing.T) {
	prev := 0.0
	for n := 1; n <= 1_000_000_000; n *= 10 {
		got := Score(types.SeverityMedium, 3, 5, n)
		if got < prev {
			t.Fatalf("score decreased at %d occurrences: %v < %v", n, got, prev)
		}
		if got > MaxScore {
			t.Fatalf("score exceeded ceiling at %d occurrences: %v", n, got)
		}
		prev = got
	}
}

func TestScore_NeverExceedsCeiling(t *testing.T) {
	for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityHigh, types.SeverityMedium, types.SeverityLow, types.SeverityUnknown} {
		if got := Score(sev, 1000, 1000, 1_000_000); got > MaxScore {
			t.Errorf("Score(%s, 1000, 1000, 1e6) = %v, want <= %v", sev, got, MaxScore)
		}
	}
}
