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

package workflow

import (
	"testing"

	"github.com/vulndeck/vulndeck/pkg/api/types"
)

// expected re-states the full reachability table so any drift in the
// production table fails loudly.
var expected = map[types.Status]map[types.Status]bool{
	types.StatusOpen:          {types.StatusAssigned: true, types.StatusInProgress: true, types.StatusIgnored: true, types.StatusFalsePositive: true},
	types.StatusAssigned:      {types.StatusInProgress: true, types.StatusOpen: true, types.StatusIgnored: true},
	types.StatusInProgress:    {types.StatusFixSubmitted: true, types.StatusAssigned: true, types.StatusIgnored: true},
	types.StatusFixSubmitted:  {types.StatusVerifying: true, types.StatusInProgress: true},
	types.StatusVerifying:     {types.StatusFixed: true, types.StatusInProgress: true},
	types.StatusFixed:         {types.StatusClosed: true, types.StatusOpen: true},
	types.StatusClosed:        {types.StatusOpen: true},
	types.StatusIgnored:       {types.StatusOpen: true},
	types.StatusFalsePositive: {types.StatusOpen: true},
}

func TestIsValidTransition_FullGrid(t *testing.T) {
	for _, from := range types.AllStatuses {
		for _, to := range types.AllStatuses {
			want := expected[from][to]
			if got := IsValidTransition(from, to); got != want {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsValidTransition_OpenReachableFromEverywhere(t *testing.T) {
	for _, from := range types.AllStatuses {
		if from == types.StatusOpen {
			continue
		}
		if !IsValidTransition(from, types.StatusOpen) {
			t.Errorf("OPEN must be reachable from %s", from)
		}
	}

	// No status except OPEN is reachable from every other status.
	for _, to := range types.AllStatuses {
		if to == types.StatusOpen {
			continue
		}
		reachableFromAll := true
		for _, from := range types.AllStatuses {
			if from == to {
				continue
			}
			if !IsValidTransition(from, to) {
				reachableFromAll = false
				break
			}
		}
		if reachableFromAll {
			t.Errorf("%s must not be reachable from every other status", to)
		}
	}
}

func TestAvailableTransitions(t *testing.T) {
	for _, from := range types.AllStatuses {
		got := AvailableTransitions(from)
		if len(got) == 0 {
			t.Errorf("AvailableTransitions(%s) is empty; every status needs an outbound edge", from)
		}
		for _, to := range got {
			if !expected[from][to] {
				t.Errorf("AvailableTransitions(%s) contains unexpected %s", from, to)
			}
		}
		if len(got) != len(expected[from]) {
			t.Errorf("AvailableTransitions(%s) = %v, want %d entries", from, got, len(expected[from]))
		}
	}
}

func TestAvailableTransitions_UnknownStatus(t *testing.T) {
	if got := AvailableTransitions(types.Status("BOGUS")); len(got) != 0 {
		t.Errorf("AvailableTransitions(BOGUS) = %v, want empty set", got)
	}
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: types.StatusFixed, To: types.StatusVerifying}
	want := "Invalid transition from FIXED to VERIFYING"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
