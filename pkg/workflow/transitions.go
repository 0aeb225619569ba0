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

// Package workflow implements the finite-state machine governing the
// remediation status of a vulnerability instance, with a transactional audit
// trail and best-effort bulk operations.
package workflow

import (
	"fmt"

	"github.com/vulndeck/vulndeck/pkg/api/types"
)

// transitions is the single source of truth for status reachability. Every
// operation that needs validity consults this table; the rules are never
// re-encoded anywhere else. There is no terminal state: CLOSED, IGNORED and
// FALSE_POSITIVE all reopen to OPEN.
var transitions = map[types.Status][]types.Status{
	types.StatusOpen:          {types.StatusAssigned, types.StatusInProgress, types.StatusIgnored, types.StatusFalsePositive},
	types.StatusAssigned:      {types.StatusInProgress, types.StatusOpen, types.StatusIgnored},
	types.StatusInProgress:    {types.StatusFixSubmitted, types.StatusAssigned, types.StatusIgnored},
	types.StatusFixSubmitted:  {types.StatusVerifying, types.StatusInProgress},
	types.StatusVerifying:     {types.StatusFixed, types.StatusInProgress},
	types.StatusFixed:         {types.StatusClosed, types.StatusOpen}, // OPEN = regression reopen
	types.StatusClosed:        {types.StatusOpen},
	types.StatusIgnored:       {types.StatusOpen},
	types.StatusFalsePositive: {types.StatusOpen},
}

// IsValidTransition reports whether to is reachable from from in one step.
func IsValidTransition(from, to types.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AvailableTransitions returns the statuses reachable from current. An
// unrecognized status yields an empty set, not an error.
func AvailableTransitions(current types.Status) []types.Status {
	out := make([]types.Status, len(transitions[current]))
	copy(out, transitions[current])
	return out
}

// InvalidTransitionError signals a requested transition outside the table.
type InvalidTransitionError struct {
	From types.Status
	To   types.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Invalid transition from %s to %s", e.From, e.To)
}
