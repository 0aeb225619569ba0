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

// Package impact aggregates a vulnerability's occurrences across projects
// and container images into a composite severity-weighted score, with
// rollups to project and organization granularity.
package impact

import (
	"math"

	"github.com/vulndeck/vulndeck/pkg/api/types"
)

// MaxScore is the fixed ceiling every impact score is clamped to, so scores
// compose predictably with the thresholds below.
const MaxScore = 10.0

// Impact thresholds used by the project and organization summaries.
const (
	CriticalImpactThreshold = 9.0
	HighImpactThreshold     = 7.0
)

var severityBase = map[types.Severity]float64{
	types.SeverityCritical: 10,
	types.SeverityHigh:     8,
	types.SeverityMedium:   5,
	types.SeverityLow:      2,
	types.SeverityUnknown:  1,
}

// Score computes the composite impact score. Severity sets the floor; the
// log-scaled spread and occurrence factors give diminishing returns, so a
// vulnerability with thousands of identical occurrences does not dwarf one
// that is merely pervasive across many distinct projects.
func Score(severity types.Severity, projectCount, imageCount, occurrences int) float64 {
	base, ok := severityBase[severity]
	if !ok {
		base = 1
	}
	spreadFactor := math.Log10(float64(projectCount)+1) + math.Log10(float64(imageCount)+1)
	occurrenceFactor := math.Log10(float64(occurrences) + 1)
	raw := base * (1 + spreadFactor*0.2 + occurrenceFactor*0.1)
	return math.Min(MaxScore, raw)
}
