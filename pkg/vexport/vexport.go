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

// Package vexport renders remediation state as a CycloneDX VEX document so
// downstream scanners can suppress what is already triaged here.
package vexport

import (
	"io"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/vulndeck/vulndeck/pkg/api/types"
)

// Item is one instance's contribution to the VEX: its CVE identity, the
// definition severity and the current remediation status.
type Item struct {
	CveID    string
	Severity types.Severity
	Status   types.Status
}

// statusAnalysisState maps remediation status onto CycloneDX impact
// analysis states.
var statusAnalysisState = map[types.Status]cyclonedx.ImpactAnalysisState{
	types.StatusOpen:          cyclonedx.IASInTriage,
	types.StatusAssigned:      cyclonedx.IASInTriage,
	types.StatusInProgress:    cyclonedx.IASExploitable,
	types.StatusFixSubmitted:  cyclonedx.IASExploitable,
	types.StatusVerifying:     cyclonedx.IASExploitable,
	types.StatusFixed:         cyclonedx.IASResolved,
	types.StatusClosed:        cyclonedx.IASResolved,
	types.StatusIgnored:       cyclonedx.IASNotAffected,
	types.StatusFalsePositive: cyclonedx.IASFalsePositive,
}

// statePrecedence orders analysis states least-remediated first. When
// instances of one CVE disagree, the least-remediated state wins.
var statePrecedence = []cyclonedx.ImpactAnalysisState{
	cyclonedx.IASExploitable,
	cyclonedx.IASInTriage,
	cyclonedx.IASNotAffected,
	cyclonedx.IASFalsePositive,
	cyclonedx.IASResolved,
}

var severityRating = map[types.Severity]cyclonedx.Severity{
	types.SeverityCritical: cyclonedx.SeverityCritical,
	types.SeverityHigh:     cyclonedx.SeverityHigh,
	types.SeverityMedium:   cyclonedx.SeverityMedium,
	types.SeverityLow:      cyclonedx.SeverityLow,
	types.SeverityUnknown:  cyclonedx.SeverityUnknown,
}

// Writer accumulates items and emits a CycloneDX VEX BOM on Close.
type Writer struct {
	w      io.Writer
	items  []Item
	closed bool
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Add records items for the final document.
func (x *Writer) Add(items ...Item) {
	x.items = append(x.items, items...)
}

// Close groups the accumulated items by CVE, resolves one analysis state per
// CVE and encodes the BOM as pretty JSON.
func (x *Writer) Close() error {
	if x.closed {
		return nil
	}

	type cveState struct {
		severity types.Severity
		state    cyclonedx.ImpactAnalysisState
	}
	states := map[string]*cveState{}
	var order []string
	for _, it := range x.items {
		state := statusAnalysisState[it.Status]
		cur, ok := states[it.CveID]
		if !ok {
			states[it.CveID] = &cveState{severity: it.Severity, state: state}
			order = append(order, it.CveID)
			continue
		}
		if stateRank(state) < stateRank(cur.state) {
			cur.state = state
		}
	}

	vulns := make([]cyclonedx.Vulnerability, 0, len(order))
	for _, cveID := range order {
		st := states[cveID]
		ratings := []cyclonedx.VulnerabilityRating{{Severity: severityRating[st.severity]}}
		vulns = append(vulns, cyclonedx.Vulnerability{
			ID:      cveID,
			Ratings: &ratings,
			Analysis: &cyclonedx.VulnerabilityAnalysis{
				State: st.state,
			},
		})
	}

	bom := cyclonedx.NewBOM()
	if len(vulns) > 0 {
		bom.Vulnerabilities = &vulns
	}

	enc := cyclonedx.NewBOMEncoder(x.w, cyclonedx.BOMFileFormatJSON)
	enc.SetPretty(true)
	if err := enc.Encode(bom); err != nil {
		return err
	}
	x.closed = true
	return nil
}

func stateRank(state cyclonedx.ImpactAnalysisState) int {
	for i, s := range statePrecedence {
		if s == state {
			return i
		}
	}
	return len(statePrecedence)
}

// AnalysisState exposes the status mapping for callers that render single
// instances.
func AnalysisState(status types.Status) cyclonedx.ImpactAnalysisState {
	return statusAnalysisState[status]
}
