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

package vexport_test

import (
	"bytes"
	"testing"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/vexport"
)

func decode(t *testing.T, buf *bytes.Buffer) *cyclonedx.BOM {
	t.Helper()
	var bom cyclonedx.BOM
	require.NoError(t, cyclonedx.NewBOMDecoder(buf, cyclonedx.BOMFileFormatJSON).Decode(&bom))
	return &bom
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := vexport.NewWriter(&buf)
	w.Add(
		newItem("CVE-2024-1111", types.SeverityCritical, types.StatusFixed),
		newItem("CVE-2024-2222", types.SeverityMedium, types.StatusIgnored),
		newItem("CVE-2024-3333", types.SeverityLow, types.StatusFalsePositive),
	)
	require.NoError(t, w.Close())

	bom := decode(t, &buf)
	require.NotNil(t, bom.Vulnerabilities)
	vulns := *bom.Vulnerabilities
	require.Len(t, vulns, 3)

	// First-seen order is preserved.
	require.Equal(t, "CVE-2024-1111", vulns[0].ID)
	require.Equal(t, cyclonedx.IASResolved, vulns[0].Analysis.State)
	require.Equal(t, cyclonedx.SeverityCritical, (*vulns[0].Ratings)[0].Severity)

	require.Equal(t, "CVE-2024-2222", vulns[1].ID)
	require.Equal(t, cyclonedx.IASNotAffected, vulns[1].Analysis.State)

	require.Equal(t, "CVE-2024-3333", vulns[2].ID)
	require.Equal(t, cyclonedx.IASFalsePositive, vulns[2].Analysis.State)
}

func TestWriter_LeastRemediatedStateWins(t *testing.T) {
	var buf bytes.Buffer
	w := vexport.NewWriter(&buf)
	// The same CVE is FIXED in one scan result but still IN_PROGRESS in
	// another; the exported state must be the exploitable one.
	w.Add(
		newItem("CVE-2024-1111", types.SeverityHigh, types.StatusFixed),
		newItem("CVE-2024-1111", types.SeverityHigh, types.StatusInProgress),
		newItem("CVE-2024-1111", types.SeverityHigh, types.StatusClosed),
	)
	require.NoError(t, w.Close())

	bom := decode(t, &buf)
	vulns := *bom.Vulnerabilities
	require.Len(t, vulns, 1)
	require.Equal(t, cyclonedx.IASExploitable, vulns[0].Analysis.State)
}

func TestWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	w := vexport.NewWriter(&buf)
	require.NoError(t, w.Close())

	bom := decode(t, &buf)
	require.Nil(t, bom.Vulnerabilities)

	// Close is idempotent and must not emit a second document.
	size := buf.Len()
	require.NoError(t, w.Close())
	require.Equal(t, size, buf.Len())
}

func TestAnalysisState(t *testing.T) {
	testCases := []struct {
		status types.Status
		want   cyclonedx.ImpactAnalysisState
	}{
		{types.StatusOpen, cyclonedx.IASInTriage},
		{types.StatusAssigned, cyclonedx.IASInTriage},
		{types.StatusInProgress, cyclonedx.IASExploitable},
		{types.StatusFixSubmitted, cyclonedx.IASExploitable},
		{types.StatusVerifying, cyclonedx.IASExploitable},
		{types.StatusFixed, cyclonedx.IASResolved},
		{types.StatusClosed, cyclonedx.IASResolved},
		{types.StatusIgnored, cyclonedx.IASNotAffected},
		{types.StatusFalsePositive, cyclonedx.IASFalsePositive},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, vexport.AnalysisState(tc.status), "status %s", tc.status)
	}
}

func newItem(cveID string, severity types.Severity, status types.Status) vexport.Item {
	return vexport.Item{CveID: cveID, Severity: severity, Status: status}
}
