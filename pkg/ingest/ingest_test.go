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

package ingest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/ingest"
	"github.com/vulndeck/vulndeck/pkg/store"
	"github.com/vulndeck/vulndeck/pkg/store/memstore"
)

const sampleReport = `{
  "SchemaVersion": 2,
  "ArtifactName": "acme/api:1.0",
  "ArtifactType": "container_image",
  "Results": [
    {
      "Target": "acme/api:1.0 (alpine 3.20)",
      "Class": "os-pkgs",
      "Type": "alpine",
      "Vulnerabilities": [
        {"VulnerabilityID": "CVE-2024-1111", "PkgID": "libfoo@1.2.3", "Title": "libfoo RCE", "Severity": "CRITICAL"},
        {"VulnerabilityID": "CVE-2024-2222", "PkgID": "libbar@4.5.6", "Severity": "medium"}
      ]
    },
    {
      "Target": "app/go.mod",
      "Class": "lang-pkgs",
      "Type": "gomod",
      "Vulnerabilities": [
        {"VulnerabilityID": "CVE-2024-1111", "PkgID": "libfoo-go@1.2.3", "Severity": "CRITICAL"},
        {"VulnerabilityID": "", "Severity": "HIGH"},
        {"VulnerabilityID": "CVE-2024-3333", "Severity": "will_not_fix"}
      ]
    }
  ]
}`

func TestIngestReport(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	db.PutOrganization(types.Organization{ID: "org-1", Name: "acme"})
	db.PutProject(types.Project{ID: "proj-1", OrganizationID: "org-1", Name: "api"})

	var report types.ScanReport
	require.NoError(t, json.Unmarshal([]byte(sampleReport), &report))

	res, err := ingest.NewIngestor(db, db).IngestReport(ctx, "proj-1", report)
	require.NoError(t, err)
	require.NotEmpty(t, res.ScanResultID)
	// CVE-2024-1111 appears twice but is a single definition; the entry
	// with an empty id is skipped.
	require.Equal(t, 3, res.Definitions)
	require.Equal(t, 4, res.Instances)

	instances, err := db.FindInstancesByScanResultIDs(ctx, []string{res.ScanResultID})
	require.NoError(t, err)
	require.Len(t, instances, 4)
	for _, inst := range instances {
		require.Equal(t, types.StatusOpen, inst.Status)
	}

	crit, err := db.FindVulnerabilityByCve(ctx, "CVE-2024-1111")
	require.NoError(t, err)
	require.Equal(t, "libfoo RCE", crit.Title)
	require.Equal(t, types.SeverityCritical, crit.Severity)

	med, err := db.FindVulnerabilityByCve(ctx, "CVE-2024-2222")
	require.NoError(t, err)
	require.Equal(t, types.SeverityMedium, med.Severity, "severity is normalized to upper case")

	unknown, err := db.FindVulnerabilityByCve(ctx, "CVE-2024-3333")
	require.NoError(t, err)
	require.Equal(t, types.SeverityUnknown, unknown.Severity, "unrecognized severities map to UNKNOWN")
}

func TestIngestReport_UnknownProject(t *testing.T) {
	db := memstore.New()
	_, err := ingest.NewIngestor(db, db).IngestReport(context.Background(), "proj-missing", types.ScanReport{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIngestReport_EmptyReport(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	db.PutOrganization(types.Organization{ID: "org-1", Name: "acme"})
	db.PutProject(types.Project{ID: "proj-1", OrganizationID: "org-1", Name: "api"})

	res, err := ingest.NewIngestor(db, db).IngestReport(ctx, "proj-1", types.ScanReport{ArtifactName: "acme/api:1.0"})
	require.NoError(t, err)
	require.Zero(t, res.Definitions)
	require.Zero(t, res.Instances)

	// The scan result itself is still recorded.
	ids, err := db.ScanResultIDsByProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Equal(t, []string{res.ScanResultID}, ids)
}
