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

package impact_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/impact"
	"github.com/vulndeck/vulndeck/pkg/store"
	"github.com/vulndeck/vulndeck/pkg/store/memstore"
)

var (
	day1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
)

// seed builds an org with two projects. CVE-2024-1111 (critical) occurs in
// both projects across two images; CVE-2024-2222 (low) occurs once in the
// api project only.
func seed() *memstore.Store {
	db := memstore.New()
	db.PutOrganization(types.Organization{ID: "org-1", Name: "acme"})
	db.PutProject(types.Project{ID: "proj-api", OrganizationID: "org-1", Name: "api"})
	db.PutProject(types.Project{ID: "proj-web", OrganizationID: "org-1", Name: "web"})
	db.PutScanResult(types.ScanResult{ID: "scan-api", ProjectID: "proj-api", Image: "acme/api:1.0", CreatedAt: day1})
	db.PutScanResult(types.ScanResult{ID: "scan-web", ProjectID: "proj-web", Image: "acme/web:2.0", CreatedAt: day2})
	db.PutVulnerability(types.Vulnerability{ID: "vuln-crit", CveID: "CVE-2024-1111", Title: "libfoo RCE", Severity: types.SeverityCritical})
	db.PutVulnerability(types.Vulnerability{ID: "vuln-low", CveID: "CVE-2024-2222", Severity: types.SeverityLow})

	db.PutInstance(types.VulnerabilityInstance{ID: "i1", ScanResultID: "scan-api", VulnerabilityID: "vuln-crit", Status: types.StatusOpen, Severity: types.SeverityCritical, DiscoveredAt: day1})
	db.PutInstance(types.VulnerabilityInstance{ID: "i2", ScanResultID: "scan-api", VulnerabilityID: "vuln-crit", Status: types.StatusOpen, Severity: types.SeverityCritical, DiscoveredAt: day2})
	db.PutInstance(types.VulnerabilityInstance{ID: "i3", ScanResultID: "scan-web", VulnerabilityID: "vuln-crit", Status: types.StatusOpen, Severity: types.SeverityCritical, DiscoveredAt: day3})
	db.PutInstance(types.VulnerabilityInstance{ID: "i4", ScanResultID: "scan-api", VulnerabilityID: "vuln-low", Status: types.StatusOpen, Severity: types.SeverityLow, DiscoveredAt: day1})
	return db
}

func TestCalculateCveImpact(t *testing.T) {
	ctx := context.Background()
	db := seed()
	eng := impact.NewEngine(db, db)

	imp, err := eng.CalculateCveImpact(ctx, "CVE-2024-1111")
	require.NoError(t, err)
	require.Equal(t, "CVE-2024-1111", imp.CveID)
	require.Equal(t, "libfoo RCE", imp.Title)
	require.Equal(t, types.SeverityCritical, imp.Severity)
	require.Equal(t, impact.Score(types.SeverityCritical, 2, 2, 3), imp.TotalImpactScore)

	require.Len(t, imp.ImpactedProjects, 2)
	// Most occurrences first.
	require.Equal(t, "proj-api", imp.ImpactedProjects[0].ID)
	require.Equal(t, "acme/api", imp.ImpactedProjects[0].Name)
	require.Equal(t, 2, imp.ImpactedProjects[0].Occurrences)
	require.Equal(t, day2, imp.ImpactedProjects[0].LastSeen)
	require.Equal(t, "proj-web", imp.ImpactedProjects[1].ID)
	require.Equal(t, "acme/web", imp.ImpactedProjects[1].Name)

	require.Len(t, imp.ImpactedImages, 2)
	require.Equal(t, "acme/api:1.0", imp.ImpactedImages[0].ID)
	require.NotNil(t, imp.ImpactedServices)
	require.Empty(t, imp.ImpactedServices)

	require.Equal(t, impact.Metrics{
		ProjectCount:     2,
		ImageCount:       2,
		TotalOccurrences: 3,
		OldestOccurrence: day1,
		NewestOccurrence: day3,
	}, imp.Metrics)
}

func TestCalculateCveImpact_UnknownCve(t *testing.T) {
	db := seed()
	eng := impact.NewEngine(db, db)

	_, err := eng.CalculateCveImpact(context.Background(), "CVE-0000-0000")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCalculateCveImpact_NoOccurrences(t *testing.T) {
	db := memstore.New()
	db.PutVulnerability(types.Vulnerability{ID: "vuln-orphan", CveID: "CVE-2024-9999", Severity: types.SeverityHigh})
	eng := impact.NewEngine(db, db)

	imp, err := eng.CalculateCveImpact(context.Background(), "CVE-2024-9999")
	require.NoError(t, err)
	// Empty title falls back to the CVE id.
	require.Equal(t, "CVE-2024-9999", imp.Title)
	require.Empty(t, imp.ImpactedProjects)
	require.Empty(t, imp.ImpactedImages)
	require.Equal(t, 8.0, imp.TotalImpactScore)
	require.WithinDuration(t, time.Now(), imp.Metrics.OldestOccurrence, time.Minute)
	require.Equal(t, imp.Metrics.OldestOccurrence, imp.Metrics.NewestOccurrence)
}

func TestCalculateProjectImpact(t *testing.T) {
	ctx := context.Background()
	db := seed()
	eng := impact.NewEngine(db, db)

	pi, err := eng.CalculateProjectImpact(ctx, "proj-api")
	require.NoError(t, err)
	require.Equal(t, "proj-api", pi.ProjectID)
	require.Len(t, pi.Cves, 2)
	// Sorted by descending score: the critical CVE first.
	require.Equal(t, "CVE-2024-1111", pi.Cves[0].CveID)
	require.Equal(t, "CVE-2024-2222", pi.Cves[1].CveID)
	require.GreaterOrEqual(t, pi.Cves[0].TotalImpactScore, pi.Cves[1].TotalImpactScore)

	require.Equal(t, 2, pi.Summary.TotalCves)
	require.Equal(t, 1, pi.Summary.CriticalImpactCves)
	require.Equal(t, 0, pi.Summary.HighImpactCves)
	wantAvg := (pi.Cves[0].TotalImpactScore + pi.Cves[1].TotalImpactScore) / 2
	require.Equal(t, wantAvg, pi.Summary.AverageImpactScore)
}

func TestCalculateProjectImpact_EmptyProject(t *testing.T) {
	db := seed()
	db.PutProject(types.Project{ID: "proj-empty", OrganizationID: "org-1", Name: "empty"})
	eng := impact.NewEngine(db, db)

	pi, err := eng.CalculateProjectImpact(context.Background(), "proj-empty")
	require.NoError(t, err)
	require.Empty(t, pi.Cves)
	require.Zero(t, pi.Summary.TotalCves)
	require.Zero(t, pi.Summary.AverageImpactScore)
}

func TestCalculateOrganizationImpact(t *testing.T) {
	ctx := context.Background()
	db := seed()
	eng := impact.NewEngine(db, db)

	oi, err := eng.CalculateOrganizationImpact(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, "org-1", oi.OrganizationID)

	// CVE-2024-1111 lives in both projects but aggregation is
	// organization-wide, so it appears once with its global score.
	require.Len(t, oi.TopImpactCves, 2)
	require.Equal(t, "CVE-2024-1111", oi.TopImpactCves[0].CveID)
	require.Equal(t, impact.Score(types.SeverityCritical, 2, 2, 3), oi.TopImpactCves[0].TotalImpactScore)
	require.Equal(t, "CVE-2024-2222", oi.TopImpactCves[1].CveID)

	require.Len(t, oi.Projects, 2)
	// Projects sorted by descending average impact.
	require.GreaterOrEqual(t, oi.Projects[0].Summary.AverageImpactScore, oi.Projects[1].Summary.AverageImpactScore)
	require.Equal(t, "proj-web", oi.Projects[0].ProjectID)
	require.Equal(t, "api", oi.Projects[1].ProjectName)
}

func TestCalculateOrganizationImpact_TopTenCap(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	db.PutOrganization(types.Organization{ID: "org-1", Name: "acme"})
	db.PutProject(types.Project{ID: "proj-1", OrganizationID: "org-1", Name: "api"})
	db.PutScanResult(types.ScanResult{ID: "scan-1", ProjectID: "proj-1", Image: "acme/api:1.0", CreatedAt: day1})
	for i := 0; i < 14; i++ {
		vulnID := fmt.Sprintf("vuln-%02d", i)
		db.PutVulnerability(types.Vulnerability{ID: vulnID, CveID: fmt.Sprintf("CVE-2024-%04d", i), Severity: types.SeverityMedium})
		db.PutInstance(types.VulnerabilityInstance{
			ID:              fmt.Sprintf("inst-%02d", i),
			ScanResultID:    "scan-1",
			VulnerabilityID: vulnID,
			Status:          types.StatusOpen,
			Severity:        types.SeverityMedium,
			DiscoveredAt:    day1,
		})
	}
	eng := impact.NewEngine(db, db)

	oi, err := eng.CalculateOrganizationImpact(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, oi.TopImpactCves, 10)
	for i := 1; i < len(oi.TopImpactCves); i++ {
		require.GreaterOrEqual(t, oi.TopImpactCves[i-1].TotalImpactScore, oi.TopImpactCves[i].TotalImpactScore)
	}
}

func TestStoreImpactCalculation(t *testing.T) {
	ctx := context.Background()
	db := seed()
	eng := impact.NewEngine(db, db)

	snap, err := eng.StoreImpactCalculation(ctx, "CVE-2024-1111")
	require.NoError(t, err)
	require.Equal(t, "vuln-crit", snap.VulnerabilityID)
	require.Equal(t, "CVE-2024-1111", snap.CveID)
	require.ElementsMatch(t, []string{"proj-api", "proj-web"}, snap.AffectedProjectIDs)
	require.ElementsMatch(t, []string{"acme/api:1.0", "acme/web:2.0"}, snap.AffectedImages)
	require.Equal(t, impact.Score(types.SeverityCritical, 2, 2, 3), snap.Score)
	require.WithinDuration(t, time.Now(), snap.CalculatedAt, time.Minute)

	stored, ok := db.Snapshot("vuln-crit")
	require.True(t, ok)
	require.Equal(t, *snap, stored)
}
