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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

// Engine computes impact views over possibly-stale occurrence data. It holds
// no locks; results are point-in-time estimates, not committed facts.
type Engine struct {
	vulns    store.VulnerabilityStore
	projects store.ProjectStore
}

// NewEngine wires an Engine to its stores.
func NewEngine(vulns store.VulnerabilityStore, projects store.ProjectStore) *Engine {
	return &Engine{vulns: vulns, projects: projects}
}

// ImpactedEntity is one project or image touched by a CVE.
type ImpactedEntity struct {
	Type        string         `json:"type"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Severity    types.Severity `json:"severity"`
	Occurrences int            `json:"occurrences"`
	LastSeen    time.Time      `json:"lastSeen"`
}

// Metrics summarizes the occurrence set behind a CVE impact.
type Metrics struct {
	ProjectCount     int       `json:"projectCount"`
	ImageCount       int       `json:"imageCount"`
	TotalOccurrences int       `json:"totalOccurrences"`
	OldestOccurrence time.Time `json:"oldestOccurrence"`
	NewestOccurrence time.Time `json:"newestOccurrence"`
}

// CveImpact is the computed view over all instances sharing a CVE identity.
type CveImpact struct {
	CveID            string           `json:"cveId"`
	Title            string           `json:"title"`
	Severity         types.Severity   `json:"severity"`
	ImpactedProjects []ImpactedEntity `json:"impactedProjects"`
	ImpactedImages   []ImpactedEntity `json:"impactedImages"`
	// ImpactedServices stays empty; services require additional mapping.
	ImpactedServices []ImpactedEntity `json:"impactedServices"`
	TotalImpactScore float64          `json:"totalImpactScore"`
	Metrics          Metrics          `json:"metrics"`
}

// ProjectImpactSummary rolls a project's CVE impacts into headline numbers.
type ProjectImpactSummary struct {
	TotalCves          int     `json:"totalCves"`
	CriticalImpactCves int     `json:"criticalImpactCves"`
	HighImpactCves     int     `json:"highImpactCves"`
	AverageImpactScore float64 `json:"averageImpactScore"`
}

// ProjectImpact is the per-project rollup: every CVE's impact, sorted by
// descending score, plus the summary.
type ProjectImpact struct {
	ProjectID string               `json:"projectId"`
	Cves      []CveImpact          `json:"cves"`
	Summary   ProjectImpactSummary `json:"summary"`
}

// ProjectImpactEntry pairs a project with its summary in organization
// rollups.
type ProjectImpactEntry struct {
	ProjectID   string               `json:"projectId"`
	ProjectName string               `json:"projectName"`
	Summary     ProjectImpactSummary `json:"summary"`
}

// OrganizationImpact is the organization-wide rollup.
type OrganizationImpact struct {
	OrganizationID string               `json:"organizationId"`
	TopImpactCves  []CveImpact          `json:"topImpactCves"`
	Projects       []ProjectImpactEntry `json:"projects"`
}

// CalculateCveImpact aggregates every occurrence of the CVE across projects
// and images. An unknown CVE id yields a not-found error; an empty
// occurrence set yields zeroed aggregates with the temporal bounds defaulted
// to now.
func (e *Engine) CalculateCveImpact(ctx context.Context, cveID string) (*CveImpact, error) {
	_, imp, err := e.calculateCveImpact(ctx, cveID)
	return imp, err
}

func (e *Engine) calculateCveImpact(ctx context.Context, cveID string) (*types.Vulnerability, *CveImpact, error) {
	vuln, err := e.vulns.FindVulnerabilityByCve(ctx, cveID)
	if err != nil {
		return nil, nil, fmt.Errorf("vulnerability %s: %w", cveID, err)
	}
	occurrences, err := e.vulns.FindOccurrencesByVulnerability(ctx, vuln.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("occurrences of %s: %w", cveID, err)
	}

	type bucket struct {
		name     string
		count    int
		lastSeen time.Time
	}
	byProject := map[string]*bucket{}
	byImage := map[string]*bucket{}
	var oldest, newest time.Time
	for _, occ := range occurrences {
		p := byProject[occ.ProjectID]
		if p == nil {
			p = &bucket{name: fmt.Sprintf("%s/%s", occ.OrganizationName, occ.ProjectName)}
			byProject[occ.ProjectID] = p
		}
		p.count++
		if occ.DiscoveredAt.After(p.lastSeen) {
			p.lastSeen = occ.DiscoveredAt
		}

		img := byImage[occ.Image]
		if img == nil {
			img = &bucket{name: occ.Image}
			byImage[occ.Image] = img
		}
		img.count++
		if occ.DiscoveredAt.After(img.lastSeen) {
			img.lastSeen = occ.DiscoveredAt
		}

		if oldest.IsZero() || occ.DiscoveredAt.Before(oldest) {
			oldest = occ.DiscoveredAt
		}
		if occ.DiscoveredAt.After(newest) {
			newest = occ.DiscoveredAt
		}
	}
	if len(occurrences) == 0 {
		// Should not occur for a known vulnerability, but must not crash.
		now := time.Now().UTC()
		oldest, newest = now, now
	}

	toEntities := func(kind string, buckets map[string]*bucket) []ImpactedEntity {
		out := make([]ImpactedEntity, 0, len(buckets))
		for id, b := range buckets {
			out = append(out, ImpactedEntity{
				Type:        kind,
				ID:          id,
				Name:        b.name,
				Severity:    vuln.Severity,
				Occurrences: b.count,
				LastSeen:    b.lastSeen,
			})
		}
		// Deterministic order: most occurrences first, id as tiebreak.
		sort.Slice(out, func(i, j int) bool {
			if out[i].Occurrences != out[j].Occurrences {
				return out[i].Occurrences > out[j].Occurrences
			}
			return out[i].ID < out[j].ID
		})
		return out
	}

	title := vuln.Title
	if title == "" {
		title = cveID
	}
	imp := &CveImpact{
		CveID:            cveID,
		Title:            title,
		Severity:         vuln.Severity,
		ImpactedProjects: toEntities("project", byProject),
		ImpactedImages:   toEntities("image", byImage),
		ImpactedServices: []ImpactedEntity{},
		TotalImpactScore: Score(vuln.Severity, len(byProject), len(byImage), len(occurrences)),
		Metrics: Metrics{
			ProjectCount:     len(byProject),
			ImageCount:       len(byImage),
			TotalOccurrences: len(occurrences),
			OldestOccurrence: oldest,
			NewestOccurrence: newest,
		},
	}
	return vuln, imp, nil
}

// CalculateProjectImpact computes the impact of every distinct CVE seen in
// the project's scan results. Each CVE's aggregation is organization-wide; a
// known cost trade-off favoring simplicity over incremental computation.
func (e *Engine) CalculateProjectImpact(ctx context.Context, projectID string) (*ProjectImpact, error) {
	cveIDs, err := e.vulns.DistinctCvesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	impacts := make([]CveImpact, 0, len(cveIDs))
	for _, cveID := range cveIDs {
		imp, err := e.CalculateCveImpact(ctx, cveID)
		if err != nil {
			return nil, err
		}
		impacts = append(impacts, *imp)
	}
	sortImpacts(impacts)

	summary := ProjectImpactSummary{TotalCves: len(impacts)}
	var total float64
	for _, imp := range impacts {
		total += imp.TotalImpactScore
		switch {
		case imp.TotalImpactScore >= CriticalImpactThreshold:
			summary.CriticalImpactCves++
		case imp.TotalImpactScore >= HighImpactThreshold:
			summary.HighImpactCves++
		}
	}
	if len(impacts) > 0 {
		summary.AverageImpactScore = total / float64(len(impacts))
	}

	return &ProjectImpact{ProjectID: projectID, Cves: impacts, Summary: summary}, nil
}

// CalculateOrganizationImpact rolls impact up across every project of the
// organization. Per CVE it keeps only the highest score observed across
// projects; an organization's exposure to a CVE is its worst-case
// presentation, not a sum. Cost grows with org size times project CVE count
// times full re-aggregation per CVE; acceptable for on-demand analytics, not
// a hot path.
func (e *Engine) CalculateOrganizationImpact(ctx context.Context, organizationID string) (*OrganizationImpact, error) {
	projects, err := e.projects.ListProjectsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", organizationID, err)
	}

	bestByCve := map[string]CveImpact{}
	entries := make([]ProjectImpactEntry, 0, len(projects))
	for _, p := range projects {
		pi, err := e.CalculateProjectImpact(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, imp := range pi.Cves {
			if prev, ok := bestByCve[imp.CveID]; !ok || imp.TotalImpactScore > prev.TotalImpactScore {
				bestByCve[imp.CveID] = imp
			}
		}
		entries = append(entries, ProjectImpactEntry{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Summary:     pi.Summary,
		})
	}

	top := make([]CveImpact, 0, len(bestByCve))
	for _, imp := range bestByCve {
		top = append(top, imp)
	}
	sortImpacts(top)
	if len(top) > 10 {
		top = top[:10]
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Summary.AverageImpactScore != entries[j].Summary.AverageImpactScore {
			return entries[i].Summary.AverageImpactScore > entries[j].Summary.AverageImpactScore
		}
		return entries[i].ProjectID < entries[j].ProjectID
	})

	return &OrganizationImpact{
		OrganizationID: organizationID,
		TopImpactCves:  top,
		Projects:       entries,
	}, nil
}

// StoreImpactCalculation recomputes the CVE's impact and upserts a
// denormalized snapshot keyed by the vulnerability's internal id. The
// snapshot is a cache with an explicit recompute path, never a second source
// of truth.
func (e *Engine) StoreImpactCalculation(ctx context.Context, cveID string) (*types.ImpactSnapshot, error) {
	vuln, imp, err := e.calculateCveImpact(ctx, cveID)
	if err != nil {
		return nil, err
	}

	projectIDs := make([]string, 0, len(imp.ImpactedProjects))
	for _, p := range imp.ImpactedProjects {
		projectIDs = append(projectIDs, p.ID)
	}
	images := make([]string, 0, len(imp.ImpactedImages))
	for _, img := range imp.ImpactedImages {
		images = append(images, img.ID)
	}

	snap := types.ImpactSnapshot{
		VulnerabilityID:    vuln.ID,
		CveID:              cveID,
		AffectedProjectIDs: projectIDs,
		AffectedImages:     images,
		Score:              imp.TotalImpactScore,
		CalculatedAt:       time.Now().UTC(),
	}
	if err := e.vulns.StoreImpactSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("store snapshot for %s: %w", cveID, err)
	}
	return &snap, nil
}

func sortImpacts(impacts []CveImpact) {
	sort.Slice(impacts, func(i, j int) bool {
		if impacts[i].TotalImpactScore != impacts[j].TotalImpactScore {
			return impacts[i].TotalImpactScore > impacts[j].TotalImpactScore
		}
		return impacts[i].CveID < impacts[j].CveID
	})
}
