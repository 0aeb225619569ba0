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

// Package ingest turns Trivy-style scan reports into scan results and OPEN
// vulnerability instances.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

// Ingestor writes scan reports into the store.
type Ingestor struct {
	store    store.IngestStore
	projects store.ProjectStore
}

// NewIngestor wires an Ingestor to its stores.
func NewIngestor(st store.IngestStore, projects store.ProjectStore) *Ingestor {
	return &Ingestor{store: st, projects: projects}
}

// Result reports what one ingested report produced.
type Result struct {
	ScanResultID string `json:"scanResultId"`
	Definitions  int    `json:"definitions"`
	Instances    int    `json:"instances"`
}

// IngestReport creates one scan result for the report and one OPEN instance
// per reported vulnerability, upserting definitions by CVE id. Severity is
// inherited from the definition; unknown severities map to UNKNOWN.
func (i *Ingestor) IngestReport(ctx context.Context, projectID string, report types.ScanReport) (*Result, error) {
	if _, err := i.projects.FindProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	now := time.Now().UTC()
	scanResult := types.ScanResult{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Image:     report.ArtifactName,
		CreatedAt: now,
	}
	if err := i.store.CreateScanResult(ctx, scanResult); err != nil {
		return nil, fmt.Errorf("create scan result: %w", err)
	}

	res := Result{ScanResultID: scanResult.ID}
	seenCves := map[string]bool{}
	for _, item := range report.Results {
		for _, v := range item.Vulnerabilities {
			if v.VulnerabilityID == "" {
				continue
			}
			severity := types.NormalizeSeverity(v.Severity)
			vulnID, err := i.store.UpsertVulnerability(ctx, types.Vulnerability{
				CveID:       v.VulnerabilityID,
				Title:       v.Title,
				Severity:    severity,
				Description: v.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("upsert %s: %w", v.VulnerabilityID, err)
			}
			if !seenCves[v.VulnerabilityID] {
				seenCves[v.VulnerabilityID] = true
				res.Definitions++
			}

			inst := types.VulnerabilityInstance{
				ID:              uuid.NewString(),
				ScanResultID:    scanResult.ID,
				VulnerabilityID: vulnID,
				Status:          types.StatusOpen,
				Severity:        severity,
				DiscoveredAt:    now,
			}
			if err := i.store.CreateInstance(ctx, inst); err != nil {
				return nil, fmt.Errorf("create instance for %s: %w", v.VulnerabilityID, err)
			}
			res.Instances++
		}
	}

	slog.InfoContext(ctx, "report ingested",
		"project", projectID, "scanResult", scanResult.ID,
		"image", report.ArtifactName, "definitions", res.Definitions, "instances", res.Instances)
	return &res, nil
}
