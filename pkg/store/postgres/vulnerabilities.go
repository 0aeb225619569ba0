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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

func (d *DB) FindVulnerabilityByCve(ctx context.Context, cveID string) (*types.Vulnerability, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, cve_id, title, severity, description
		FROM vulnerabilities
		WHERE cve_id = $1`, cveID)
	return scanVulnerability(row)
}

func (d *DB) FindVulnerability(ctx context.Context, id string) (*types.Vulnerability, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, cve_id, title, severity, description
		FROM vulnerabilities
		WHERE id = $1`, id)
	return scanVulnerability(row)
}

func (d *DB) FindOccurrencesByVulnerability(ctx context.Context, vulnerabilityID string) ([]types.Occurrence, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT vi.id, vi.scan_result_id, sr.image, p.id, p.name, o.id, o.name, vi.severity, vi.discovered_at
		FROM vulnerability_instances vi
		JOIN scan_results sr ON sr.id = vi.scan_result_id
		JOIN projects p ON p.id = sr.project_id
		JOIN organizations o ON o.id = p.organization_id
		WHERE vi.vulnerability_id = $1
		ORDER BY vi.id`, vulnerabilityID)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var out []types.Occurrence
	for rows.Next() {
		var (
			occ      types.Occurrence
			severity string
		)
		if err := rows.Scan(&occ.InstanceID, &occ.ScanResultID, &occ.Image,
			&occ.ProjectID, &occ.ProjectName, &occ.OrganizationID, &occ.OrganizationName,
			&severity, &occ.DiscoveredAt); err != nil {
			return nil, err
		}
		occ.Severity = types.Severity(severity)
		out = append(out, occ)
	}
	return out, rows.Err()
}

func (d *DB) DistinctCvesByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT v.cve_id
		FROM vulnerability_instances vi
		JOIN scan_results sr ON sr.id = vi.scan_result_id
		JOIN vulnerabilities v ON v.id = vi.vulnerability_id
		WHERE sr.project_id = $1
		ORDER BY v.cve_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("distinct cves: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cve string
		if err := rows.Scan(&cve); err != nil {
			return nil, err
		}
		out = append(out, cve)
	}
	return out, rows.Err()
}

func (d *DB) StoreImpactSnapshot(ctx context.Context, snap types.ImpactSnapshot) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO impact_snapshots (vulnerability_id, cve_id, affected_project_ids, affected_images, score, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vulnerability_id) DO UPDATE SET
			cve_id = EXCLUDED.cve_id,
			affected_project_ids = EXCLUDED.affected_project_ids,
			affected_images = EXCLUDED.affected_images,
			score = EXCLUDED.score,
			calculated_at = EXCLUDED.calculated_at`,
		snap.VulnerabilityID, snap.CveID,
		pq.Array(snap.AffectedProjectIDs), pq.Array(snap.AffectedImages),
		snap.Score, snap.CalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert impact snapshot: %w", err)
	}
	return nil
}

// ProjectStore.

func (d *DB) FindProject(ctx context.Context, id string) (*types.Project, error) {
	var p types.Project
	err := d.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name
		FROM projects
		WHERE id = $1`, id).Scan(&p.ID, &p.OrganizationID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) ListProjectsByOrganization(ctx context.Context, organizationID string) ([]types.Project, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, organization_id, name
		FROM projects
		WHERE organization_id = $1
		ORDER BY id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []types.Project
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) ScanResultIDsByProject(ctx context.Context, projectID string) ([]string, error) {
	if _, err := d.FindProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id
		FROM scan_results
		WHERE project_id = $1
		ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scan results: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// IngestStore.

func (d *DB) UpsertVulnerability(ctx context.Context, v types.Vulnerability) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	// On conflict the no-op update lets RETURNING yield the existing id.
	var id string
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO vulnerabilities (id, cve_id, title, severity, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cve_id) DO UPDATE SET cve_id = EXCLUDED.cve_id
		RETURNING id`,
		v.ID, v.CveID, v.Title, string(v.Severity), v.Description).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert vulnerability %s: %w", v.CveID, err)
	}
	return id, nil
}

func (d *DB) CreateScanResult(ctx context.Context, r types.ScanResult) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO scan_results (id, project_id, image, created_at)
		VALUES ($1, $2, $3, $4)`,
		r.ID, r.ProjectID, r.Image, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create scan result: %w", err)
	}
	return nil
}

func (d *DB) CreateInstance(ctx context.Context, inst types.VulnerabilityInstance) error {
	var assignee any
	if inst.AssigneeID != nil {
		assignee = *inst.AssigneeID
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO vulnerability_instances (id, scan_result_id, vulnerability_id, status, assignee_id, severity, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inst.ID, inst.ScanResultID, inst.VulnerabilityID, string(inst.Status),
		assignee, string(inst.Severity), inst.DiscoveredAt)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	return nil
}

func scanVulnerability(row *sql.Row) (*types.Vulnerability, error) {
	var (
		v        types.Vulnerability
		severity string
	)
	err := row.Scan(&v.ID, &v.CveID, &v.Title, &severity, &v.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Severity = types.Severity(severity)
	return &v, nil
}
