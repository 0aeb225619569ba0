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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

const evidenceColumns = `id, instance_id, evidence_type, url, description, before_value, after_value, attachments, author_id, created_at`

func (d *DB) CreateEvidence(ctx context.Context, rec types.FixEvidenceRecord) error {
	var attachments any
	if len(rec.Attachments) > 0 {
		b, err := json.Marshal(rec.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
		attachments = b
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO fix_evidence (`+evidenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.InstanceID, string(rec.Type), rec.URL, rec.Description,
		rec.BeforeValue, rec.AfterValue, attachments, rec.AuthorID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

func (d *DB) FindEvidence(ctx context.Context, id string) (*types.FixEvidenceRecord, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+evidenceColumns+`
		FROM fix_evidence
		WHERE id = $1`, id)
	rec, err := scanEvidence(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func (d *DB) ListEvidenceByInstance(ctx context.Context, instanceID string) ([]types.FixEvidenceRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+evidenceColumns+`
		FROM fix_evidence
		WHERE instance_id = $1
		ORDER BY created_at DESC, id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()
	return collectEvidence(rows)
}

func (d *DB) DeleteEvidence(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM fix_evidence WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) CountEvidenceByTypeForProject(ctx context.Context, projectID string) (map[types.EvidenceType]int, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT e.evidence_type, COUNT(*)
		FROM fix_evidence e
		JOIN vulnerability_instances vi ON vi.id = e.instance_id
		JOIN scan_results sr ON sr.id = vi.scan_result_id
		WHERE sr.project_id = $1
		GROUP BY e.evidence_type`, projectID)
	if err != nil {
		return nil, fmt.Errorf("count evidence: %w", err)
	}
	defer rows.Close()

	counts := map[types.EvidenceType]int{}
	for rows.Next() {
		var (
			evidenceType string
			n            int
		)
		if err := rows.Scan(&evidenceType, &n); err != nil {
			return nil, err
		}
		counts[types.EvidenceType(evidenceType)] = n
	}
	return counts, rows.Err()
}

func (d *DB) ListRecentEvidenceByProject(ctx context.Context, projectID string, limit int) ([]types.FixEvidenceRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT e.id, e.instance_id, e.evidence_type, e.url, e.description, e.before_value, e.after_value, e.attachments, e.author_id, e.created_at
		FROM fix_evidence e
		JOIN vulnerability_instances vi ON vi.id = e.instance_id
		JOIN scan_results sr ON sr.id = vi.scan_result_id
		WHERE sr.project_id = $1
		ORDER BY e.created_at DESC, e.id
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent evidence: %w", err)
	}
	defer rows.Close()
	return collectEvidence(rows)
}

func collectEvidence(rows *sql.Rows) ([]types.FixEvidenceRecord, error) {
	var out []types.FixEvidenceRecord
	for rows.Next() {
		rec, err := scanEvidence(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanEvidence(scan func(dest ...any) error) (*types.FixEvidenceRecord, error) {
	var (
		rec          types.FixEvidenceRecord
		evidenceType string
		attachments  sql.NullString
	)
	if err := scan(&rec.ID, &rec.InstanceID, &evidenceType, &rec.URL, &rec.Description,
		&rec.BeforeValue, &rec.AfterValue, &attachments, &rec.AuthorID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Type = types.EvidenceType(evidenceType)
	if attachments.Valid {
		if err := json.Unmarshal([]byte(attachments.String), &rec.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return &rec, nil
}
