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

	"github.com/lib/pq"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

// instanceQueries runs instance statements against a DB or Tx.
type instanceQueries struct {
	q querier
}

const instanceColumns = `id, scan_result_id, vulnerability_id, status, assignee_id, severity, discovered_at`

func (d *DB) FindInstance(ctx context.Context, id string) (*types.VulnerabilityInstance, error) {
	return (&instanceQueries{q: d.db}).FindInstance(ctx, id)
}

func (d *DB) UpdateInstanceStatus(ctx context.Context, id string, status types.Status, assigneeID *string) error {
	return (&instanceQueries{q: d.db}).UpdateInstanceStatus(ctx, id, status, assigneeID)
}

func (d *DB) FindInstancesByScanResultIDs(ctx context.Context, scanResultIDs []string) ([]types.VulnerabilityInstance, error) {
	return (&instanceQueries{q: d.db}).FindInstancesByScanResultIDs(ctx, scanResultIDs)
}

func (d *DB) GroupCountByStatus(ctx context.Context, scanResultIDs []string) (map[types.Status]int, error) {
	return (&instanceQueries{q: d.db}).GroupCountByStatus(ctx, scanResultIDs)
}

func (s *instanceQueries) FindInstance(ctx context.Context, id string) (*types.VulnerabilityInstance, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM vulnerability_instances
		WHERE id = $1`, id)
	return scanInstanceRow(row)
}

func (s *instanceQueries) UpdateInstanceStatus(ctx context.Context, id string, status types.Status, assigneeID *string) error {
	var (
		res sql.Result
		err error
	)
	if assigneeID != nil {
		res, err = s.q.ExecContext(ctx, `
			UPDATE vulnerability_instances
			SET status = $2, assignee_id = $3
			WHERE id = $1`, id, string(status), *assigneeID)
	} else {
		res, err = s.q.ExecContext(ctx, `
			UPDATE vulnerability_instances
			SET status = $2
			WHERE id = $1`, id, string(status))
	}
	if err != nil {
		return fmt.Errorf("update instance status: %w", err)
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

func (s *instanceQueries) FindInstancesByScanResultIDs(ctx context.Context, scanResultIDs []string) ([]types.VulnerabilityInstance, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM vulnerability_instances
		WHERE scan_result_id = ANY($1)
		ORDER BY id`, pq.Array(scanResultIDs))
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []types.VulnerabilityInstance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

func (s *instanceQueries) GroupCountByStatus(ctx context.Context, scanResultIDs []string) (map[types.Status]int, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM vulnerability_instances
		WHERE scan_result_id = ANY($1)
		GROUP BY status`, pq.Array(scanResultIDs))
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[types.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[types.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanInstanceRow(row *sql.Row) (*types.VulnerabilityInstance, error) {
	inst, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return inst, err
}

func scanInstance(scan func(dest ...any) error) (*types.VulnerabilityInstance, error) {
	var (
		inst     types.VulnerabilityInstance
		status   string
		severity string
		assignee sql.NullString
	)
	if err := scan(&inst.ID, &inst.ScanResultID, &inst.VulnerabilityID, &status, &assignee, &severity, &inst.DiscoveredAt); err != nil {
		return nil, err
	}
	inst.Status = types.Status(status)
	inst.Severity = types.Severity(severity)
	if assignee.Valid {
		inst.AssigneeID = &assignee.String
	}
	return &inst, nil
}
