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
	"fmt"

	"github.com/vulndeck/vulndeck/pkg/api/types"
)

// historyQueries runs audit-trail statements against a DB or Tx. The table
// is append-only; there is no update or delete statement.
type historyQueries struct {
	q querier
}

func (d *DB) AppendHistory(ctx context.Context, entry types.WorkflowHistoryEntry) error {
	return (&historyQueries{q: d.db}).AppendHistory(ctx, entry)
}

func (d *DB) ListHistory(ctx context.Context, instanceID string) ([]types.HistoryEntryWithUser, error) {
	return (&historyQueries{q: d.db}).ListHistory(ctx, instanceID)
}

func (s *historyQueries) AppendHistory(ctx context.Context, entry types.WorkflowHistoryEntry) error {
	var evidence any
	if len(entry.Evidence) > 0 {
		evidence = []byte(entry.Evidence)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workflow_history (id, instance_id, from_status, to_status, user_id, comment, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.InstanceID, string(entry.FromStatus), string(entry.ToStatus),
		entry.UserID, entry.Comment, evidence, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *historyQueries) ListHistory(ctx context.Context, instanceID string) ([]types.HistoryEntryWithUser, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT h.id, h.instance_id, h.from_status, h.to_status, h.user_id, h.comment, h.evidence, h.created_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM workflow_history h
		LEFT JOIN users u ON u.id = h.user_id
		WHERE h.instance_id = $1
		ORDER BY h.created_at DESC, h.id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []types.HistoryEntryWithUser
	for rows.Next() {
		var (
			e          types.HistoryEntryWithUser
			fromStatus string
			toStatus   string
			evidence   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.InstanceID, &fromStatus, &toStatus, &e.UserID,
			&e.Comment, &evidence, &e.CreatedAt, &e.User.Name, &e.User.Email); err != nil {
			return nil, err
		}
		e.FromStatus = types.Status(fromStatus)
		e.ToStatus = types.Status(toStatus)
		if evidence.Valid {
			e.Evidence = []byte(evidence.String)
		}
		e.User.ID = e.UserID
		out = append(out, e)
	}
	return out, rows.Err()
}
