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

// Package evidence records supporting proof that a fix was applied: pull
// request links, package or tag changes, uploaded attachments. Pure
// append/query/delete-by-owner semantics, no state machine.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

// ErrNotAuthor is returned when someone other than the record's author
// attempts to delete it. The only authorization check this service performs.
var ErrNotAuthor = errors.New("evidence can only be deleted by its author")

// RecentLimit bounds the recent-records list in summaries.
const RecentLimit = 10

// Log is the fix evidence service.
type Log struct {
	evidence  store.EvidenceStore
	instances store.InstanceStore
}

// NewLog wires a Log to its stores.
func NewLog(evidence store.EvidenceStore, instances store.InstanceStore) *Log {
	return &Log{evidence: evidence, instances: instances}
}

// CreateInput carries the caller-supplied fields of a new evidence record.
type CreateInput struct {
	InstanceID  string                     `json:"instanceId"`
	Type        types.EvidenceType         `json:"type"`
	URL         string                     `json:"url,omitempty"`
	Description string                     `json:"description,omitempty"`
	BeforeValue string                     `json:"beforeValue,omitempty"`
	AfterValue  string                     `json:"afterValue,omitempty"`
	Attachments []types.EvidenceAttachment `json:"attachments,omitempty"`
}

// Create appends a new evidence record authored by userID. The referenced
// instance must exist.
func (l *Log) Create(ctx context.Context, userID string, in CreateInput) (*types.FixEvidenceRecord, error) {
	if _, err := l.instances.FindInstance(ctx, in.InstanceID); err != nil {
		return nil, fmt.Errorf("instance %s: %w", in.InstanceID, err)
	}
	rec := types.FixEvidenceRecord{
		ID:          uuid.NewString(),
		InstanceID:  in.InstanceID,
		Type:        in.Type,
		URL:         in.URL,
		Description: in.Description,
		BeforeValue: in.BeforeValue,
		AfterValue:  in.AfterValue,
		Attachments: in.Attachments,
		AuthorID:    userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.evidence.CreateEvidence(ctx, rec); err != nil {
		return nil, fmt.Errorf("create evidence: %w", err)
	}
	slog.InfoContext(ctx, "evidence created",
		"evidence", rec.ID, "instance", rec.InstanceID, "type", rec.Type, "author", userID)
	return &rec, nil
}

// ForInstance lists the evidence attached to one instance.
func (l *Log) ForInstance(ctx context.Context, instanceID string) ([]types.FixEvidenceRecord, error) {
	return l.evidence.ListEvidenceByInstance(ctx, instanceID)
}

// Delete removes a record, but only for its author.
func (l *Log) Delete(ctx context.Context, id, userID string) error {
	rec, err := l.evidence.FindEvidence(ctx, id)
	if err != nil {
		return fmt.Errorf("evidence %s: %w", id, err)
	}
	if rec.AuthorID != userID {
		return ErrNotAuthor
	}
	return l.evidence.DeleteEvidence(ctx, id)
}

// Summary is the per-project evidence rollup.
type Summary struct {
	CountByType map[types.EvidenceType]int `json:"countByType"`
	Recent      []types.FixEvidenceRecord  `json:"recent"`
}

// SummaryForProject counts evidence by type across all of a project's
// instances and returns the most recent records.
func (l *Log) SummaryForProject(ctx context.Context, projectID string) (*Summary, error) {
	counts, err := l.evidence.CountEvidenceByTypeForProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("evidence counts for project %s: %w", projectID, err)
	}
	recent, err := l.evidence.ListRecentEvidenceByProject(ctx, projectID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent evidence for project %s: %w", projectID, err)
	}
	return &Summary{CountByType: counts, Recent: recent}, nil
}
