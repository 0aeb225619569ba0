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

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

// Engine applies and audits remediation status transitions. It keeps no
// state between calls; everything lives in the store.
type Engine struct {
	db        store.TxRunner
	instances store.InstanceStore
	history   store.HistoryStore
	projects  store.ProjectStore
}

// NewEngine wires an Engine to its stores.
func NewEngine(db store.TxRunner, instances store.InstanceStore, history store.HistoryStore, projects store.ProjectStore) *Engine {
	return &Engine{db: db, instances: instances, history: history, projects: projects}
}

// TransitionRequest carries one requested status change. From is advisory
// audit metadata only; validation always runs against the freshly-read
// persisted status, never against caller state.
type TransitionRequest struct {
	From     types.Status    `json:"from"`
	To       types.Status    `json:"to"`
	Comment  string          `json:"comment,omitempty"`
	Evidence json.RawMessage `json:"evidence,omitempty"`
}

// TransitionResult reports a successful transition. From is the
// pre-transition persisted status.
type TransitionResult struct {
	InstanceID string       `json:"instanceId"`
	From       types.Status `json:"fromStatus"`
	To         types.Status `json:"toStatus"`
	Timestamp  time.Time    `json:"timestamp"`
}

// TransitionStatus validates req against the instance's current persisted
// status and, if allowed, updates the status and appends a history entry in
// one transaction: either both happen or neither does.
func (e *Engine) TransitionStatus(ctx context.Context, instanceID, actingUserID string, req TransitionRequest) (*TransitionResult, error) {
	inst, err := e.instances.FindInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", instanceID, err)
	}
	current := inst.Status
	if req.From != "" && req.From != current {
		slog.DebugContext(ctx, "caller-supplied from status is stale",
			"instance", instanceID, "claimed", req.From, "persisted", current)
	}
	if !IsValidTransition(current, req.To) {
		return nil, &InvalidTransitionError{From: current, To: req.To}
	}

	now := time.Now().UTC()
	entry := types.WorkflowHistoryEntry{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		FromStatus: current,
		ToStatus:   req.To,
		UserID:     actingUserID,
		Comment:    req.Comment,
		Evidence:   req.Evidence,
		CreatedAt:  now,
	}
	err = e.db.InTx(ctx, func(tx store.Tx) error {
		if err := tx.Instances().UpdateInstanceStatus(ctx, instanceID, req.To, nil); err != nil {
			return err
		}
		return tx.History().AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("apply transition on %s: %w", instanceID, err)
	}

	slog.InfoContext(ctx, "status transition",
		"instance", instanceID, "from", current, "to", req.To, "user", actingUserID)
	return &TransitionResult{InstanceID: instanceID, From: current, To: req.To, Timestamp: now}, nil
}

// BulkFailure records why one item of a bulk operation was skipped.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult reports per-item outcomes of a bulk transition.
type BulkResult struct {
	Successful []string      `json:"successful"`
	Failed     []BulkFailure `json:"failed"`
}

// BulkTransition moves each instance to toStatus independently and
// sequentially. One item's failure never aborts the batch; missing
// instances, invalid transitions and unexpected errors all land in the
// failure list with a distinguishable reason.
func (e *Engine) BulkTransition(ctx context.Context, instanceIDs []string, actingUserID string, toStatus types.Status, comment string) *BulkResult {
	res := &BulkResult{Successful: []string{}, Failed: []BulkFailure{}}
	for _, id := range instanceIDs {
		inst, err := e.instances.FindInstance(ctx, id)
		if err != nil {
			reason := err.Error()
			if errors.Is(err, store.ErrNotFound) {
				reason = "Not found"
			}
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: reason})
			continue
		}
		if !IsValidTransition(inst.Status, toStatus) {
			invalid := &InvalidTransitionError{From: inst.Status, To: toStatus}
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: invalid.Error()})
			continue
		}
		req := TransitionRequest{From: inst.Status, To: toStatus, Comment: comment}
		if _, err := e.TransitionStatus(ctx, id, actingUserID, req); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: err.Error()})
			continue
		}
		res.Successful = append(res.Successful, id)
	}
	return res
}

// AutoAssign sets the assignee and forces the status to ASSIGNED. Assignment
// is always legal and bypasses the transition table. A history
// entry is appended only when the status actually changed; re-assigning an
// already-ASSIGNED instance still updates the assignee.
func (e *Engine) AutoAssign(ctx context.Context, instanceID, assigneeID, assignedByID string) error {
	inst, err := e.instances.FindInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("instance %s: %w", instanceID, err)
	}
	changed := inst.Status != types.StatusAssigned

	entry := types.WorkflowHistoryEntry{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		FromStatus: inst.Status,
		ToStatus:   types.StatusAssigned,
		UserID:     assignedByID,
		Comment:    fmt.Sprintf("Assigned to %s", assigneeID),
		CreatedAt:  time.Now().UTC(),
	}
	err = e.db.InTx(ctx, func(tx store.Tx) error {
		if err := tx.Instances().UpdateInstanceStatus(ctx, instanceID, types.StatusAssigned, &assigneeID); err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.History().AppendHistory(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("assign %s: %w", instanceID, err)
	}

	slog.InfoContext(ctx, "instance assigned",
		"instance", instanceID, "assignee", assigneeID, "by", assignedByID, "statusChanged", changed)
	return nil
}

// Stats aggregates current status counts across every instance belonging to
// a project's scan results. Statuses with zero instances are absent.
func (e *Engine) Stats(ctx context.Context, projectID string) (map[types.Status]int, error) {
	scanResultIDs, err := e.projects.ScanResultIDsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	if len(scanResultIDs) == 0 {
		return map[types.Status]int{}, nil
	}
	return e.instances.GroupCountByStatus(ctx, scanResultIDs)
}

// History returns the instance's audit trail newest-first, each entry joined
// with the acting user's public identity.
func (e *Engine) History(ctx context.Context, instanceID string) ([]types.HistoryEntryWithUser, error) {
	return e.history.ListHistory(ctx, instanceID)
}
