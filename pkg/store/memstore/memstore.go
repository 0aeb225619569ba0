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

// Package memstore is an in-memory implementation of every store contract.
// Transactions are copy-on-write: InTx stages mutations on clones and swaps
// them in only when the whole unit of work succeeds.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/store"
)

// Store holds all records behind one RWMutex.
type Store struct {
	mu          sync.RWMutex
	users       map[string]types.UserIdentity
	orgs        map[string]types.Organization
	projects    map[string]types.Project
	scanResults map[string]types.ScanResult
	vulns       map[string]types.Vulnerability
	vulnIDByCve map[string]string
	instances   map[string]types.VulnerabilityInstance
	history     []types.WorkflowHistoryEntry
	evidence    map[string]types.FixEvidenceRecord
	snapshots   map[string]types.ImpactSnapshot
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       map[string]types.UserIdentity{},
		orgs:        map[string]types.Organization{},
		projects:    map[string]types.Project{},
		scanResults: map[string]types.ScanResult{},
		vulns:       map[string]types.Vulnerability{},
		vulnIDByCve: map[string]string{},
		instances:   map[string]types.VulnerabilityInstance{},
		evidence:    map[string]types.FixEvidenceRecord{},
		snapshots:   map[string]types.ImpactSnapshot{},
	}
}

// Seeding helpers.

func (s *Store) PutUser(u types.UserIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutOrganization(o types.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *Store) PutProject(p types.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *Store) PutScanResult(r types.ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanResults[r.ID] = r
}

func (s *Store) PutVulnerability(v types.Vulnerability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vulns[v.ID] = v
	s.vulnIDByCve[v.CveID] = v.ID
}

func (s *Store) PutInstance(inst types.VulnerabilityInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.ID] = inst
}

// InstanceStore.

func (s *Store) FindInstance(ctx context.Context, id string) (*types.VulnerabilityInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findInstance(s.instances, id)
}

func (s *Store) UpdateInstanceStatus(ctx context.Context, id string, status types.Status, assigneeID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateInstanceStatus(s.instances, id, status, assigneeID)
}

func (s *Store) FindInstancesByScanResultIDs(ctx context.Context, scanResultIDs []string) ([]types.VulnerabilityInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return instancesByScanResults(s.instances, scanResultIDs), nil
}

func (s *Store) GroupCountByStatus(ctx context.Context, scanResultIDs []string) (map[types.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[types.Status]int{}
	for _, inst := range instancesByScanResults(s.instances, scanResultIDs) {
		counts[inst.Status]++
	}
	return counts, nil
}

// HistoryStore.

func (s *Store) AppendHistory(ctx context.Context, entry types.WorkflowHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *Store) ListHistory(ctx context.Context, instanceID string) ([]types.HistoryEntryWithUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listHistory(s.history, s.users, instanceID), nil
}

// TxRunner. The staged clones are swapped in only if fn succeeds, so a
// failure anywhere in the unit of work leaves no partial state.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &txView{
		users:     s.users,
		instances: maps.Clone(s.instances),
		history:   slices.Clone(s.history),
	}
	if err := fn(v); err != nil {
		return err
	}
	s.instances = v.instances
	s.history = v.history
	return nil
}

// ProjectStore.

func (s *Store) FindProject(ctx context.Context, id string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProjectsByOrganization(ctx context.Context, organizationID string) ([]types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Project
	for _, p := range s.projects {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ScanResultIDsByProject(ctx context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, store.ErrNotFound
	}
	var out []string
	for _, r := range s.scanResults {
		if r.ProjectID == projectID {
			out = append(out, r.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// VulnerabilityStore.

func (s *Store) FindVulnerabilityByCve(ctx context.Context, cveID string) (*types.Vulnerability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.vulnIDByCve[cveID]
	if !ok {
		return nil, store.ErrNotFound
	}
	v := s.vulns[id]
	return &v, nil
}

func (s *Store) FindVulnerability(ctx context.Context, id string) (*types.Vulnerability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vulns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (s *Store) FindOccurrencesByVulnerability(ctx context.Context, vulnerabilityID string) ([]types.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Occurrence
	for _, inst := range s.instances {
		if inst.VulnerabilityID != vulnerabilityID {
			continue
		}
		r, ok := s.scanResults[inst.ScanResultID]
		if !ok {
			continue
		}
		p, ok := s.projects[r.ProjectID]
		if !ok {
			continue
		}
		o, ok := s.orgs[p.OrganizationID]
		if !ok {
			continue
		}
		out = append(out, types.Occurrence{
			InstanceID:       inst.ID,
			ScanResultID:     r.ID,
			Image:            r.Image,
			ProjectID:        p.ID,
			ProjectName:      p.Name,
			OrganizationID:   o.ID,
			OrganizationName: o.Name,
			Severity:         inst.Severity,
			DiscoveredAt:     inst.DiscoveredAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out, nil
}

func (s *Store) DistinctCvesByProject(ctx context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for _, inst := range s.instances {
		r, ok := s.scanResults[inst.ScanResultID]
		if !ok || r.ProjectID != projectID {
			continue
		}
		if v, ok := s.vulns[inst.VulnerabilityID]; ok {
			seen[v.CveID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for cve := range seen {
		out = append(out, cve)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) StoreImpactSnapshot(ctx context.Context, snap types.ImpactSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.VulnerabilityID] = snap
	return nil
}

// Snapshot returns the cached impact calculation for a vulnerability id, if
// one was stored.
func (s *Store) Snapshot(vulnerabilityID string) (types.ImpactSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[vulnerabilityID]
	return snap, ok
}

// EvidenceStore.

func (s *Store) CreateEvidence(ctx context.Context, rec types.FixEvidenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence[rec.ID] = rec
	return nil
}

func (s *Store) FindEvidence(ctx context.Context, id string) (*types.FixEvidenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.evidence[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) ListEvidenceByInstance(ctx context.Context, instanceID string) ([]types.FixEvidenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.FixEvidenceRecord
	for _, rec := range s.evidence {
		if rec.InstanceID == instanceID {
			out = append(out, rec)
		}
	}
	sortEvidenceNewestFirst(out)
	return out, nil
}

func (s *Store) DeleteEvidence(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evidence[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.evidence, id)
	return nil
}

func (s *Store) CountEvidenceByTypeForProject(ctx context.Context, projectID string) (map[types.EvidenceType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[types.EvidenceType]int{}
	for _, rec := range s.evidence {
		if s.evidenceInProject(rec, projectID) {
			counts[rec.Type]++
		}
	}
	return counts, nil
}

func (s *Store) ListRecentEvidenceByProject(ctx context.Context, projectID string, limit int) ([]types.FixEvidenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.FixEvidenceRecord
	for _, rec := range s.evidence {
		if s.evidenceInProject(rec, projectID) {
			out = append(out, rec)
		}
	}
	sortEvidenceNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// evidenceInProject resolves evidence -> instance -> scan result -> project.
// Callers must hold the lock.
func (s *Store) evidenceInProject(rec types.FixEvidenceRecord, projectID string) bool {
	inst, ok := s.instances[rec.InstanceID]
	if !ok {
		return false
	}
	r, ok := s.scanResults[inst.ScanResultID]
	return ok && r.ProjectID == projectID
}

// IngestStore.

func (s *Store) UpsertVulnerability(ctx context.Context, v types.Vulnerability) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.vulnIDByCve[v.CveID]; ok {
		return id, nil
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	s.vulns[v.ID] = v
	s.vulnIDByCve[v.CveID] = v.ID
	return v.ID, nil
}

func (s *Store) CreateScanResult(ctx context.Context, r types.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[r.ProjectID]; !ok {
		return store.ErrNotFound
	}
	s.scanResults[r.ID] = r
	return nil
}

func (s *Store) CreateInstance(ctx context.Context, inst types.VulnerabilityInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.ID] = inst
	return nil
}

// Shared helpers over plain maps so the transactional views reuse them.

func findInstance(instances map[string]types.VulnerabilityInstance, id string) (*types.VulnerabilityInstance, error) {
	inst, ok := instances[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inst, nil
}

func updateInstanceStatus(instances map[string]types.VulnerabilityInstance, id string, status types.Status, assigneeID *string) error {
	inst, ok := instances[id]
	if !ok {
		return store.ErrNotFound
	}
	inst.Status = status
	if assigneeID != nil {
		inst.AssigneeID = assigneeID
	}
	instances[id] = inst
	return nil
}

func instancesByScanResults(instances map[string]types.VulnerabilityInstance, scanResultIDs []string) []types.VulnerabilityInstance {
	want := make(map[string]bool, len(scanResultIDs))
	for _, id := range scanResultIDs {
		want[id] = true
	}
	var out []types.VulnerabilityInstance
	for _, inst := range instances {
		if want[inst.ScanResultID] {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// listHistory walks the append-only log in reverse; appends are
// chronological, so the result is newest-first.
func listHistory(entries []types.WorkflowHistoryEntry, users map[string]types.UserIdentity, instanceID string) []types.HistoryEntryWithUser {
	var out []types.HistoryEntryWithUser
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.InstanceID != instanceID {
			continue
		}
		user, ok := users[e.UserID]
		if !ok {
			user = types.UserIdentity{ID: e.UserID}
		}
		out = append(out, types.HistoryEntryWithUser{WorkflowHistoryEntry: e, User: user})
	}
	return out
}

func sortEvidenceNewestFirst(recs []types.FixEvidenceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

// txView is the staging area used by InTx. The outer lock is held for the
// whole transaction, so its methods do not lock.
type txView struct {
	users     map[string]types.UserIdentity
	instances map[string]types.VulnerabilityInstance
	history   []types.WorkflowHistoryEntry
}

func (v *txView) Instances() store.InstanceStore { return (*txInstances)(v) }
func (v *txView) History() store.HistoryStore    { return (*txHistory)(v) }

type txInstances txView

func (t *txInstances) FindInstance(ctx context.Context, id string) (*types.VulnerabilityInstance, error) {
	return findInstance(t.instances, id)
}

func (t *txInstances) UpdateInstanceStatus(ctx context.Context, id string, status types.Status, assigneeID *string) error {
	return updateInstanceStatus(t.instances, id, status, assigneeID)
}

func (t *txInstances) FindInstancesByScanResultIDs(ctx context.Context, scanResultIDs []string) ([]types.VulnerabilityInstance, error) {
	return instancesByScanResults(t.instances, scanResultIDs), nil
}

func (t *txInstances) GroupCountByStatus(ctx context.Context, scanResultIDs []string) (map[types.Status]int, error) {
	counts := map[types.Status]int{}
	for _, inst := range instancesByScanResults(t.instances, scanResultIDs) {
		counts[inst.Status]++
	}
	return counts, nil
}

type txHistory txView

func (t *txHistory) AppendHistory(ctx context.Context, entry types.WorkflowHistoryEntry) error {
	t.history = append(t.history, entry)
	return nil
}

func (t *txHistory) ListHistory(ctx context.Context, instanceID string) ([]types.HistoryEntryWithUser, error) {
	return listHistory(t.history, t.users, instanceID), nil
}
