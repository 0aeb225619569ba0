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

package evidence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/evidence"
	"github.com/vulndeck/vulndeck/pkg/store"
	"github.com/vulndeck/vulndeck/pkg/store/memstore"
)

func seed() *memstore.Store {
	db := memstore.New()
	db.PutOrganization(types.Organization{ID: "org-1", Name: "acme"})
	db.PutProject(types.Project{ID: "proj-1", OrganizationID: "org-1", Name: "api"})
	db.PutScanResult(types.ScanResult{ID: "scan-1", ProjectID: "proj-1", Image: "acme/api:1.0", CreatedAt: time.Now()})
	db.PutVulnerability(types.Vulnerability{ID: "vuln-1", CveID: "CVE-2024-0001", Severity: types.SeverityHigh})
	db.PutInstance(types.VulnerabilityInstance{
		ID:              "inst-1",
		ScanResultID:    "scan-1",
		VulnerabilityID: "vuln-1",
		Status:          types.StatusInProgress,
		Severity:        types.SeverityHigh,
		DiscoveredAt:    time.Now(),
	})
	return db
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	db := seed()
	log := evidence.NewLog(db, db)

	rec, err := log.Create(ctx, "user-1", evidence.CreateInput{
		InstanceID:  "inst-1",
		Type:        types.EvidencePullRequest,
		URL:         "https://github.com/acme/api/pull/42",
		Description: "bump libfoo",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "user-1", rec.AuthorID)
	require.False(t, rec.CreatedAt.IsZero())

	records, err := log.ForInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, rec.ID, records[0].ID)
}

func TestCreate_UnknownInstance(t *testing.T) {
	db := seed()
	log := evidence.NewLog(db, db)

	_, err := log.Create(context.Background(), "user-1", evidence.CreateInput{
		InstanceID: "inst-missing",
		Type:       types.EvidenceCommit,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete_AuthorOnly(t *testing.T) {
	ctx := context.Background()
	db := seed()
	log := evidence.NewLog(db, db)

	rec, err := log.Create(ctx, "user-1", evidence.CreateInput{
		InstanceID: "inst-1",
		Type:       types.EvidenceCommit,
		URL:        "https://github.com/acme/api/commit/abc123",
	})
	require.NoError(t, err)

	err = log.Delete(ctx, rec.ID, "user-2")
	require.ErrorIs(t, err, evidence.ErrNotAuthor)

	records, err := log.ForInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, log.Delete(ctx, rec.ID, "user-1"))

	records, err = log.ForInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.Empty(t, records)

	err = log.Delete(ctx, rec.ID, "user-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSummaryForProject(t *testing.T) {
	ctx := context.Background()
	db := seed()
	log := evidence.NewLog(db, db)

	// Seed directly so CreatedAt spreads across distinct instants.
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		kind := types.EvidencePullRequest
		if i%3 == 0 {
			kind = types.EvidencePackageUpdate
		}
		require.NoError(t, db.CreateEvidence(ctx, types.FixEvidenceRecord{
			ID:         fmt.Sprintf("ev-%02d", i),
			InstanceID: "inst-1",
			Type:       kind,
			AuthorID:   "user-1",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	sum, err := log.SummaryForProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Equal(t, map[types.EvidenceType]int{
		types.EvidencePullRequest:   8,
		types.EvidencePackageUpdate: 4,
	}, sum.CountByType)

	require.Len(t, sum.Recent, evidence.RecentLimit)
	require.Equal(t, "ev-11", sum.Recent[0].ID)
	for i := 1; i < len(sum.Recent); i++ {
		require.True(t, !sum.Recent[i].CreatedAt.After(sum.Recent[i-1].CreatedAt))
	}
}
