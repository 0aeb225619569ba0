// Package store declares the persistence contracts the engines depend on.
// Implementations live in the memstore and postgres sub-packages.
package store

import (
	"context"
	"errors"

	"github.com/vulndeck/vulndeck/pkg/api/types"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// InstanceStore reads and mutates vulnerability instances.
type InstanceStore interface {
	FindInstance(ctx context.Context, id string) (*types.VulnerabilityInstance, error)
	// UpdateInstanceStatus sets the status and, when assigneeID is non-nil,
	// the assignee of an instance.
	UpdateInstanceStatus(ctx context.Context, id string, status types.Status, assigneeID *string) error
	FindInstancesByScanResultIDs(ctx context.Context, scanResultIDs []string) ([]types.VulnerabilityInstance, error)
	// GroupCountByStatus counts instances per status across the given scan
	// results. Statuses with no instances are absent from the map.
	GroupCountByStatus(ctx context.Context, scanResultIDs []string) (map[types.Status]int, error)
}

// HistoryStore owns the append-only workflow audit trail.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry types.WorkflowHistoryEntry) error
	// ListHistory returns entries newest-first, each joined with the acting
	// user's public identity.
	ListHistory(ctx context.Context, instanceID string) ([]types.HistoryEntryWithUser, error)
}

// Tx exposes the stores participating in one atomic unit of work.
type Tx interface {
	Instances() InstanceStore
	History() HistoryStore
}

// TxRunner runs a function inside a transaction. If fn returns an error the
// transaction is rolled back and none of its writes are visible.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// ProjectStore resolves projects and their scan results.
type ProjectStore interface {
	FindProject(ctx context.Context, id string) (*types.Project, error)
	ListProjectsByOrganization(ctx context.Context, organizationID string) ([]types.Project, error)
	ScanResultIDsByProject(ctx context.Context, projectID string) ([]string, error)
}

// VulnerabilityStore resolves vulnerability definitions and their
// occurrences across the whole organization tree.
type VulnerabilityStore interface {
	FindVulnerabilityByCve(ctx context.Context, cveID string) (*types.Vulnerability, error)
	FindVulnerability(ctx context.Context, id string) (*types.Vulnerability, error)
	// FindOccurrencesByVulnerability returns every instance of the given
	// vulnerability joined with its scan result, project and organization.
	FindOccurrencesByVulnerability(ctx context.Context, vulnerabilityID string) ([]types.Occurrence, error)
	// DistinctCvesByProject returns the distinct CVE ids appearing anywhere
	// in the project's scan results.
	DistinctCvesByProject(ctx context.Context, projectID string) ([]string, error)
	// StoreImpactSnapshot upserts a cached impact calculation keyed by the
	// vulnerability's internal id.
	StoreImpactSnapshot(ctx context.Context, snap types.ImpactSnapshot) error
}

// EvidenceStore persists fix evidence records.
type EvidenceStore interface {
	CreateEvidence(ctx context.Context, rec types.FixEvidenceRecord) error
	FindEvidence(ctx context.Context, id string) (*types.FixEvidenceRecord, error)
	ListEvidenceByInstance(ctx context.Context, instanceID string) ([]types.FixEvidenceRecord, error)
	DeleteEvidence(ctx context.Context, id string) error
	CountEvidenceByTypeForProject(ctx context.Context, projectID string) (map[types.EvidenceType]int, error)
	ListRecentEvidenceByProject(ctx context.Context, projectID string, limit int) ([]types.FixEvidenceRecord, error)
}

// IngestStore receives records created during scan report ingestion.
type IngestStore interface {
	// UpsertVulnerability creates the definition if its CVE id is unknown
	// and returns the internal id either way.
	UpsertVulnerability(ctx context.Context, v types.Vulnerability) (string, error)
	CreateScanResult(ctx context.Context, r types.ScanResult) error
	CreateInstance(ctx context.Context, inst types.VulnerabilityInstance) error
}
