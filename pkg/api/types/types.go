package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the remediation status of a vulnerability instance.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusAssigned      Status = "ASSIGNED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusFixSubmitted  Status = "FIX_SUBMITTED"
	StatusVerifying     Status = "VERIFYING"
	StatusFixed         Status = "FIXED"
	StatusClosed        Status = "CLOSED"
	StatusIgnored       Status = "IGNORED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// AllStatuses lists every remediation status, in lifecycle order.
var AllStatuses = []Status{
	StatusOpen,
	StatusAssigned,
	StatusInProgress,
	StatusFixSubmitted,
	StatusVerifying,
	StatusFixed,
	StatusClosed,
	StatusIgnored,
	StatusFalsePositive,
}

// Severity of a vulnerability definition, normalized to upper case.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// EvidenceType classifies a fix evidence record.
type EvidenceType string

const (
	EvidencePullRequest   EvidenceType = "PULL_REQUEST"
	EvidenceCommit        EvidenceType = "COMMIT"
	EvidencePackageUpdate EvidenceType = "PACKAGE_UPDATE"
	EvidenceImageUpdate   EvidenceType = "IMAGE_UPDATE"
	EvidenceConfigChange  EvidenceType = "CONFIG_CHANGE"
	EvidenceOther         EvidenceType = "OTHER"
)

// Organization owns projects.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project belongs to an organization and owns scan results.
type Project struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
}

// UserIdentity is the public projection of a user joined onto history
// entries: id, name and email, nothing else.
type UserIdentity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ScanResult is one ingested scanner report against one image.
type ScanResult struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// Vulnerability is the definition shared by all instances with the same CVE
// identity.
type Vulnerability struct {
	ID          string   `json:"id"`
	CveID       string   `json:"cveId"`
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
}

// VulnerabilityInstance is one occurrence of a vulnerability in one scan
// result. Instances are never hard-deleted; closure is a status.
type VulnerabilityInstance struct {
	ID              string    `json:"id"`
	ScanResultID    string    `json:"scanResultId"`
	VulnerabilityID string    `json:"vulnerabilityId"`
	Status          Status    `json:"status"`
	AssigneeID      *string   `json:"assigneeId,omitempty"`
	Severity        Severity  `json:"severity"`
	DiscoveredAt    time.Time `json:"discoveredAt"`
}

// WorkflowHistoryEntry is the immutable audit record of one transition.
// Exactly one entry is appended per successful transition.
type WorkflowHistoryEntry struct {
	ID         string          `json:"id"`
	InstanceID string          `json:"instanceId"`
	FromStatus Status          `json:"fromStatus"`
	ToStatus   Status          `json:"toStatus"`
	UserID     string          `json:"userId"`
	Comment    string          `json:"comment,omitempty"`
	Evidence   json.RawMessage `json:"evidence,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// HistoryEntryWithUser is a history entry joined with the acting user's
// public identity.
type HistoryEntryWithUser struct {
	WorkflowHistoryEntry
	User UserIdentity `json:"user"`
}

// EvidenceAttachment describes one uploaded file on an evidence record.
type EvidenceAttachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"storageKey"`
}

// FixEvidenceRecord is supporting proof that a fix was applied. Records are
// never mutated after creation, only deleted by their author.
type FixEvidenceRecord struct {
	ID          string               `json:"id"`
	InstanceID  string               `json:"instanceId"`
	Type        EvidenceType         `json:"type"`
	URL         string               `json:"url,omitempty"`
	Description string               `json:"description,omitempty"`
	BeforeValue string               `json:"beforeValue,omitempty"`
	AfterValue  string               `json:"afterValue,omitempty"`
	Attachments []EvidenceAttachment `json:"attachments,omitempty"`
	AuthorID    string               `json:"authorId"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// Occurrence is one instance joined with its scan result, project and
// organization, as consumed by impact aggregation.
type Occurrence struct {
	InstanceID       string    `json:"instanceId"`
	ScanResultID     string    `json:"scanResultId"`
	Image            string    `json:"image"`
	ProjectID        string    `json:"projectId"`
	ProjectName      string    `json:"projectName"`
	OrganizationID   string    `json:"organizationId"`
	OrganizationName string    `json:"organizationName"`
	Severity         Severity  `json:"severity"`
	DiscoveredAt     time.Time `json:"discoveredAt"`
}

// ImpactSnapshot is a denormalized cache of a CVE impact calculation, keyed
// by the vulnerability's internal id. It is a cache, never a second source
// of truth; callers must check CalculatedAt before trusting it.
type ImpactSnapshot struct {
	VulnerabilityID    string    `json:"vulnerabilityId"`
	CveID              string    `json:"cveId"`
	AffectedProjectIDs []string  `json:"affectedProjectIds"`
	AffectedImages     []string  `json:"affectedImages"`
	Score              float64   `json:"score"`
	CalculatedAt       time.Time `json:"calculatedAt"`
}

// NormalizeSeverity maps arbitrary scanner severity strings onto the known
// set, defaulting to UNKNOWN.
func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToUpper(s)) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(strings.ToUpper(s))
	default:
		return SeverityUnknown
	}
}
