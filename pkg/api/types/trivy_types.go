package types

// Subset of https://pkg.go.dev/github.com/aquasecurity/trivy@v0.67.2/pkg/types
// covering only the fields scan ingestion reads. Declared locally so that
// ingesting Trivy JSON does not pull in the trivy module.

type ScanReport struct {
	SchemaVersion int              `json:",omitempty"`
	ArtifactName  string           `json:",omitempty"`
	ArtifactType  string           `json:",omitempty"`
	Results       []ScanReportItem `json:",omitempty"`
}

type ScanReportItem struct {
	Target          string              `json:",omitempty"`
	Class           string              `json:",omitempty"`
	Type            string              `json:",omitempty"`
	Vulnerabilities []ScanVulnerability `json:",omitempty"`
}

type ScanVulnerability struct {
	VulnerabilityID string `json:",omitempty"`
	PkgID           string `json:",omitempty"`
	Title           string `json:",omitempty"`
	Description     string `json:",omitempty"`
	Severity        string `json:",omitempty"`
}
