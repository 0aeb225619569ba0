package render

import (
	"fmt"
	"io"
	"os"

	"github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/impact"
	"github.com/vulndeck/vulndeck/pkg/workflow"
)

// CveImpact prints the impacted-entity breakdown and metrics of one CVE.
func CveImpact(w io.Writer, imp *impact.CveImpact, knownExploited bool) {
	if w == nil {
		w = os.Stdout
	}

	exploited := ""
	if knownExploited {
		exploited = tml.Sprintf("  <red><bold>[known exploited]</bold></red>")
	}
	fmt.Fprintf(w, "%s  %s  score %.2f%s\n", imp.CveID, colorSeverity(string(imp.Severity)), imp.TotalImpactScore, exploited)
	fmt.Fprintf(w, "%s\n", imp.Title)
	fmt.Fprintf(w, "projects=%d images=%d occurrences=%d oldest=%s newest=%s\n\n",
		imp.Metrics.ProjectCount, imp.Metrics.ImageCount, imp.Metrics.TotalOccurrences,
		imp.Metrics.OldestOccurrence.Format("2006-01-02"), imp.Metrics.NewestOccurrence.Format("2006-01-02"))

	t := table.New(w)
	t.SetHeaders("Type", "Name", "Severity", "Occurrences", "Last Seen")
	for _, e := range imp.ImpactedProjects {
		addEntityRow(t, e)
	}
	for _, e := range imp.ImpactedImages {
		addEntityRow(t, e)
	}
	t.Render()
}

func addEntityRow(t *table.Table, e impact.ImpactedEntity) {
	t.AddRow(
		e.Type,
		e.Name,
		colorSeverity(string(e.Severity)),
		fmt.Sprintf("%d", e.Occurrences),
		e.LastSeen.Format("2006-01-02 15:04"),
	)
}

// ProjectImpact prints a project's CVE ranking and summary.
func ProjectImpact(w io.Writer, pi *impact.ProjectImpact) {
	if w == nil {
		w = os.Stdout
	}

	t := table.New(w)
	t.SetHeaders("CVE", "Severity", "Score", "Projects", "Images", "Occurrences")
	for _, imp := range pi.Cves {
		t.AddRow(
			imp.CveID,
			colorSeverity(string(imp.Severity)),
			fmt.Sprintf("%.2f", imp.TotalImpactScore),
			fmt.Sprintf("%d", imp.Metrics.ProjectCount),
			fmt.Sprintf("%d", imp.Metrics.ImageCount),
			fmt.Sprintf("%d", imp.Metrics.TotalOccurrences),
		)
	}
	t.Render()
	fmt.Fprintf(w, "total=%d critical-impact=%d high-impact=%d average=%.2f\n",
		pi.Summary.TotalCves, pi.Summary.CriticalImpactCves, pi.Summary.HighImpactCves, pi.Summary.AverageImpactScore)
}

// OrganizationImpact prints the org-wide top CVEs and per-project summaries.
func OrganizationImpact(w io.Writer, oi *impact.OrganizationImpact) {
	if w == nil {
		w = os.Stdout
	}

	t := table.New(w)
	t.SetHeaders("CVE", "Severity", "Score")
	for _, imp := range oi.TopImpactCves {
		t.AddRow(imp.CveID, colorSeverity(string(imp.Severity)), fmt.Sprintf("%.2f", imp.TotalImpactScore))
	}
	t.Render()

	pt := table.New(w)
	pt.SetHeaders("Project", "CVEs", "Critical", "High", "Average")
	for _, p := range oi.Projects {
		pt.AddRow(
			p.ProjectName,
			fmt.Sprintf("%d", p.Summary.TotalCves),
			fmt.Sprintf("%d", p.Summary.CriticalImpactCves),
			fmt.Sprintf("%d", p.Summary.HighImpactCves),
			fmt.Sprintf("%.2f", p.Summary.AverageImpactScore),
		)
	}
	pt.Render()
}

// WorkflowStats prints status counts in lifecycle order. Absent statuses are
// skipped, matching the aggregation contract.
func WorkflowStats(w io.Writer, stats map[types.Status]int) {
	if w == nil {
		w = os.Stdout
	}

	t := table.New(w)
	t.SetHeaders("Status", "Count")
	for _, status := range types.AllStatuses {
		if n, ok := stats[status]; ok {
			t.AddRow(string(status), fmt.Sprintf("%d", n))
		}
	}
	t.Render()
}

// History prints an instance's audit trail newest-first.
func History(w io.Writer, entries []types.HistoryEntryWithUser) {
	if w == nil {
		w = os.Stdout
	}

	t := table.New(w)
	t.SetHeaders("When", "From", "To", "User", "Comment")
	for _, e := range entries {
		user := e.User.Name
		if user == "" {
			user = e.User.ID
		}
		t.AddRow(
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			string(e.FromStatus),
			string(e.ToStatus),
			user,
			e.Comment,
		)
	}
	t.Render()
}

// BulkResult prints per-item bulk outcomes.
func BulkResult(w io.Writer, res *workflow.BulkResult) {
	if w == nil {
		w = os.Stdout
	}
	for _, id := range res.Successful {
		fmt.Fprintln(w, tml.Sprintf("<green>ok</green>      %s", id))
	}
	for _, f := range res.Failed {
		fmt.Fprintln(w, tml.Sprintf("<red>failed</red>  %s: %s", f.ID, f.Reason))
	}
	fmt.Fprintf(w, "%d succeeded, %d failed\n", len(res.Successful), len(res.Failed))
}

func colorSeverity(severity string) string {
	switch severity {
	case "CRITICAL":
		return tml.Sprintf("<red><bold>CRITICAL</bold></red>")
	case "HIGH":
		return tml.Sprintf("<red>HIGH</red>")
	case "MEDIUM":
		return tml.Sprintf("<yellow>MEDIUM</yellow>")
	case "LOW":
		return tml.Sprintf("<blue>LOW</blue>")
	default:
		return severity
	}
}
