package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/cliutil"
	"github.com/vulndeck/vulndeck/pkg/ingest"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ingest REPORT.json",
		Short:   "Ingest a Trivy JSON scan report",
		Long:    "Parses a Trivy JSON report and creates a scan result plus one OPEN vulnerability instance per reported CVE.",
		Example: "  vulndeck ingest --project prj-1 trivy.json",
		Args:    cobra.ExactArgs(1),
		RunE:    action,
	}
	flags := cmd.Flags()
	flags.String("project", "", "Project id receiving the scan result")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func action(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID, _ := cmd.Flags().GetString("project")
	if projectID == "" {
		return fmt.Errorf("--project is required")
	}

	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var report types.ScanReport
	if err := json.Unmarshal(b, &report); err != nil {
		return fmt.Errorf("parse report %q: %w", args[0], err)
	}

	db, _, err := cliutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := ingest.NewIngestor(db, db).IngestReport(ctx, projectID, report)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scan result %s: %d definitions, %d instances\n",
		res.ScanResultID, res.Definitions, res.Instances)
	return nil
}
