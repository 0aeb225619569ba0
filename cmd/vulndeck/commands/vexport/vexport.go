package vexport

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/pkg/cliutil"
	"github.com/vulndeck/vulndeck/pkg/vexport"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vexport PROJECT_ID",
		Short:   "Export a project's remediation state as CycloneDX VEX",
		Example: "  vulndeck vexport prj-1 -o project.vex.cdx.json",
		Args:    cobra.ExactArgs(1),
		RunE:    action,
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func action(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, _, err := cliutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	scanResultIDs, err := db.ScanResultIDsByProject(ctx, args[0])
	if err != nil {
		return err
	}
	instances, err := db.FindInstancesByScanResultIDs(ctx, scanResultIDs)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := vexport.NewWriter(out)
	for _, inst := range instances {
		vuln, err := db.FindVulnerability(ctx, inst.VulnerabilityID)
		if err != nil {
			return err
		}
		w.Add(vexport.Item{CveID: vuln.CveID, Severity: vuln.Severity, Status: inst.Status})
	}
	return w.Close()
}
