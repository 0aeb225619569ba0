package impact

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/pkg/cliutil"
	"github.com/vulndeck/vulndeck/pkg/config"
	"github.com/vulndeck/vulndeck/pkg/impact"
	"github.com/vulndeck/vulndeck/pkg/kev"
	"github.com/vulndeck/vulndeck/pkg/render"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Compute impact scores from current occurrence data",
	}
	cmd.AddCommand(newCveCommand())
	cmd.AddCommand(newProjectCommand())
	cmd.AddCommand(newOrgCommand())
	cmd.AddCommand(newSnapshotCommand())
	return cmd
}

func newCveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cve CVE_ID",
		Short:   "Aggregate one CVE's impact across all projects and images",
		Example: "  vulndeck impact cve CVE-2024-1234",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cfg, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			imp, err := impact.NewEngine(db, db).CalculateCveImpact(ctx, args[0])
			if err != nil {
				return err
			}

			knownExploited := false
			if cfg.KEVEnabled() {
				if catalog := fetchCatalog(cmd, cfg); catalog != nil {
					knownExploited = catalog.Has(imp.CveID)
				}
			}
			render.CveImpact(cmd.OutOrStdout(), imp, knownExploited)
			return nil
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project PROJECT_ID",
		Short: "Rank every CVE seen in a project by impact score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			pi, err := impact.NewEngine(db, db).CalculateProjectImpact(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			render.ProjectImpact(cmd.OutOrStdout(), pi)
			return nil
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newOrgCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org ORGANIZATION_ID",
		Short: "Roll impact up across every project of an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			oi, err := impact.NewEngine(db, db).CalculateOrganizationImpact(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			render.OrganizationImpact(cmd.OutOrStdout(), oi)
			return nil
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot CVE_ID",
		Short: "Recompute a CVE's impact and store the denormalized snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := impact.NewEngine(db, db).StoreImpactCalculation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: score %.2f across %d projects and %d images, stored at %s\n",
				snap.CveID, snap.Score, len(snap.AffectedProjectIDs), len(snap.AffectedImages),
				snap.CalculatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}

// fetchCatalog returns nil when the catalog cannot be fetched; the impact
// output simply omits the known-exploited marker then.
func fetchCatalog(cmd *cobra.Command, cfg *config.Config) *kev.Catalog {
	cache, err := kev.NewCache(cfg.CacheDir, 0)
	if err != nil {
		slog.Warn("KEV cache unavailable", "error", err)
		cache = nil
	}
	catalog, err := kev.NewClient(cache, cfg.KEV.URL).FetchCatalog(cmd.Context())
	if err != nil {
		slog.Warn("KEV catalog unavailable", "error", err)
		return nil
	}
	return catalog
}
