package evidence

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/cliutil"
	"github.com/vulndeck/vulndeck/pkg/evidence"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Attach and query fix evidence",
	}
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDeleteCommand())
	cmd.AddCommand(newSummaryCommand())
	return cmd
}

func newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add INSTANCE_ID",
		Short:   "Attach a fix evidence record to an instance",
		Example: "  vulndeck evidence add inst-1 --type PULL_REQUEST --url https://github.com/acme/app/pull/42 --user u-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			evidenceType, _ := flags.GetString("type")
			url, _ := flags.GetString("url")
			description, _ := flags.GetString("description")
			before, _ := flags.GetString("before")
			after, _ := flags.GetString("after")
			userID, _ := flags.GetString("user")
			if evidenceType == "" || userID == "" {
				return fmt.Errorf("both --type and --user are required")
			}

			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := evidence.NewLog(db, db).Create(cmd.Context(), userID, evidence.CreateInput{
				InstanceID:  args[0],
				Type:        types.EvidenceType(evidenceType),
				URL:         url,
				Description: description,
				BeforeValue: before,
				AfterValue:  after,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evidence %s created\n", rec.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("type", "", "Evidence type (PULL_REQUEST, COMMIT, PACKAGE_UPDATE, IMAGE_UPDATE, CONFIG_CHANGE, OTHER)")
	flags.String("url", "", "Link to the evidence")
	flags.String("description", "", "Free-text description")
	flags.String("before", "", "Value before the fix (package version, tag, ...)")
	flags.String("after", "", "Value after the fix")
	flags.String("user", "", "Authoring user id")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list INSTANCE_ID",
		Short: "List the evidence attached to an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := evidence.NewLog(db, db).ForInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete EVIDENCE_ID",
		Short: "Delete an evidence record (author only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := evidence.NewLog(db, db).Delete(cmd.Context(), args[0], userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evidence %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("user", "", "Requesting user id")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newSummaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary PROJECT_ID",
		Short: "Summarize a project's evidence by type with the most recent records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := evidence.NewLog(db, db).SummaryForProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}
