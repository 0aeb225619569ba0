package workflow

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/pkg/api/types"
	"github.com/vulndeck/vulndeck/pkg/cliutil"
	"github.com/vulndeck/vulndeck/pkg/render"
	"github.com/vulndeck/vulndeck/pkg/workflow"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Drive the remediation status workflow",
	}
	cmd.AddCommand(newTransitionCommand())
	cmd.AddCommand(newBulkCommand())
	cmd.AddCommand(newAssignCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newStatsCommand())
	return cmd
}

func newTransitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transition INSTANCE_ID",
		Short:   "Transition one instance to a new status",
		Example: "  vulndeck workflow transition inst-1 --to IN_PROGRESS --user u-1 --comment 'picking this up'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			to, _ := flags.GetString("to")
			from, _ := flags.GetString("from")
			comment, _ := flags.GetString("comment")
			userID, _ := flags.GetString("user")
			if to == "" || userID == "" {
				return fmt.Errorf("both --to and --user are required")
			}

			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			engine := workflow.NewEngine(db, db, db, db)
			res, err := engine.TransitionStatus(cmd.Context(), args[0], userID, workflow.TransitionRequest{
				From:    types.Status(from),
				To:      types.Status(to),
				Comment: comment,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s at %s\n",
				res.InstanceID, res.From, res.To, res.Timestamp.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("to", "", "Target status")
	flags.String("from", "", "Status the caller believes the instance is in (audit only)")
	flags.String("comment", "", "Free-text comment for the history entry")
	flags.String("user", "", "Acting user id")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newBulkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bulk INSTANCE_ID...",
		Short:   "Transition many instances, reporting per-item outcomes",
		Example: "  vulndeck workflow bulk inst-1 inst-2 inst-3 --to IGNORED --user u-1",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			to, _ := flags.GetString("to")
			comment, _ := flags.GetString("comment")
			userID, _ := flags.GetString("user")
			if to == "" || userID == "" {
				return fmt.Errorf("both --to and --user are required")
			}

			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			engine := workflow.NewEngine(db, db, db, db)
			res := engine.BulkTransition(cmd.Context(), args, userID, types.Status(to), comment)
			render.BulkResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("to", "", "Target status")
	flags.String("comment", "", "Free-text comment for the history entries")
	flags.String("user", "", "Acting user id")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newAssignCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assign INSTANCE_ID ASSIGNEE_ID",
		Short:   "Assign an instance, forcing its status to ASSIGNED",
		Example: "  vulndeck workflow assign inst-1 u-2 --by u-1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")
			if by == "" {
				return fmt.Errorf("--by is required")
			}

			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			engine := workflow.NewEngine(db, db, db, db)
			if err := engine.AutoAssign(cmd.Context(), args[0], args[1], by); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s assigned to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().String("by", "", "User id performing the assignment")
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history INSTANCE_ID",
		Short: "Show an instance's audit trail, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			engine := workflow.NewEngine(db, db, db, db)
			entries, err := engine.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			render.History(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats PROJECT_ID",
		Short: "Show status counts across a project's instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := cliutil.OpenStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			engine := workflow.NewEngine(db, db, db, db)
			stats, err := engine.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			render.WorkflowStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cliutil.AddConfigFlag(cmd)
	return cmd
}
