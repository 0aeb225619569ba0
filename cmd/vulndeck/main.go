package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/cmd/vulndeck/commands/evidence"
	"github.com/vulndeck/vulndeck/cmd/vulndeck/commands/impact"
	"github.com/vulndeck/vulndeck/cmd/vulndeck/commands/ingest"
	"github.com/vulndeck/vulndeck/cmd/vulndeck/commands/vexport"
	"github.com/vulndeck/vulndeck/cmd/vulndeck/commands/workflow"
	"github.com/vulndeck/vulndeck/cmd/vulndeck/version"
	"github.com/vulndeck/vulndeck/pkg/envutil"
)

var logLevel = new(slog.LevelVar)

func main() {
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(logHandler))
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("Error", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vulndeck",
		Short:         "Track and score the remediation lifecycle of detected vulnerabilities",
		Version:       version.GetVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()

	// The debug flag value is determined by: CLI flag > DEBUG env var > default (false)
	flags.Bool("debug", envutil.Bool("DEBUG", false), "debug mode [$DEBUG]")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			logLevel.Set(slog.LevelDebug)
		}
		return nil
	}

	cmd.AddCommand(ingest.New())
	cmd.AddCommand(workflow.New())
	cmd.AddCommand(impact.New())
	cmd.AddCommand(evidence.New())
	cmd.AddCommand(vexport.New())

	return cmd
}
