package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"demogen/internal/config"
	"demogen/internal/format"
	"demogen/internal/runlog"
)

var statusFlags struct {
	runID    string
	logDir   string
	errors   int
	markdown bool
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status, statistics and recent errors of a run",
		RunE:  runStatus,
	}
	f := cmd.Flags()
	f.StringVar(&statusFlags.runID, "run-id", "", "Run id (required)")
	f.StringVar(&statusFlags.logDir, "log-dir", defaultLogDir, "Directory holding run directories")
	f.IntVar(&statusFlags.errors, "errors", 5, "Number of recent errors to show")
	f.BoolVar(&statusFlags.markdown, "markdown", false, "Render tables as Markdown")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	dir, err := config.FindRunDir(statusFlags.logDir, statusFlags.runID)
	if err != nil {
		return err
	}
	mode := format.ASCII
	if statusFlags.markdown {
		mode = format.Markdown
	}
	out := cmd.OutOrStdout()

	st, err := runlog.ReadStatus(dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, format.RunStatus(mode, st))

	stats, err := runlog.ReadSummary(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintln(out, "No summary yet: the run has not finished.")
	case err != nil:
		return err
	default:
		fmt.Fprintln(out, format.Stats(mode, stats))
	}

	recent, err := runlog.TailErrors(dir, statusFlags.errors)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Fprintln(out, format.Errors(mode, recent))
	}
	return nil
}
