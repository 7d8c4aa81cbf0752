package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"demogen/internal/display"
	"demogen/internal/format"
	"demogen/internal/logging"
	"demogen/internal/orchestrate"
)

var resetFlags struct {
	runID  string
	logDir string
	yes    bool
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the CRM records a run created",
		Long: `Reset removes the meetings and emails a run created. Tag-mode runs delete
every record carrying the run id; other runs delete what their ledger lists.
Cleanup is best effort: records that fail to delete are counted and skipped.`,
		RunE: runReset,
	}
	f := cmd.Flags()
	f.StringVar(&resetFlags.runID, "run-id", "", "Run id (required)")
	f.StringVar(&resetFlags.logDir, "log-dir", defaultLogDir, "Directory holding run directories")
	f.BoolVarP(&resetFlags.yes, "yes", "y", false, "Do not ask for confirmation")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	res, err := loadRun(resetFlags.logDir, resetFlags.runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !resetFlags.yes {
		fmt.Fprintf(out, "Delete records created by %s (%s)? [y/N] ", res.RunID, display.Mode(res.Config.Run.IdempotencyMode))
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()
	client, _, err := connectCRM(ctx, &res.Config, logging.New("crm"))
	if err != nil {
		return err
	}
	report, err := orchestrate.Reconcile(ctx, orchestrate.ReconcileOptions{
		Resolved: res,
		Client:   client,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, format.Cleanup(format.ASCII, report))
	if report.Failed > 0 {
		return fmt.Errorf("%d record(s) could not be deleted", report.Failed)
	}
	return nil
}
