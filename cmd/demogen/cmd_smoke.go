package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"demogen/internal/format"
	"demogen/internal/logging"
	"demogen/internal/orchestrate"
	"demogen/internal/runlog"
)

var smokeFlags struct {
	config string
	env    string
	oppID  string
}

func newSmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Create one meeting, one email and one scorecard for a single opportunity",
		Long: `Smoke checks CRM access and activity capture end to end on one opportunity.
Its records are not tracked by any run; remove them by hand.`,
		RunE: runSmoke,
	}
	f := cmd.Flags()
	f.StringVarP(&smokeFlags.config, "config", "c", "", "Path to the YAML config (required)")
	f.StringVar(&smokeFlags.env, "env", "sandbox", "Target environment (sandbox, staging, prod-demo)")
	f.StringVar(&smokeFlags.oppID, "opp-id", "", "Opportunity id (required)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("opp-id")
	return cmd
}

func runSmoke(cmd *cobra.Command, _ []string) error {
	res, err := loadConfig(smokeFlags.config, smokeFlags.env, defaultLogDir)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client, _, err := connectCRM(ctx, &res.Config, logging.New("crm"))
	if err != nil {
		return err
	}
	r, err := orchestrate.New(orchestrate.Options{
		Resolved:    res,
		Concurrency: 1,
		Client:      client,
		Content:     newContent(&res.Config),
		Sink:        runlog.NewDiscard(res.RunID),
	})
	if err != nil {
		return err
	}
	result, err := r.SmokeTest(ctx, smokeFlags.oppID)
	fmt.Fprintln(cmd.OutOrStdout(), format.Smoke(format.ASCII, result))
	if err != nil {
		return fmt.Errorf("smoke test: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Check activity capture for these records.")
	return nil
}
