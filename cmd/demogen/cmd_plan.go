package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"demogen/internal/config"
	"demogen/internal/format"
	"demogen/internal/orchestrate"
)

var planFlags struct {
	config   string
	oppID    string
	markdown bool
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the activity plan and scorecards for one opportunity, offline",
		RunE:  runPlan,
	}
	f := cmd.Flags()
	f.StringVarP(&planFlags.config, "config", "c", "", "Path to the YAML config (required)")
	f.StringVar(&planFlags.oppID, "opp-id", "", "Opportunity id (required)")
	f.BoolVar(&planFlags.markdown, "markdown", false, "Render tables as Markdown")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("opp-id")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromPath(planFlags.config)
	if err != nil {
		return err
	}
	p, err := orchestrate.PreviewOpportunity(cmd.Context(), cfg, planFlags.oppID, now())
	if err != nil {
		return err
	}
	mode := format.ASCII
	if planFlags.markdown {
		mode = format.Markdown
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Anchor: %s\n", p.Anchor.Format("2006-01-02"))
	fmt.Fprintln(out, format.Plan(mode, p.Plan))
	for _, sc := range p.Scorecards {
		fmt.Fprintln(out, format.Scorecard(mode, sc))
	}
	return nil
}
