package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"demogen/internal/config"
	"demogen/internal/format"
	"demogen/internal/ledger"
	"demogen/internal/logging"
	"demogen/internal/orchestrate"
	"demogen/internal/runlog"
)

var runFlags struct {
	config      string
	env         string
	logDir      string
	concurrency int
	maxOpps     int
	resume      string
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate activity and scorecards for the selected opportunities",
		Long: `Run selects candidate opportunities and creates their planned meetings,
emails and scorecards. Everything created is recorded in the run directory;
pass --resume with a run id to finish an interrupted or partly failed run.`,
		RunE: runRun,
	}
	f := cmd.Flags()
	f.StringVarP(&runFlags.config, "config", "c", "", "Path to the YAML config (required unless --resume)")
	f.StringVar(&runFlags.env, "env", "sandbox", "Target environment (sandbox, staging, prod-demo)")
	f.StringVar(&runFlags.logDir, "log-dir", defaultLogDir, "Directory holding run directories")
	f.IntVar(&runFlags.concurrency, "concurrency", 5, "Opportunities processed in parallel")
	f.IntVar(&runFlags.maxOpps, "max-opps", 200, "Hard cap on opportunities processed")
	f.StringVar(&runFlags.resume, "resume", "", "Continue an existing run by id")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	if runFlags.concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}
	var (
		res *config.Resolved
		err error
	)
	if runFlags.resume != "" {
		res, err = loadRun(runFlags.logDir, runFlags.resume)
	} else {
		res, err = loadConfig(runFlags.config, runFlags.env, runFlags.logDir)
	}
	if err != nil {
		return err
	}
	return seed(cmd, res, runFlags.concurrency, runFlags.maxOpps, runFlags.resume == "")
}

// seed runs res to completion and prints its statistics. The manifest is
// written first for fresh runs so reset works even if the run fails.
func seed(cmd *cobra.Command, res *config.Resolved, concurrency, maxOpps int, fresh bool) error {
	ctx := cmd.Context()
	cfg := &res.Config
	logger := logging.New("run").With("run_id", res.RunID)

	var sink runlog.Sink
	if cfg.Run.DryRun {
		sink = runlog.NewDiscard(res.RunID)
	} else {
		if fresh {
			if err := res.Save(); err != nil {
				return err
			}
		}
		l, err := runlog.Open(res.RunID, res.RunDir)
		if err != nil {
			return err
		}
		sink = l
	}

	var store ledger.Ledger
	if cfg.UsesLedger() {
		l, err := ledger.Open(res.LedgerPath())
		if err != nil {
			return finalizeFailed(sink, fmt.Errorf("open ledger: %w", err))
		}
		defer l.Close()
		store = l
	}

	client, factory, err := connectCRM(ctx, cfg, logging.New("crm"))
	if err != nil {
		return finalizeFailed(sink, err)
	}

	r, err := orchestrate.New(orchestrate.Options{
		Resolved:    res,
		Concurrency: concurrency,
		MaxOpps:     maxOpps,
		Client:      client,
		Factory:     factory,
		Content:     newContent(cfg),
		Ledger:      store,
		Sink:        sink,
	})
	if err != nil {
		return finalizeFailed(sink, err)
	}

	logger.Info("starting run", "env", res.Env, "dir", res.RunDir, "dry_run", cfg.Run.DryRun)
	stats, runErr := r.Run(ctx)

	out := cmd.OutOrStdout()
	if cfg.Run.DryRun {
		fmt.Fprintln(out, "Dry run: no changes were made.")
	}
	fmt.Fprint(out, format.Stats(format.ASCII, stats))
	fmt.Fprintln(out)
	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", res.RunID, runErr)
	}
	if !cfg.Run.DryRun {
		fmt.Fprintf(out, "Run directory: %s\n", res.RunDir)
	}
	return nil
}

// finalizeFailed records err as a pipeline failure when the run cannot
// start.
func finalizeFailed(sink runlog.Sink, err error) error {
	sink.Error(runlog.ErrorEntry{Stage: orchestrate.StagePipeline, Err: err})
	if _, ferr := sink.Finalize(runlog.StatusFailed); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

var dryRunFlags struct {
	config  string
	env     string
	logDir  string
	maxOpps int
}

func newDryRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Show what a run would create, against mock opportunities",
		Long: `Dry-run plans every mock opportunity exactly as run would and reports the
counts. Nothing is written to the CRM or to the log directory.`,
		RunE: runDryRun,
	}
	f := cmd.Flags()
	f.StringVarP(&dryRunFlags.config, "config", "c", "", "Path to the YAML config (required)")
	f.StringVar(&dryRunFlags.env, "env", "sandbox", "Target environment (sandbox, staging, prod-demo)")
	f.StringVar(&dryRunFlags.logDir, "log-dir", defaultLogDir, "Directory holding run directories")
	f.IntVar(&dryRunFlags.maxOpps, "max-opps", 200, "Hard cap on opportunities processed")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runDryRun(cmd *cobra.Command, _ []string) error {
	res, err := loadConfig(dryRunFlags.config, dryRunFlags.env, dryRunFlags.logDir)
	if err != nil {
		return err
	}
	res.Config.Run.DryRun = true
	return seed(cmd, res, 1, dryRunFlags.maxOpps, true)
}
