package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"demogen/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	defaultEnvFile = ".env"
	defaultLogDir  = "runs"
)

var rootFlags struct {
	logLevel  string
	logFormat string
	envFile   string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "demogen",
		Short: "Seed a CRM with deterministic synthetic sales activity",
		Long: `demogen creates meetings, emails and qualification scorecards for demo
opportunities. Output is a pure function of the configured seed, and every run
records what it created so reruns converge and reset can undo them.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           version,
		PersistentPreRunE: setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&rootFlags.envFile, "env-file", defaultEnvFile, "Credentials file loaded into the environment when present")

	root.AddCommand(
		newRunCmd(),
		newDryRunCmd(),
		newStatusCmd(),
		newResetCmd(),
		newSmokeCmd(),
		newPlanCmd(),
		newServeCmd(),
	)
	return root
}

func setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(rootFlags.logLevel)
	if err != nil {
		return err
	}
	if rootFlags.logFormat != "text" && rootFlags.logFormat != "json" {
		return fmt.Errorf("unknown log format %q", rootFlags.logFormat)
	}
	logging.Init(level, rootFlags.logFormat, cmd.ErrOrStderr())
	return loadEnvFile(rootFlags.envFile)
}

// loadEnvFile never overrides variables that are already set. A missing
// default file is fine; a missing explicit one is not.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
