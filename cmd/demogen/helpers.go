package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"demogen/internal/config"
	"demogen/internal/content"
	"demogen/internal/crm"
	"demogen/internal/logging"
	"demogen/internal/orchestrate"
)

// connectCRM returns the client for cfg plus, for live runs, a factory that
// gives each worker its own. Tests replace it.
var connectCRM = dialCRM

// now is the CLI clock. Tests replace it.
var now = time.Now

func dialCRM(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crm.Client, crm.Factory, error) {
	if cfg.Run.DryRun {
		return crm.NewMock(), nil, nil
	}
	s := crm.Settings{
		InstanceURL:       cfg.Salesforce.InstanceURL,
		APIVersion:        cfg.Salesforce.APIVersion,
		RequestsPerSecond: cfg.Salesforce.RequestsPerSecond,
		Timeout:           cfg.Salesforce.Timeout,
	}
	if v := os.Getenv(crm.EnvInstanceURL); v != "" {
		s.InstanceURL = v
	}
	if s.InstanceURL == "" {
		return nil, nil, fmt.Errorf("no Salesforce instance: set salesforce.instance_url or %s", crm.EnvInstanceURL)
	}
	creds := crm.CredentialsFromEnv()
	opts := []crm.Option{crm.WithLogger(logger)}
	client, err := crm.Dial(ctx, s, creds, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to Salesforce: %w", err)
	}
	return client, crm.NewFactory(s, creds, opts...), nil
}

// newContent returns the LLM content generator when cfg enables it. A
// generator that cannot be configured is logged and skipped, so runs fall
// back to heuristic text.
func newContent(cfg *config.Config) orchestrate.Content {
	if !cfg.LLM.Enabled {
		return nil
	}
	logger := logging.New("content")
	g, err := content.FromEnv(cfg.LLM, content.WithLogger(logger))
	if err != nil {
		logger.Warn("content generation disabled", "error", err)
		return nil
	}
	return g
}

// loadConfig reads and validates the config file, then binds it to a new
// run under logDir.
func loadConfig(path, env, logDir string) (*config.Resolved, error) {
	if path == "" {
		return nil, fmt.Errorf("a config file is required (-c/--config)")
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return config.Resolve(cfg, path, env, logDir, now())
}

// loadRun reads the manifest of an existing run.
func loadRun(logDir, runID string) (*config.Resolved, error) {
	dir, err := config.FindRunDir(logDir, runID)
	if err != nil {
		return nil, err
	}
	return config.LoadManifest(dir)
}
