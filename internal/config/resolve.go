package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the resolved-config file name inside a run directory.
const ManifestFile = "config.resolved.yaml"

// LedgerFile is the local ledger file name inside a run directory.
const LedgerFile = "state.sqlite"

// Resolved is a Config bound to one run.
type Resolved struct {
	Config     Config
	ConfigPath string
	Env        string
	RunID      string
	RunDir     string
	// Anchor is the reference instant all generated activity times are
	// offset from. It is fixed per run so signatures survive reruns.
	Anchor    time.Time
	StartedAt time.Time
}

// manifest is the on-disk form of Resolved.
type manifest struct {
	RunID      string `yaml:"run_id"`
	Env        string `yaml:"env"`
	Timestamp  string `yaml:"timestamp"`
	ConfigPath string `yaml:"config_path"`
	Anchor     string `yaml:"anchor"`
	Config     Config `yaml:"config"`
}

// Resolve binds cfg to a new run rooted under logDir.
func Resolve(cfg *Config, configPath, env, logDir string, now time.Time) (*Resolved, error) {
	if !slices.Contains(Environments, env) {
		return nil, fmt.Errorf("unknown environment %q (want one of %s)", env, strings.Join(Environments, ", "))
	}
	now = now.UTC()
	anchor, err := cfg.Anchor(now)
	if err != nil {
		return nil, err
	}
	runID := NewRunID()
	dirName := fmt.Sprintf("%s_%s_%s", now.Format("2006-01-02T15-04-05Z"), cfg.Run.Name, runID)
	return &Resolved{
		Config:     *cfg,
		ConfigPath: configPath,
		Env:        env,
		RunID:      runID,
		RunDir:     filepath.Join(logDir, dirName),
		Anchor:     anchor,
		StartedAt:  now,
	}, nil
}

// NewRunID returns "run-" followed by eight hex characters of a random UUID.
func NewRunID() string {
	return "run-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Anchor is the instant plans are offset from: activity.anchor_date when
// set, else now truncated to UTC midnight.
func (c *Config) Anchor(now time.Time) (time.Time, error) {
	if c.Activity.AnchorDate != "" {
		t, err := time.Parse(time.DateOnly, c.Activity.AnchorDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse activity.anchor_date: %w", err)
		}
		return t.UTC(), nil
	}
	return now.UTC().Truncate(24 * time.Hour), nil
}

// LedgerPath is the location of this run's local ledger.
func (r *Resolved) LedgerPath() string {
	return filepath.Join(r.RunDir, LedgerFile)
}

// Save writes the run manifest into the run directory.
func (r *Resolved) Save() error {
	if err := os.MkdirAll(r.RunDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	m := manifest{
		RunID:      r.RunID,
		Env:        r.Env,
		Timestamp:  r.StartedAt.Format(time.RFC3339),
		ConfigPath: r.ConfigPath,
		Anchor:     r.Anchor.Format(time.RFC3339),
		Config:     r.Config,
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.RunDir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest of an existing run directory. The
// embedded config is validated again so a hand-edited manifest fails early.
func LoadManifest(runDir string) (*Resolved, error) {
	data, err := os.ReadFile(filepath.Join(runDir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := manifest{Config: Default()}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.RunID == "" {
		return nil, fmt.Errorf("manifest %s has no run_id", runDir)
	}
	if err := m.Config.Validate(); err != nil {
		return nil, err
	}
	anchor, err := time.Parse(time.RFC3339, m.Anchor)
	if err != nil {
		return nil, fmt.Errorf("parse manifest anchor: %w", err)
	}
	started, _ := time.Parse(time.RFC3339, m.Timestamp)
	return &Resolved{
		Config:     m.Config,
		ConfigPath: m.ConfigPath,
		Env:        m.Env,
		RunID:      m.RunID,
		RunDir:     runDir,
		Anchor:     anchor.UTC(),
		StartedAt:  started.UTC(),
	}, nil
}

// FindRunDir returns the directory under logDir whose name contains runID.
func FindRunDir(logDir, runID string) (string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return "", fmt.Errorf("read log dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), "_"+runID) {
			return filepath.Join(logDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no run found with id %s under %s", runID, logDir)
}
