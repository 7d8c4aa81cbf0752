// Package config loads, validates and resolves demogen run configuration.
//
// A Config is the YAML document a user edits. A Resolved config binds one
// Config to a concrete run: run id, run directory and time anchor. The
// resolved form is written to the run directory as config.resolved.yaml and
// is the manifest that reset, status and resumed runs read back.
package config

import (
	"time"

	"demogen/internal/scorecard"
)

// Idempotency modes.
const (
	ModeExternalState = "external_state"
	ModeTag           = "tag"
)

// Realism levels for generated activity descriptions.
const (
	RealismNone  = "none"
	RealismLight = "light"
	RealismHeavy = "heavy"
)

// Environments accepted by Resolve.
var Environments = []string{"sandbox", "staging", "prod-demo"}

// Config is the full demogen configuration document.
type Config struct {
	Run        RunConfig        `yaml:"run" json:"run"`
	Salesforce SalesforceConfig `yaml:"salesforce" json:"salesforce"`
	PeopleAI   PeopleAIConfig   `yaml:"peopleai" json:"peopleai"`
	Activity   ActivityConfig   `yaml:"activity" json:"activity"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Scorecards ScorecardsConfig `yaml:"scorecards" json:"scorecards"`
}

// RunConfig controls identity, determinism and idempotency of a run.
type RunConfig struct {
	Name                 string        `yaml:"name" json:"name"`
	Seed                 int64         `yaml:"seed" json:"seed"`
	IdempotencyMode      string        `yaml:"idempotency_mode" json:"idempotency_mode"`
	RunTagField          string        `yaml:"run_tag_field" json:"run_tag_field"`
	DryRun               bool          `yaml:"dry_run" json:"dry_run"`
	MaxRetries           int           `yaml:"max_retries" json:"max_retries"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" json:"retry_initial_interval"`
}

// DateRange is an inclusive YYYY-MM-DD range.
type DateRange struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// QueryConfig selects candidate opportunities.
type QueryConfig struct {
	OpportunityType       string    `yaml:"opportunity_type" json:"opportunity_type"`
	StagesAllowed         []string  `yaml:"stages_allowed" json:"stages_allowed"`
	ExcludeIfOmittedField string    `yaml:"exclude_if_omitted_field" json:"exclude_if_omitted_field"`
	CloseDateRange        DateRange `yaml:"close_date_range" json:"close_date_range"`
	Limit                 int       `yaml:"limit" json:"limit"`
}

// SalesforceConfig points at the CRM instance.
type SalesforceConfig struct {
	InstanceURL       string        `yaml:"instance_url" json:"instance_url"`
	Auth              string        `yaml:"auth" json:"auth"`
	APIVersion        string        `yaml:"api_version" json:"api_version"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	Query             QueryConfig   `yaml:"query" json:"query"`
}

// PeopleAIConfig describes how the activity-capture product ingests records.
// It is informational for operators; the run does not call People.ai.
type PeopleAIConfig struct {
	IngestionMode          string `yaml:"ingestion_mode" json:"ingestion_mode"`
	VerifyMode             string `yaml:"verify_mode" json:"verify_mode"`
	ExpectedLatencyMinutes int    `yaml:"expected_latency_minutes" json:"expected_latency_minutes"`
}

// MeetingsConfig bounds generated meetings.
type MeetingsConfig struct {
	PastMin         int   `yaml:"past_min" json:"past_min"`
	PastMax         int   `yaml:"past_max" json:"past_max"`
	FutureMin       int   `yaml:"future_min" json:"future_min"`
	FutureMax       int   `yaml:"future_max" json:"future_max"`
	DurationMinutes []int `yaml:"duration_minutes" json:"duration_minutes"`
}

// EmailsConfig bounds generated emails.
type EmailsConfig struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// ActivityConfig drives the activity planner.
type ActivityConfig struct {
	PastDays         int            `yaml:"past_days" json:"past_days"`
	FutureDays       int            `yaml:"future_days" json:"future_days"`
	AnchorDate       string         `yaml:"anchor_date,omitempty" json:"anchor_date,omitempty"`
	Meetings         MeetingsConfig `yaml:"meetings" json:"meetings"`
	Emails           EmailsConfig   `yaml:"emails" json:"emails"`
	ParticipantRoles []string       `yaml:"participant_roles" json:"participant_roles"`
	RealismLevel     string         `yaml:"realism_level" json:"realism_level"`
}

// LLMConfig configures the optional content generator.
type LLMConfig struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Enabled     bool    `yaml:"enabled" json:"enabled"`
}

// ScorecardsConfig drives scorecard generation.
type ScorecardsConfig struct {
	Templates       []string `yaml:"templates" json:"templates"`
	CoverageTarget  float64  `yaml:"coverage_target" json:"coverage_target"`
	ConfidenceFloor float64  `yaml:"confidence_floor" json:"confidence_floor"`
	Mode            string   `yaml:"mode" json:"mode"`
}

// Default returns a Config populated with the documented defaults.
func Default() Config {
	return Config{
		Run: RunConfig{
			Name:                 "se-demo-pack",
			Seed:                 42,
			IdempotencyMode:      ModeExternalState,
			RunTagField:          "Demo_Run_Id__c",
			MaxRetries:           2,
			RetryInitialInterval: 500 * time.Millisecond,
		},
		Salesforce: SalesforceConfig{
			Auth:       "oauth",
			APIVersion: "v59.0",
			Timeout:    30 * time.Second,
			Query: QueryConfig{
				OpportunityType:       "new_business",
				StagesAllowed:         []string{"Discovery", "Evaluation", "Negotiation"},
				ExcludeIfOmittedField: "Omitted_from_Demo__c",
				Limit:                 100,
			},
		},
		PeopleAI: PeopleAIConfig{
			IngestionMode:          "crm_activity",
			VerifyMode:             "manual",
			ExpectedLatencyMinutes: 60,
		},
		Activity: ActivityConfig{
			PastDays:   45,
			FutureDays: 21,
			Meetings: MeetingsConfig{
				PastMin:         3,
				PastMax:         8,
				FutureMin:       1,
				FutureMax:       3,
				DurationMinutes: []int{25, 30, 45, 60},
			},
			Emails:           EmailsConfig{Min: 5, Max: 20},
			ParticipantRoles: []string{"Champion", "Economic Buyer", "Technical Buyer", "Influencer"},
			RealismLevel:     RealismLight,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4.1-mini",
			Temperature: 0.4,
			MaxTokens:   500,
			Enabled:     true,
		},
		Scorecards: ScorecardsConfig{
			Templates:       []string{"MEDDICC"},
			CoverageTarget:  0.8,
			ConfidenceFloor: 0.55,
			Mode:            scorecard.ModeHybrid,
		},
	}
}

// UsesLedger reports whether runs with this config keep a local ledger.
func (c *Config) UsesLedger() bool {
	return c.Run.IdempotencyMode == ModeExternalState && !c.Run.DryRun
}
