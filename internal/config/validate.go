package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"demogen/internal/scorecard"
)

// ValidationError lists every problem found in one Validate pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Validate checks the config for values that would make generation or
// application impossible. All problems are reported together.
func (c *Config) Validate() error {
	var p []string
	add := func(format string, args ...any) {
		p = append(p, fmt.Sprintf(format, args...))
	}

	switch c.Run.IdempotencyMode {
	case ModeExternalState:
	case ModeTag:
		if strings.TrimSpace(c.Run.RunTagField) == "" {
			add("run.run_tag_field is required when run.idempotency_mode is %q", ModeTag)
		}
	default:
		add("run.idempotency_mode must be %q or %q, got %q", ModeTag, ModeExternalState, c.Run.IdempotencyMode)
	}
	if c.Run.MaxRetries < 0 {
		add("run.max_retries must be >= 0")
	}
	if c.Run.RetryInitialInterval < 0 {
		add("run.retry_initial_interval must be >= 0")
	}

	if !strings.HasPrefix(c.Salesforce.InstanceURL, "https://") {
		add("salesforce.instance_url must start with https://")
	}
	if c.Salesforce.Auth != "oauth" && c.Salesforce.Auth != "jwt" {
		add("salesforce.auth must be oauth or jwt, got %q", c.Salesforce.Auth)
	}
	if c.Salesforce.RequestsPerSecond < 0 {
		add("salesforce.requests_per_second must be >= 0")
	}
	if c.Salesforce.Query.Limit <= 0 {
		add("salesforce.query.limit must be positive")
	}
	if r := c.Salesforce.Query.CloseDateRange; r.Start != "" || r.End != "" {
		if _, err := time.Parse(time.DateOnly, r.Start); err != nil {
			add("salesforce.query.close_date_range.start must be YYYY-MM-DD")
		}
		if _, err := time.Parse(time.DateOnly, r.End); err != nil {
			add("salesforce.query.close_date_range.end must be YYYY-MM-DD")
		}
	}

	a := c.Activity
	if a.PastDays <= 0 {
		add("activity.past_days must be positive")
	}
	if a.FutureDays <= 0 {
		add("activity.future_days must be positive")
	}
	if a.AnchorDate != "" {
		if _, err := time.Parse(time.DateOnly, a.AnchorDate); err != nil {
			add("activity.anchor_date must be YYYY-MM-DD")
		}
	}
	checkRange(add, "activity.meetings.past", a.Meetings.PastMin, a.Meetings.PastMax)
	checkRange(add, "activity.meetings.future", a.Meetings.FutureMin, a.Meetings.FutureMax)
	checkRange(add, "activity.emails", a.Emails.Min, a.Emails.Max)
	if len(a.Meetings.DurationMinutes) == 0 {
		add("activity.meetings.duration_minutes must not be empty")
	}
	for _, d := range a.Meetings.DurationMinutes {
		if d <= 0 {
			add("activity.meetings.duration_minutes entries must be positive, got %d", d)
		}
	}
	if len(a.ParticipantRoles) == 0 {
		add("activity.participant_roles must not be empty")
	}
	if !slices.Contains([]string{RealismNone, RealismLight, RealismHeavy}, a.RealismLevel) {
		add("activity.realism_level must be none, light or heavy, got %q", a.RealismLevel)
	}

	if c.LLM.Provider != "openai" && c.LLM.Provider != "azure_openai" {
		add("llm.provider must be openai or azure_openai, got %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		add("llm.max_tokens must be positive")
	}

	s := c.Scorecards
	if len(s.Templates) == 0 {
		add("scorecards.templates must not be empty")
	}
	for _, name := range s.Templates {
		if _, err := scorecard.Lookup(name); err != nil {
			add("scorecards.templates: %v", err)
		}
	}
	if s.CoverageTarget < 0 || s.CoverageTarget > 1 {
		add("scorecards.coverage_target must be between 0 and 1")
	}
	if s.ConfidenceFloor < 0 || s.ConfidenceFloor > 1 {
		add("scorecards.confidence_floor must be between 0 and 1")
	}
	if !slices.Contains([]string{scorecard.ModeHeuristic, scorecard.ModeLLM, scorecard.ModeHybrid}, s.Mode) {
		add("scorecards.mode must be heuristic, llm or hybrid, got %q", s.Mode)
	}

	if len(p) > 0 {
		return &ValidationError{Problems: p}
	}
	return nil
}

func checkRange(add func(string, ...any), name string, lo, hi int) {
	if lo < 0 {
		add("%s min must be >= 0, got %d", name, lo)
	}
	if hi < lo {
		add("%s max (%d) must be >= min (%d)", name, hi, lo)
	}
}
