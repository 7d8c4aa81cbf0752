// Package runlog records what a run did: an append-only event log, an
// append-only error log, run status and the final statistics summary.
//
// All files live in the run directory:
//
//	events.jsonl   one JSON object per event
//	errors.jsonl   one JSON object per recorded error
//	run.json       run id, timestamps and status
//	summary.json   final Stats
package runlog

import (
	"time"
)

// File names inside a run directory.
const (
	EventsFile  = "events.jsonl"
	ErrorsFile  = "errors.jsonl"
	StatusFile  = "run.json"
	SummaryFile = "summary.json"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Stat names a counter in Stats.
type Stat string

const (
	OppsSelected            Stat = "opps_selected"
	OppsSkipped             Stat = "opps_skipped"
	MeetingsCreated         Stat = "meetings_created"
	EmailsCreated           Stat = "emails_created"
	ActivitiesSkipped       Stat = "activities_skipped"
	ScorecardsCreated       Stat = "scorecards_created"
	ScorecardAnswersWritten Stat = "scorecard_answers_written"
	Failures                Stat = "failures"
)

// Stats are the run-wide counters.
type Stats struct {
	RunID                   string     `json:"run_id"`
	StartedAt               time.Time  `json:"started_at"`
	FinishedAt              *time.Time `json:"finished_at"`
	OppsSelected            int        `json:"opps_selected"`
	OppsSkipped             int        `json:"opps_skipped"`
	MeetingsCreated         int        `json:"meetings_created"`
	EmailsCreated           int        `json:"emails_created"`
	ActivitiesSkipped       int        `json:"activities_skipped"`
	ScorecardsCreated       int        `json:"scorecards_created"`
	ScorecardAnswersWritten int        `json:"scorecard_answers_written"`
	Failures                int        `json:"failures"`
	Coverage                float64    `json:"coverage"`
}

func (s *Stats) counter(name Stat) *int {
	switch name {
	case OppsSelected:
		return &s.OppsSelected
	case OppsSkipped:
		return &s.OppsSkipped
	case MeetingsCreated:
		return &s.MeetingsCreated
	case EmailsCreated:
		return &s.EmailsCreated
	case ActivitiesSkipped:
		return &s.ActivitiesSkipped
	case ScorecardsCreated:
		return &s.ScorecardsCreated
	case ScorecardAnswersWritten:
		return &s.ScorecardAnswersWritten
	case Failures:
		return &s.Failures
	}
	return nil
}

// Fields are extra event attributes.
type Fields map[string]any

// ErrorEntry is one recorded error.
type ErrorEntry struct {
	Stage         string
	Err           error
	OpportunityID string
	Retryable     bool
	Fields        Fields
}

// Status is the content of run.json.
type Status struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
}

// Sink receives a run's events, errors and counters. Implementations are
// safe for concurrent use.
type Sink interface {
	Event(action string, f Fields)
	// Error records e and counts it as a failure.
	Error(e ErrorEntry)
	Add(stat Stat, n int)
	// MaxCoverage raises the run coverage to v if v is higher.
	MaxCoverage(v float64)
	SetSelected(n int)
	Stats() Stats
	// Finalize stamps the finish time and status and returns the final
	// counters.
	Finalize(status string) (Stats, error)
}
