// Package ledger records what a run has already produced so that reruns
// with the same seed create nothing twice.
//
// Every write is insert-if-absent: recording the same key again is a no-op,
// not an error. Rows are never updated or deleted.
package ledger

import "time"

// Activity types stored in the activities table.
const (
	TypeMeeting = "meeting"
	TypeEmail   = "email"
)

// Activity is one created CRM activity.
type Activity struct {
	RunID      string
	OppID      string
	Signature  string
	ActivityID string
	Type       string
	CreatedAt  time.Time
}

// Scorecard is one created scorecard.
type Scorecard struct {
	RunID       string
	OppID       string
	ScorecardID string
	Template    string
	CreatedAt   time.Time
}

// Answer is one recorded scorecard answer.
type Answer struct {
	RunID       string
	ScorecardID string
	QuestionID  string
	Confidence  float64
	CreatedAt   time.Time
}

// Counts is the number of rows per table for one run.
type Counts struct {
	Opportunities int `json:"opportunities"`
	Activities    int `json:"activities"`
	Scorecards    int `json:"scorecards"`
	Answers       int `json:"scorecard_answers"`
}

// Ledger is the idempotency store. Implementations must be safe for
// concurrent use by the workers of one run.
type Ledger interface {
	HasOpportunity(runID, oppID string) (bool, error)
	RecordOpportunity(runID, oppID string, selectedAt time.Time) error

	HasActivity(runID, oppID, signature string) (bool, error)
	RecordActivity(a Activity) error

	HasScorecard(runID, oppID, template string) (bool, error)
	RecordScorecard(s Scorecard) error

	HasScorecardAnswer(runID, scorecardID, questionID string) (bool, error)
	RecordScorecardAnswer(a Answer) error

	// RunActivities lists a run's activities in insertion order.
	RunActivities(runID string) ([]Activity, error)
	RunScorecards(runID string) ([]Scorecard, error)
	Counts(runID string) (Counts, error)

	Close() error
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
