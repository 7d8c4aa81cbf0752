package crm

import (
	"context"
	"time"
)

// Object names used for created activities.
const (
	ObjectEvent = "Event"
	ObjectTask  = "Task"
)

// Opportunity is a candidate record read from the CRM.
type Opportunity struct {
	ID        string  `json:"Id"`
	Name      string  `json:"Name"`
	StageName string  `json:"StageName"`
	Amount    float64 `json:"Amount"`
	CloseDate string  `json:"CloseDate"`
	AccountID string  `json:"AccountId"`
	OwnerID   string  `json:"OwnerId"`
}

// Query selects candidate opportunities. Empty fields are not filtered on.
type Query struct {
	OpportunityType       string
	StagesAllowed         []string
	ExcludeIfOmittedField string
	CloseDateStart        string
	CloseDateEnd          string
	Limit                 int
}

// Tag marks a created record with the run that created it.
type Tag struct {
	Field string
	Value string
}

// Meeting is a calendar event to create.
type Meeting struct {
	Subject         string
	Start           time.Time
	DurationMinutes int
	RelatedID       string
	OwnerID         string
	Description     string
	Tag             *Tag
}

// Email is an email activity to create, stored as a completed task.
type Email struct {
	Subject     string
	Date        time.Time
	RelatedID   string
	OwnerID     string
	Description string
	Tag         *Tag
}

// Client is the CRM contract. Each call is a single-record synchronous
// operation that may fail on its own.
type Client interface {
	// ListCandidates returns opportunities ordered by close date ascending,
	// at most q.Limit of them.
	ListCandidates(ctx context.Context, q Query) ([]Opportunity, error)
	CreateMeeting(ctx context.Context, m Meeting) (string, error)
	CreateEmail(ctx context.Context, e Email) (string, error)
	DeleteRecord(ctx context.Context, object, id string) error
	// DeleteRecordsByTag deletes every object record whose field equals
	// runID and returns how many were deleted.
	DeleteRecordsByTag(ctx context.Context, object, field, runID string) (int, error)
}

// Factory builds a Client. The orchestrator calls it once per worker.
type Factory func(ctx context.Context) (Client, error)
