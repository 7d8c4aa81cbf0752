// Package planner turns (seed, opportunity) into a reproducible plan of
// meetings and emails.
//
// Plans are pure values: the same seed, opportunity id, activity settings
// and anchor always produce the same plan, and therefore the same
// signatures.
package planner

import (
	"time"

	"demogen/internal/config"
	"demogen/internal/seeded"
)

// When is the temporal bucket of a planned activity.
type When string

const (
	Past   When = "past"
	Future When = "future"
)

const (
	pastEmailPercent = 85

	firstBusinessHour = 9
	lastBusinessHour  = 17

	maxMeetingParticipants = 3
	maxEmailParticipants   = 2
)

// Meeting is a planned calendar event.
type Meeting struct {
	Subject         string    `json:"subject"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	When            When      `json:"when"`
	Participants    []string  `json:"participants"`
}

// Timestamp is the meeting start in RFC 3339 UTC.
func (m Meeting) Timestamp() string {
	return m.Start.UTC().Format(time.RFC3339)
}

// Signature is the meeting's deduplication key.
func (m Meeting) Signature() string {
	return Signature(KindMeeting, m.Timestamp(), m.Subject)
}

// Email is a planned email activity.
type Email struct {
	Subject      string    `json:"subject"`
	Date         time.Time `json:"date"`
	When         When      `json:"when"`
	Participants []string  `json:"participants"`
}

// ActivityDate is the email date as YYYY-MM-DD.
func (e Email) ActivityDate() string {
	return e.Date.UTC().Format(time.DateOnly)
}

// Signature is the email's deduplication key.
func (e Email) Signature() string {
	return Signature(KindEmail, e.ActivityDate(), e.Subject)
}

// ActivityPlan is everything planned for one opportunity. Meetings are
// ordered past then future, emails likewise.
type ActivityPlan struct {
	OpportunityID string    `json:"opportunity_id"`
	Meetings      []Meeting `json:"meetings"`
	Emails        []Email   `json:"emails"`
}

// Summary counts a plan's activities by bucket.
type Summary struct {
	OpportunityID  string `json:"opportunity_id"`
	TotalMeetings  int    `json:"total_meetings"`
	PastMeetings   int    `json:"past_meetings"`
	FutureMeetings int    `json:"future_meetings"`
	TotalEmails    int    `json:"total_emails"`
	PastEmails     int    `json:"past_emails"`
	FutureEmails   int    `json:"future_emails"`
}

// Summary returns the plan's counts.
func (p ActivityPlan) Summary() Summary {
	s := Summary{
		OpportunityID: p.OpportunityID,
		TotalMeetings: len(p.Meetings),
		TotalEmails:   len(p.Emails),
	}
	for _, m := range p.Meetings {
		if m.When == Past {
			s.PastMeetings++
		} else {
			s.FutureMeetings++
		}
	}
	for _, e := range p.Emails {
		if e.When == Past {
			s.PastEmails++
		} else {
			s.FutureEmails++
		}
	}
	return s
}

// Planner builds activity plans. It holds no mutable state and is safe for
// concurrent use.
type Planner struct {
	cfg    config.ActivityConfig
	seed   int64
	anchor time.Time
}

// New returns a Planner. Offsets are applied to anchor, which should be a
// fixed instant for the lifetime of a run.
func New(cfg config.ActivityConfig, seed int64, anchor time.Time) *Planner {
	return &Planner{cfg: cfg, seed: seed, anchor: anchor.UTC()}
}

// Anchor returns the instant plan offsets are relative to.
func (p *Planner) Anchor() time.Time { return p.anchor }

// Plan returns the activity plan for one opportunity.
func (p *Planner) Plan(opportunityID string) ActivityPlan {
	s := seeded.New(p.seed, opportunityID)

	numPast := s.IntRange(p.cfg.Meetings.PastMin, p.cfg.Meetings.PastMax)
	numFuture := s.IntRange(p.cfg.Meetings.FutureMin, p.cfg.Meetings.FutureMax)
	numEmails := s.IntRange(p.cfg.Emails.Min, p.cfg.Emails.Max)

	plan := ActivityPlan{
		OpportunityID: opportunityID,
		Meetings:      make([]Meeting, 0, numPast+numFuture),
		Emails:        make([]Email, 0, numEmails),
	}
	for i := range numPast {
		plan.Meetings = append(plan.Meetings, p.meeting(s, Past, i, numPast))
	}
	for i := range numFuture {
		plan.Meetings = append(plan.Meetings, p.meeting(s, Future, i, numFuture))
	}

	numPastEmails := numEmails * pastEmailPercent / 100
	for range numPastEmails {
		plan.Emails = append(plan.Emails, p.email(s, Past))
	}
	for range numEmails - numPastEmails {
		plan.Emails = append(plan.Emails, p.email(s, Future))
	}
	return plan
}

// meeting places meeting i of total evenly across its window.
func (p *Planner) meeting(s *seeded.Stream, when When, i, total int) Meeting {
	subject := seeded.Choice(s, meetingSubjects)
	duration := seeded.Choice(s, p.cfg.Meetings.DurationMinutes)

	window := p.cfg.FutureDays
	if when == Past {
		window = p.cfg.PastDays
	}
	days := int(float64(window) / float64(total) * float64(i+1))
	if when == Past {
		days = -days
	}
	hours := s.IntRange(firstBusinessHour, lastBusinessHour)
	start := p.anchor.AddDate(0, 0, days).Add(time.Duration(hours) * time.Hour)

	return Meeting{
		Subject:         subject,
		Start:           start,
		DurationMinutes: duration,
		When:            when,
		Participants:    p.participants(s, maxMeetingParticipants),
	}
}

// email draws its day uniformly within its window.
func (p *Planner) email(s *seeded.Stream, when When) Email {
	subject := seeded.Choice(s, emailSubjects)

	var days int
	if when == Past {
		days = -s.IntRange(1, p.cfg.PastDays)
	} else {
		days = s.IntRange(1, p.cfg.FutureDays)
	}

	return Email{
		Subject:      subject,
		Date:         p.anchor.AddDate(0, 0, days),
		When:         when,
		Participants: p.participants(s, maxEmailParticipants),
	}
}

func (p *Planner) participants(s *seeded.Stream, limit int) []string {
	n := s.IntRange(1, min(limit, len(p.cfg.ParticipantRoles)))
	return seeded.Sample(s, p.cfg.ParticipantRoles, n)
}
