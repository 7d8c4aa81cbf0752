package ledger

import (
	"sync"
	"time"
)

// MemLedger is an in-memory Ledger with the same semantics as SqlLedger.
type MemLedger struct {
	mu            sync.Mutex
	opportunities map[[2]string]time.Time
	activities    map[[3]string]Activity
	activityOrder [][3]string
	scorecards    map[[3]string]Scorecard
	scOrder       [][3]string
	answers       map[[3]string]Answer
}

// NewMemLedger returns an empty MemLedger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		opportunities: make(map[[2]string]time.Time),
		activities:    make(map[[3]string]Activity),
		scorecards:    make(map[[3]string]Scorecard),
		answers:       make(map[[3]string]Answer),
	}
}

func (m *MemLedger) HasOpportunity(runID, oppID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.opportunities[[2]string{runID, oppID}]
	return ok, nil
}

func (m *MemLedger) RecordOpportunity(runID, oppID string, selectedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{runID, oppID}
	if _, ok := m.opportunities[k]; !ok {
		m.opportunities[k] = selectedAt
	}
	return nil
}

func (m *MemLedger) HasActivity(runID, oppID, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.activities[[3]string{runID, oppID, signature}]
	return ok, nil
}

func (m *MemLedger) RecordActivity(a Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [3]string{a.RunID, a.OppID, a.Signature}
	if _, ok := m.activities[k]; !ok {
		m.activities[k] = a
		m.activityOrder = append(m.activityOrder, k)
	}
	return nil
}

func (m *MemLedger) HasScorecard(runID, oppID, template string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.scorecards[[3]string{runID, oppID, template}]
	return ok, nil
}

func (m *MemLedger) RecordScorecard(s Scorecard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [3]string{s.RunID, s.OppID, s.Template}
	if _, ok := m.scorecards[k]; !ok {
		m.scorecards[k] = s
		m.scOrder = append(m.scOrder, k)
	}
	return nil
}

func (m *MemLedger) HasScorecardAnswer(runID, scorecardID, questionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.answers[[3]string{runID, scorecardID, questionID}]
	return ok, nil
}

func (m *MemLedger) RecordScorecardAnswer(a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [3]string{a.RunID, a.ScorecardID, a.QuestionID}
	if _, ok := m.answers[k]; !ok {
		m.answers[k] = a
	}
	return nil
}

func (m *MemLedger) RunActivities(runID string) ([]Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []Activity
	for _, k := range m.activityOrder {
		if k[0] == runID {
			list = append(list, m.activities[k])
		}
	}
	return list, nil
}

func (m *MemLedger) RunScorecards(runID string) ([]Scorecard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []Scorecard
	for _, k := range m.scOrder {
		if k[0] == runID {
			list = append(list, m.scorecards[k])
		}
	}
	return list, nil
}

func (m *MemLedger) Counts(runID string) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c Counts
	for k := range m.opportunities {
		if k[0] == runID {
			c.Opportunities++
		}
	}
	for k := range m.activities {
		if k[0] == runID {
			c.Activities++
		}
	}
	for k := range m.scorecards {
		if k[0] == runID {
			c.Scorecards++
		}
	}
	for k := range m.answers {
		if k[0] == runID {
			c.Answers++
		}
	}
	return c, nil
}

// Close is a no-op.
func (m *MemLedger) Close() error { return nil }
