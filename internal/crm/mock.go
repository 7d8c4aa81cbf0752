package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Call describes one Mock operation, passed to Mock.FailOn.
type Call struct {
	Op        string // "list", "create" or "delete"
	Object    string
	Subject   string
	RelatedID string
	ID        string
}

// Record is a record held by Mock.
type Record struct {
	ID        string
	Object    string
	Subject   string
	RelatedID string
	Tag       *Tag
}

// Mock is an in-memory Client with deterministic opportunities. It is safe
// for concurrent use.
type Mock struct {
	// FailOn, when set, is consulted before every operation; a non-nil
	// return is the operation's error.
	FailOn func(Call) error

	mu      sync.Mutex
	opps    []Opportunity
	records map[string]Record
	order   []string
	seq     map[string]int
	creates int
	deletes int
}

// NewMock returns a Mock serving the ten standard dry-run opportunities.
func NewMock() *Mock {
	return NewMockWith(MockOpportunities(10))
}

// NewMockWith returns a Mock serving opps.
func NewMockWith(opps []Opportunity) *Mock {
	return &Mock{
		opps:    opps,
		records: make(map[string]Record),
		seq:     make(map[string]int),
	}
}

// MockOpportunities returns n deterministic opportunities.
func MockOpportunities(n int) []Opportunity {
	opps := make([]Opportunity, n)
	for i := range opps {
		opps[i] = Opportunity{
			ID:        fmt.Sprintf("006MOCK%08d", i),
			Name:      fmt.Sprintf("Demo Opportunity %d", i),
			StageName: "Discovery",
			Amount:    float64(50000 + i*10000),
			CloseDate: "2025-11-15",
			AccountID: fmt.Sprintf("001MOCK%08d", i),
			OwnerID:   "005MOCK00000001",
		}
	}
	return opps
}

var mockPrefix = map[string]string{
	ObjectEvent: "00UMOCK",
	ObjectTask:  "00TMOCK",
}

func (m *Mock) fail(c Call) error {
	if m.FailOn == nil {
		return nil
	}
	return m.FailOn(c)
}

// ListCandidates returns the configured opportunities, capped at q.Limit.
// Filters other than the limit are ignored.
func (m *Mock) ListCandidates(_ context.Context, q Query) ([]Opportunity, error) {
	if err := m.fail(Call{Op: "list", Object: "Opportunity"}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Opportunity(nil), m.opps...)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Mock) CreateMeeting(_ context.Context, mt Meeting) (string, error) {
	return m.create(ObjectEvent, mt.Subject, mt.RelatedID, mt.Tag)
}

func (m *Mock) CreateEmail(_ context.Context, e Email) (string, error) {
	return m.create(ObjectTask, e.Subject, e.RelatedID, e.Tag)
}

func (m *Mock) create(object, subject, relatedID string, tag *Tag) (string, error) {
	if err := m.fail(Call{Op: "create", Object: object, Subject: subject, RelatedID: relatedID}); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[object]++
	id := fmt.Sprintf("%s%08d", mockPrefix[object], m.seq[object])
	m.records[id] = Record{ID: id, Object: object, Subject: subject, RelatedID: relatedID, Tag: tag}
	m.order = append(m.order, id)
	m.creates++
	return id, nil
}

// DeleteRecord removes a record. Deleting an unknown or already deleted id
// fails like the real API does.
func (m *Mock) DeleteRecord(_ context.Context, object, id string) error {
	if err := m.fail(Call{Op: "delete", Object: object, ID: id}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Object != object {
		return newAPIError("delete "+object, http.StatusNotFound, codeEntityDeleted, "entity is deleted")
	}
	delete(m.records, id)
	m.deletes++
	return nil
}

// DeleteRecordsByTag deletes every tagged record of object, continuing past
// failures.
func (m *Mock) DeleteRecordsByTag(ctx context.Context, object, field, runID string) (int, error) {
	m.mu.Lock()
	var ids []string
	for _, id := range m.order {
		r, ok := m.records[id]
		if ok && r.Object == object && r.Tag != nil && r.Tag.Field == field && r.Tag.Value == runID {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	deleted := 0
	var errs []error
	for _, id := range ids {
		if err := m.DeleteRecord(ctx, object, id); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// Records returns the live records of object in creation order.
func (m *Mock) Records(object string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, id := range m.order {
		if r, ok := m.records[id]; ok && r.Object == object {
			out = append(out, r)
		}
	}
	return out
}

// Creates returns how many records were ever created.
func (m *Mock) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// Deletes returns how many records were deleted.
func (m *Mock) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}
