package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Salesforce {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := New(server.URL, "test-token", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "tok"); err == nil {
		t.Error("expected error for empty instance URL")
	}
	if _, err := New("https://x.my.salesforce.com", ""); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := New("https://x.my.salesforce.com", "tok", WithAPIVersion("59.0")); err == nil {
		t.Error("expected error for malformed api version")
	}
	if _, err := New("https://x.my.salesforce.com", "tok", WithRateLimit(-1)); err == nil {
		t.Error("expected error for negative rate")
	}
}

func TestSalesforce_ListCandidates(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/data/v59.0/query" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 2,
			"done":      true,
			"records": []map[string]any{
				{"attributes": map[string]string{"type": "Opportunity"}, "Id": "006A", "Name": "Acme", "StageName": "Discovery", "Amount": 12000.5, "CloseDate": "2025-04-01", "AccountId": "001A", "OwnerId": "005A"},
				{"Id": "006B", "Name": "Globex", "StageName": "Evaluation", "Amount": nil, "CloseDate": "2025-05-01", "AccountId": "001B", "OwnerId": "005B"},
			},
		})
	})

	opps, err := c.ListCandidates(context.Background(), Query{StagesAllowed: []string{"Discovery"}, Limit: 2})
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	want := []Opportunity{
		{ID: "006A", Name: "Acme", StageName: "Discovery", Amount: 12000.5, CloseDate: "2025-04-01", AccountID: "001A", OwnerID: "005A"},
		{ID: "006B", Name: "Globex", StageName: "Evaluation", CloseDate: "2025-05-01", AccountID: "001B", OwnerID: "005B"},
	}
	if diff := cmp.Diff(want, opps); diff != "" {
		t.Errorf("opportunities (-want +got):\n%s", diff)
	}
	if !strings.Contains(gotQuery, "StageName IN ('Discovery')") || !strings.HasSuffix(gotQuery, "LIMIT 2") {
		t.Errorf("unexpected SOQL: %s", gotQuery)
	}
}

func TestSalesforce_ListCandidatesPaginates(t *testing.T) {
	var pages int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/data/v59.0/query":
			atomic.AddInt32(&pages, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"totalSize":      3,
				"done":           false,
				"nextRecordsUrl": "/services/data/v59.0/query/01gOPP-2000",
				"records":        []map[string]any{{"Id": "006A"}, {"Id": "006B"}},
			})
		case "/services/data/v59.0/query/01gOPP-2000":
			atomic.AddInt32(&pages, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"totalSize": 3,
				"done":      true,
				"records":   []map[string]any{{"Id": "006C"}},
			})
		default:
			http.NotFound(w, r)
		}
	})

	opps, err := c.ListCandidates(context.Background(), Query{Limit: 3000})
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	var ids []string
	for _, o := range opps {
		ids = append(ids, o.ID)
	}
	if diff := cmp.Diff([]string{"006A", "006B", "006C"}, ids); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if n := atomic.LoadInt32(&pages); n != 2 {
		t.Errorf("fetched %d pages, want 2", n)
	}
}

func TestSalesforce_CreateMeeting(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/data/v59.0/sobjects/Event" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createResult{ID: "00U000000000001", Success: true})
	})

	id, err := c.CreateMeeting(context.Background(), Meeting{
		Subject:         "Discovery Call",
		Start:           time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		RelatedID:       "006A",
		OwnerID:         "005A",
		Tag:             &Tag{Field: "Demo_Run_Id__c", Value: "run-1234abcd"},
	})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if id != "00U000000000001" {
		t.Errorf("id = %q", id)
	}
	want := map[string]any{
		"Subject":        "Discovery Call",
		"StartDateTime":  "2025-03-01T10:00:00Z",
		"EndDateTime":    "2025-03-01T10:45:00Z",
		"WhatId":         "006A",
		"OwnerId":        "005A",
		"IsAllDayEvent":  false,
		"Demo_Run_Id__c": "run-1234abcd",
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("event body (-want +got):\n%s", diff)
	}
}

func TestSalesforce_CreateEmail(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/data/v59.0/sobjects/Task" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createResult{ID: "00T1", Success: true})
	})

	_, err := c.CreateEmail(context.Background(), Email{
		Subject:     "Pricing information",
		Date:        time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		RelatedID:   "006A",
		Description: "Hi team,",
	})
	if err != nil {
		t.Fatalf("CreateEmail: %v", err)
	}
	want := map[string]any{
		"Subject":      "Pricing information",
		"ActivityDate": "2025-03-02",
		"WhatId":       "006A",
		"Status":       "Completed",
		"TaskSubtype":  "Email",
		"Description":  "Hi team,",
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("task body (-want +got):\n%s", diff)
	}
}

func TestSalesforce_APIErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		check     func(error) bool
	}{
		{"invalid field", http.StatusBadRequest, `[{"message":"No such column","errorCode":"INVALID_FIELD"}]`, false,
			func(err error) bool { return HasErrorCode(err, "INVALID_FIELD") }},
		{"session expired", http.StatusUnauthorized, `[{"message":"Session expired","errorCode":"INVALID_SESSION_ID"}]`, false, IsUnauthorized},
		{"request limit", http.StatusForbidden, `[{"message":"TotalRequests Limit exceeded.","errorCode":"REQUEST_LIMIT_EXCEEDED"}]`, true, IsRateLimited},
		{"too many", http.StatusTooManyRequests, ``, true, IsRateLimited},
		{"unavailable", http.StatusServiceUnavailable, `maintenance`, true,
			func(err error) bool { return HasStatusCode(err, http.StatusServiceUnavailable) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.CreateEmail(context.Background(), Email{Subject: "x", RelatedID: "006A"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("predicate failed for %v", err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v (%v)", IsRetryable(err), tt.retryable, err)
			}
		})
	}
}

func TestSalesforce_CreateRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(createResult{Success: false, Errors: []sfError{{Message: "duplicate"}}})
	})
	_, err := c.CreateEmail(context.Background(), Email{Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("want rejection error, got %v", err)
	}
}

func TestSalesforce_DeleteRecordsByTag(t *testing.T) {
	var deleted []string
	var queries int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/services/data/v59.0/query":
			atomic.AddInt32(&queries, 1)
			if q := r.URL.Query().Get("q"); q != "SELECT Id FROM Event WHERE Demo_Run_Id__c = 'run-1'" {
				t.Errorf("unexpected SOQL %q", q)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"done":           false,
				"nextRecordsUrl": "/services/data/v59.0/query/01gNEXT-2000",
				"records":        []map[string]string{{"Id": "00U1"}, {"Id": "00U2"}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/services/data/v59.0/query/01gNEXT-2000":
			atomic.AddInt32(&queries, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"done":    true,
				"records": []map[string]string{{"Id": "00U3"}},
			})
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/services/data/v59.0/sobjects/Event/"):
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/services/data/v59.0/sobjects/Event/"))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c, err := New(server.URL, "tok", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	n, err := c.DeleteRecordsByTag(context.Background(), ObjectEvent, "Demo_Run_Id__c", "run-1")
	if err != nil {
		t.Fatalf("DeleteRecordsByTag: %v", err)
	}
	if n != 3 || queries != 2 {
		t.Errorf("deleted %d with %d queries, want 3 with 2", n, queries)
	}
	if diff := cmp.Diff([]string{"00U1", "00U2", "00U3"}, deleted); diff != "" {
		t.Errorf("deleted ids (-want +got):\n%s", diff)
	}
}

func TestSalesforce_DeleteRejectsBadNames(t *testing.T) {
	c, _ := New("https://x.my.salesforce.com", "tok")
	if err := c.DeleteRecord(context.Background(), "Event; DROP", "1"); err == nil {
		t.Error("expected error for invalid object name")
	}
	if _, err := c.DeleteRecordsByTag(context.Background(), ObjectTask, "Tag__c OR Id != null", "r"); err == nil {
		t.Error("expected error for invalid field name")
	}
}

func TestSalesforce_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()
	c, err := New(server.URL, "tok", WithHTTPClient(server.Client()), WithRateLimit(1))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := c.DeleteRecord(ctx, ObjectEvent, "00U1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	// The second token is a second away, beyond the deadline.
	if err := c.DeleteRecord(ctx, ObjectEvent, "00U2"); err == nil {
		t.Fatal("expected rate limiter to refuse within the deadline")
	} else if IsRetryable(err) {
		t.Errorf("deadline errors must not be retryable: %v", err)
	}
}

func TestOpportunitySOQL(t *testing.T) {
	got, err := opportunitySOQL(Query{
		OpportunityType:       "new_business",
		StagesAllowed:         []string{"Discovery", "Buyer's Review"},
		ExcludeIfOmittedField: "Omitted_from_Demo__c",
		CloseDateStart:        "2025-01-01",
		CloseDateEnd:          "2025-12-31",
		Limit:                 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT Id, Name, StageName, Amount, CloseDate, AccountId, OwnerId FROM Opportunity" +
		" WHERE Type = 'new_business' AND StageName IN ('Discovery', 'Buyer\\'s Review')" +
		" AND Omitted_from_Demo__c = false AND CloseDate >= 2025-01-01 AND CloseDate <= 2025-12-31" +
		" ORDER BY CloseDate ASC LIMIT 100"
	if got != want {
		t.Errorf("SOQL mismatch:\n got %s\nwant %s", got, want)
	}

	got, _ = opportunitySOQL(Query{})
	if got != "SELECT Id, Name, StageName, Amount, CloseDate, AccountId, OwnerId FROM Opportunity ORDER BY CloseDate ASC" {
		t.Errorf("unfiltered SOQL: %s", got)
	}

	if _, err := opportunitySOQL(Query{ExcludeIfOmittedField: "x = true OR y"}); err == nil {
		t.Error("expected error for invalid exclusion field")
	}
	if _, err := opportunitySOQL(Query{CloseDateStart: "2025-1-1"}); err == nil {
		t.Error("expected error for malformed close date")
	}
}

func TestIsRetryable_NetworkAndWrapped(t *testing.T) {
	var netErr net.Error = &net.DNSError{Err: "no such host", Name: "x", IsTimeout: true}
	if !IsRetryable(fmt.Errorf("create event: do request: %w", netErr)) {
		t.Error("wrapped network error should be retryable")
	}
	if IsRetryable(errors.New("boom")) || IsRetryable(nil) {
		t.Error("plain errors are not retryable")
	}
	if IsRetryable(fmt.Errorf("x: %w", context.Canceled)) {
		t.Error("cancellation is not retryable")
	}
}
