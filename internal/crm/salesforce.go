package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIVersion is the REST API version used when none is configured.
const DefaultAPIVersion = "v59.0"

// Salesforce is a Client for the Salesforce REST API. It is safe for
// concurrent use, but the orchestrator still gives each worker its own.
type Salesforce struct {
	instanceURL string
	apiVersion  string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures the Salesforce client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	apiVersion string
	rps        float64
}

// New creates a Salesforce client for instanceURL. accessToken is sent as a
// bearer token on every request.
func New(instanceURL, accessToken string, opts ...Option) (*Salesforce, error) {
	if instanceURL == "" {
		return nil, fmt.Errorf("crm: instance URL is required")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("crm: access token is required")
	}

	cfg := &clientConfig{apiVersion: DefaultAPIVersion}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), 1)
	}

	return &Salesforce{
		instanceURL: strings.TrimSuffix(instanceURL, "/"),
		apiVersion:  cfg.apiVersion,
		token:       accessToken,
		httpClient:  httpClient,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithAPIVersion selects the REST API version, e.g. "v59.0".
func WithAPIVersion(v string) Option {
	return func(cfg *clientConfig) error {
		if !strings.HasPrefix(v, "v") {
			return fmt.Errorf("crm: api version %q must look like v59.0", v)
		}
		cfg.apiVersion = v
		return nil
	}
}

// WithRateLimit caps outgoing requests per second. Zero means unlimited.
func WithRateLimit(rps float64) Option {
	return func(cfg *clientConfig) error {
		if rps < 0 {
			return fmt.Errorf("crm: negative rate limit %v", rps)
		}
		cfg.rps = rps
		return nil
	}
}

// sfError is one element of a Salesforce error response body.
type sfError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

type createResult struct {
	ID      string    `json:"id"`
	Success bool      `json:"success"`
	Errors  []sfError `json:"errors"`
}

type queryResult[T any] struct {
	TotalSize      int    `json:"totalSize"`
	Done           bool   `json:"done"`
	NextRecordsURL string `json:"nextRecordsUrl"`
	Records        []T    `json:"records"`
}

func (c *Salesforce) dataURL(path string) string {
	return c.instanceURL + "/services/data/" + c.apiVersion + path
}

// doJSON executes an HTTP request and decodes the JSON response into dst.
// If the response has an error status, it returns an *APIError.
func (c *Salesforce) doJSON(ctx context.Context, method, u, operation string, body any, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", operation, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "API request", "operation", operation, "method", method, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var errs []sfError
		if json.Unmarshal(respBody, &errs) == nil && len(errs) > 0 && errs[0].Message != "" {
			return newAPIError(operation, resp.StatusCode, errs[0].ErrorCode, errs[0].Message)
		}
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, "", msg)
	}

	if dst != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// ListCandidates runs the opportunity SOQL query, following pagination.
func (c *Salesforce) ListCandidates(ctx context.Context, q Query) ([]Opportunity, error) {
	soql, err := opportunitySOQL(q)
	if err != nil {
		return nil, err
	}
	return queryAll[Opportunity](ctx, c, soql, "query opportunities")
}

// queryAll runs soql and collects every page of records.
func queryAll[T any](ctx context.Context, c *Salesforce, soql, operation string) ([]T, error) {
	var out []T
	u := c.dataURL("/query?q=" + url.QueryEscape(soql))
	for u != "" {
		var page queryResult[T]
		if err := c.doJSON(ctx, http.MethodGet, u, operation, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		u = ""
		if !page.Done && page.NextRecordsURL != "" {
			u = c.instanceURL + page.NextRecordsURL
		}
	}
	return out, nil
}

// CreateMeeting creates an Event. The end time is start plus duration.
func (c *Salesforce) CreateMeeting(ctx context.Context, m Meeting) (string, error) {
	start := m.Start.UTC()
	fields := map[string]any{
		"Subject":       m.Subject,
		"StartDateTime": start.Format(time.RFC3339),
		"EndDateTime":   start.Add(time.Duration(m.DurationMinutes) * time.Minute).Format(time.RFC3339),
		"WhatId":        m.RelatedID,
		"IsAllDayEvent": false,
	}
	setOptional(fields, m.OwnerID, m.Description, m.Tag)
	return c.create(ctx, ObjectEvent, "create event", fields)
}

// CreateEmail creates a completed Task with the Email subtype.
func (c *Salesforce) CreateEmail(ctx context.Context, e Email) (string, error) {
	fields := map[string]any{
		"Subject":      e.Subject,
		"ActivityDate": e.Date.UTC().Format(time.DateOnly),
		"WhatId":       e.RelatedID,
		"Status":       "Completed",
		"TaskSubtype":  "Email",
	}
	setOptional(fields, e.OwnerID, e.Description, e.Tag)
	return c.create(ctx, ObjectTask, "create task", fields)
}

func setOptional(fields map[string]any, ownerID, description string, tag *Tag) {
	if ownerID != "" {
		fields["OwnerId"] = ownerID
	}
	if description != "" {
		fields["Description"] = description
	}
	if tag != nil && tag.Field != "" && tag.Value != "" {
		fields[tag.Field] = tag.Value
	}
}

func (c *Salesforce) create(ctx context.Context, object, operation string, fields map[string]any) (string, error) {
	var res createResult
	if err := c.doJSON(ctx, http.MethodPost, c.dataURL("/sobjects/"+object), operation, fields, &res); err != nil {
		return "", err
	}
	if !res.Success || res.ID == "" {
		msg := "no id returned"
		if len(res.Errors) > 0 {
			msg = res.Errors[0].Message
		}
		return "", newAPIError(operation, http.StatusOK, "", msg)
	}
	return res.ID, nil
}

// DeleteRecord deletes one record by id.
func (c *Salesforce) DeleteRecord(ctx context.Context, object, id string) error {
	if !validIdentifier(object) {
		return fmt.Errorf("crm: invalid object name %q", object)
	}
	u := c.dataURL("/sobjects/" + object + "/" + url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, u, "delete "+strings.ToLower(object), nil, nil)
}

// DeleteRecordsByTag queries every record tagged with runID, following
// pagination, then deletes them one by one. A failed delete does not stop
// the rest; the count covers successful deletes and the error joins every
// failure.
func (c *Salesforce) DeleteRecordsByTag(ctx context.Context, object, field, runID string) (int, error) {
	if !validIdentifier(object) || !validIdentifier(field) {
		return 0, fmt.Errorf("crm: invalid object or field name %q.%q", object, field)
	}
	soql := fmt.Sprintf("SELECT Id FROM %s WHERE %s = '%s'", object, field, escapeSOQL(runID))

	records, err := queryAll[struct {
		ID string `json:"Id"`
	}](ctx, c, soql, "query tagged "+strings.ToLower(object))
	if err != nil {
		return 0, err
	}

	deleted := 0
	var errs []error
	for _, r := range records {
		if err := c.DeleteRecord(ctx, object, r.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

var identifierRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validIdentifier(s string) bool { return identifierRE.MatchString(s) }

// escapeSOQL escapes a value for use inside a SOQL string literal.
func escapeSOQL(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}

// opportunitySOQL renders q as a SOQL statement.
func opportunitySOQL(q Query) (string, error) {
	var where []string
	if q.OpportunityType != "" {
		where = append(where, fmt.Sprintf("Type = '%s'", escapeSOQL(q.OpportunityType)))
	}
	if len(q.StagesAllowed) > 0 {
		stages := make([]string, len(q.StagesAllowed))
		for i, s := range q.StagesAllowed {
			stages[i] = "'" + escapeSOQL(s) + "'"
		}
		where = append(where, "StageName IN ("+strings.Join(stages, ", ")+")")
	}
	if f := q.ExcludeIfOmittedField; f != "" {
		if !validIdentifier(f) {
			return "", fmt.Errorf("crm: invalid exclusion field %q", f)
		}
		where = append(where, f+" = false")
	}
	for _, d := range []struct{ op, v string }{{">=", q.CloseDateStart}, {"<=", q.CloseDateEnd}} {
		if d.v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d.v); err != nil {
			return "", fmt.Errorf("crm: close date %q: %w", d.v, err)
		}
		// SOQL date literals are unquoted.
		where = append(where, "CloseDate "+d.op+" "+d.v)
	}

	var b strings.Builder
	b.WriteString("SELECT Id, Name, StageName, Amount, CloseDate, AccountId, OwnerId FROM Opportunity")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY CloseDate ASC")
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), nil
}
