// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and MCP tool text.
// Keep raw codes for JSON fields, log lines, and equality comparisons.
package display

import "strings"

// --- Run Statistics ---

var stats = map[string]string{
	"opps_selected":             "Opportunities Selected",
	"opps_skipped":              "Opportunities Skipped",
	"meetings_created":          "Meetings Created",
	"emails_created":            "Emails Created",
	"activities_skipped":        "Activities Skipped",
	"scorecards_created":        "Scorecards Created",
	"scorecard_answers_written": "Scorecard Answers Written",
	"failures":                  "Failures",
	"coverage":                  "Best Scorecard Coverage",
}

// StatOrder is the order stats are listed in.
var StatOrder = []string{
	"opps_selected",
	"opps_skipped",
	"meetings_created",
	"emails_created",
	"activities_skipped",
	"scorecards_created",
	"scorecard_answers_written",
	"failures",
	"coverage",
}

// Stat returns the human-readable name for a stat key.
// Unknown keys are returned as-is.
func Stat(key string) string {
	if name, ok := stats[key]; ok {
		return name
	}
	return key
}

// --- Error Stages ---

var stages = map[string]string{
	"pipeline":               "Pipeline",
	"opportunity_processing": "Opportunity Processing",
	"client_setup":           "CRM Client Setup",
	"meeting_create":         "Meeting Create",
	"email_create":           "Email Create",
	"scorecard_upsert":       "Scorecard Upsert",
	"ledger_write":           "Ledger Write",
	"cleanup":                "Cleanup",
}

// Stage returns the human-readable name for an error stage.
// "meeting_create" -> "Meeting Create".
func Stage(code string) string {
	if name, ok := stages[code]; ok {
		return name
	}
	return code
}

// StageWithCode returns "Meeting Create (meeting_create)" format.
func StageWithCode(code string) string {
	if name, ok := stages[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Modes ---

var modes = map[string]string{
	"external_state": "Local Ledger",
	"tag":            "CRM Run Tag",
	"heuristic":      "Heuristic",
	"llm":            "LLM",
	"hybrid":         "Hybrid (heuristic + LLM)",
}

// Mode returns the human-readable name for an idempotency or scorecard mode.
func Mode(code string) string {
	if name, ok := modes[code]; ok {
		return name
	}
	return code
}

// --- Run Status ---

// Status capitalizes a run status: "completed" -> "Completed".
func Status(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// --- Objects ---

var objects = map[string]string{
	"Event": "Meetings (Event)",
	"Task":  "Emails (Task)",
}

// Object names the kind of activity stored in a CRM object.
func Object(name string) string {
	if label, ok := objects[name]; ok {
		return label
	}
	return name
}

// Participants joins participant roles: ["Champion", "Influencer"] ->
// "Champion, Influencer".
func Participants(roles []string) string {
	return strings.Join(roles, ", ")
}
