package format

import (
	"fmt"
	"slices"

	"demogen/internal/display"
	"demogen/internal/orchestrate"
	"demogen/internal/planner"
	"demogen/internal/runlog"
	"demogen/internal/scorecard"
)

func statValue(s runlog.Stats, key string) string {
	switch key {
	case "opps_selected":
		return fmt.Sprint(s.OppsSelected)
	case "opps_skipped":
		return fmt.Sprint(s.OppsSkipped)
	case "meetings_created":
		return fmt.Sprint(s.MeetingsCreated)
	case "emails_created":
		return fmt.Sprint(s.EmailsCreated)
	case "activities_skipped":
		return fmt.Sprint(s.ActivitiesSkipped)
	case "scorecards_created":
		return fmt.Sprint(s.ScorecardsCreated)
	case "scorecard_answers_written":
		return fmt.Sprint(s.ScorecardAnswersWritten)
	case "failures":
		return fmt.Sprint(s.Failures)
	case "coverage":
		return Percent(s.Coverage)
	}
	return ""
}

// Stats renders run statistics as a two-column table.
func Stats(m Mode, s runlog.Stats) string {
	t := NewTable(m).Title("Run " + s.RunID).Header("Statistic", "Value")
	for _, key := range display.StatOrder {
		t.Row(display.Stat(key), statValue(s, key))
	}
	if s.FinishedAt != nil {
		t.Row("Elapsed", Duration(s.FinishedAt.Sub(s.StartedAt)))
	}
	return t.Columns(ColumnConfig{Number: 2, AlignRight: true}).String()
}

// RunStatus renders run.json next to the summary, when one exists.
func RunStatus(m Mode, st runlog.Status) string {
	t := NewTable(m).Header("Run", "Status", "Started", "Finished")
	t.Row(st.RunID, display.Status(st.Status), Timestamp(&st.StartedAt), Timestamp(st.FinishedAt))
	return t.String()
}

// Errors renders recorded errors, oldest first.
func Errors(m Mode, errs []runlog.ErrorRecord) string {
	t := NewTable(m).Header("Time", "Stage", "Opportunity", "Retryable", "Error")
	for _, e := range errs {
		t.Row(e.TS, display.Stage(e.Stage), OrDash(e.OpportunityID), e.Retryable, Truncate(e.Error, 80))
	}
	return t.Columns(ColumnConfig{Number: 5, MaxWidth: 80}).String()
}

// Cleanup renders a cleanup report with one row per CRM object.
func Cleanup(m Mode, r orchestrate.CleanupReport) string {
	objects := make([]string, 0, len(r.Deleted))
	for o := range r.Deleted {
		objects = append(objects, o)
	}
	slices.Sort(objects)

	t := NewTable(m).Title("Cleanup " + r.RunID + " (" + display.Mode(r.Mode) + ")").Header("Records", "Deleted")
	for _, o := range objects {
		t.Row(display.Object(o), r.Deleted[o])
	}
	t.Footer("Total", r.Total())
	if r.Missing > 0 {
		t.Row("Already deleted", r.Missing)
	}
	t.Row("Failed", r.Failed)
	return t.Columns(ColumnConfig{Number: 2, AlignRight: true}).String()
}

// Smoke renders what a smoke test created.
func Smoke(m Mode, r orchestrate.SmokeResult) string {
	t := NewTable(m).Title("Smoke test " + r.OpportunityID).Header("Item", "Id", "Detail")
	t.Row("Meeting", OrDash(r.MeetingID), OrDash(r.MeetingSubject))
	t.Row("Email", OrDash(r.EmailID), OrDash(r.EmailSubject))
	t.Row("Scorecard", OrDash(r.ScorecardID), fmt.Sprintf("score %.1f", r.ScorecardScore))
	return t.String()
}

// Plan renders a plan's meetings and emails in one table, meetings first.
func Plan(m Mode, p planner.ActivityPlan) string {
	t := NewTable(m).Title("Plan " + p.OpportunityID).Header("Type", "When", "Date", "Subject", "Participants")
	for _, mt := range p.Meetings {
		t.Row(fmt.Sprintf("meeting (%dm)", mt.DurationMinutes), string(mt.When), mt.Timestamp(), mt.Subject, display.Participants(mt.Participants))
	}
	for _, e := range p.Emails {
		t.Row("email", string(e.When), e.ActivityDate(), e.Subject, display.Participants(e.Participants))
	}
	return t.String()
}

// Scorecard renders a generated scorecard's surviving answers.
func Scorecard(m Mode, r scorecard.Result) string {
	title := fmt.Sprintf("%s %s: score %.1f, coverage %s", r.Template, r.ScorecardID, r.Score, Percent(r.Coverage))
	t := NewTable(m).Title(title).Header("Question", "Category", "Confidence", "Answer")
	for _, a := range r.Answers {
		t.Row(a.QuestionID, a.Category, fmt.Sprintf("%.2f", a.Confidence), Truncate(a.Text, 60))
	}
	return t.Columns(ColumnConfig{Number: 3, AlignRight: true}).String()
}
