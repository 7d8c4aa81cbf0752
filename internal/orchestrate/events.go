package orchestrate

// Event actions written to the run's event log.
const (
	ActionOpportunitiesTruncated = "opportunities_truncated"
	ActionOpportunitySelected    = "opportunity_selected"
	ActionOpportunitySkipped     = "opportunity_skipped"
	ActionMeetingCreated         = "meeting_created"
	ActionMeetingSkipped         = "meeting_skipped"
	ActionEmailCreated           = "email_created"
	ActionEmailSkipped           = "email_skipped"
	ActionScorecardUpserted      = "scorecard_upserted"
	ActionScorecardSkipped       = "scorecard_skipped"
	ActionScorecardAnswerWritten = "scorecard_answer_written"
	ActionOpportunityCompleted   = "opportunity_completed"
)

// Error stages written to the run's error log.
const (
	StagePipeline        = "pipeline"
	StageOpportunity     = "opportunity_processing"
	StageClientSetup     = "client_setup"
	StageMeetingCreate   = "meeting_create"
	StageEmailCreate     = "email_create"
	StageScorecardUpsert = "scorecard_upsert"
	StageLedgerWrite     = "ledger_write"
	StageCleanup         = "cleanup"
)
