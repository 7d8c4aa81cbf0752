package planner

var meetingSubjects = []string{
	"Discovery Call",
	"Product Demo",
	"Technical Deep Dive",
	"Stakeholder Alignment",
	"Executive Briefing",
	"Solution Architecture Review",
	"Business Requirements Discussion",
	"Evaluation Planning",
	"Security & Compliance Review",
	"Pricing Discussion",
	"Implementation Planning",
	"Next Steps & Timeline Review",
}

var emailSubjects = []string{
	"Re: Follow-up from our call",
	"Demo recording and materials",
	"Next steps and action items",
	"Proposal for review",
	"Re: Technical questions",
	"Scheduling our next meeting",
	"Additional resources",
	"Re: Security documentation",
	"Pricing information",
	"Re: Timeline and implementation",
	"Introduction to our team",
	"Re: Contract review",
}
