package model

// Stage is a lead's position in the sales funnel. Stages are descriptive
// metadata for the UI and statistics; any stage may be set from any other by
// direct update (the Transitions table below is advisory only).
type Stage string

const (
	StageNew           Stage = "new"
	StageContacted     Stage = "contacted"
	StageQualified     Stage = "qualified"
	StageDemoScheduled Stage = "demo_scheduled"
	StageDemoCompleted Stage = "demo_completed"
	StageTrialStarted  Stage = "trial_started"
	StageProposalSent  Stage = "proposal_sent" // legacy
	StageNegotiation   Stage = "negotiation"   // legacy
	StageContractSent  Stage = "contract_sent" // legacy
	StageWon           Stage = "won"
	StageLost          Stage = "lost"
	StageOnHold        Stage = "on_hold"
	StageNurturing     Stage = "nurturing"
)

// ProgressOffPath marks stages that don't sit on the main progress bar.
const ProgressOffPath = -1

// StageInfo is the static presentational descriptor for a stage.
type StageInfo struct {
	Label           string `json:"label"`
	Icon            string `json:"icon"`
	Progress        int    `json:"progress"` // 0-100 along the main path, -1 off-path
	NextAction      string `json:"next_action"`
	SuccessCriteria string `json:"success_criteria"`
	Hidden          bool   `json:"hidden,omitempty"` // legacy stages kept for old data
}

// Stages lists the pipeline in funnel order, main path first.
var Stages = []Stage{
	StageNew, StageContacted, StageQualified, StageDemoScheduled,
	StageDemoCompleted, StageTrialStarted, StageProposalSent,
	StageNegotiation, StageContractSent, StageWon,
	StageLost, StageOnHold, StageNurturing,
}

var stageInfos = map[Stage]StageInfo{
	StageNew:           {Label: "New Lead", Icon: "sparkles", Progress: 0, NextAction: "Make first contact within 24h", SuccessCriteria: "Lead acknowledged outreach"},
	StageContacted:     {Label: "Contacted", Icon: "phone", Progress: 15, NextAction: "Qualify budget and need", SuccessCriteria: "Two-way conversation established"},
	StageQualified:     {Label: "Qualified", Icon: "check-badge", Progress: 30, NextAction: "Schedule a product demo", SuccessCriteria: "Budget, authority, need confirmed"},
	StageDemoScheduled: {Label: "Demo Scheduled", Icon: "calendar", Progress: 45, NextAction: "Run the demo, confirm attendance a day before", SuccessCriteria: "Demo on the calendar with decision maker"},
	StageDemoCompleted: {Label: "Demo Completed", Icon: "presentation-chart", Progress: 60, NextAction: "Start a trial or send pricing", SuccessCriteria: "Lead saw the product working on their use case"},
	StageTrialStarted:  {Label: "Trial Started", Icon: "beaker", Progress: 75, NextAction: "Check in on day 3 and day 7 of trial", SuccessCriteria: "Lead actively using the trial"},
	StageProposalSent:  {Label: "Proposal Sent", Icon: "document-text", Progress: 80, NextAction: "Follow up on the proposal", SuccessCriteria: "Proposal opened and discussed", Hidden: true},
	StageNegotiation:   {Label: "Negotiation", Icon: "scale", Progress: 85, NextAction: "Close open commercial points", SuccessCriteria: "Terms agreed verbally", Hidden: true},
	StageContractSent:  {Label: "Contract Sent", Icon: "pencil-square", Progress: 90, NextAction: "Chase the signature", SuccessCriteria: "Contract in legal/signing", Hidden: true},
	StageWon:           {Label: "Won", Icon: "trophy", Progress: 100, NextAction: "Hand over to onboarding", SuccessCriteria: "Payment received"},
	StageLost:          {Label: "Lost", Icon: "x-circle", Progress: 0, NextAction: "Record loss reason", SuccessCriteria: ""},
	StageOnHold:        {Label: "On Hold", Icon: "pause", Progress: ProgressOffPath, NextAction: "Set a revisit date", SuccessCriteria: ""},
	StageNurturing:     {Label: "Nurturing", Icon: "heart", Progress: ProgressOffPath, NextAction: "Add to the monthly touch cadence", SuccessCriteria: "Lead re-engages"},
}

// Info returns the static descriptor for the stage. Unknown stages get a
// zero-value descriptor rather than a panic so legacy data renders.
func (s Stage) Info() StageInfo {
	return stageInfos[s]
}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	_, ok := stageInfos[s]
	return ok
}

// actionStages maps UI "next action" verbs to the stage they move a lead into.
var actionStages = map[string]Stage{
	"make_contact":  StageContacted,
	"qualify":       StageQualified,
	"schedule_demo": StageDemoScheduled,
	"complete_demo": StageDemoCompleted,
	"start_trial":   StageTrialStarted,
	"send_proposal": StageProposalSent,
	"negotiate":     StageNegotiation,
	"send_contract": StageContractSent,
	"close_won":     StageWon,
	"close_lost":    StageLost,
	"put_on_hold":   StageOnHold,
	"start_nurture": StageNurturing,
	"resume":        StageContacted,
}

// StageForAction returns the stage a next-action verb transitions into.
func StageForAction(action string) (Stage, bool) {
	s, ok := actionStages[action]
	return s, ok
}

// Transitions is the advisory edge set along the expected funnel. It is NOT
// enforced: direct updates may jump between arbitrary stages, matching how
// the sales team actually works the board. Callers can consult it to warn.
var Transitions = map[Stage][]Stage{
	StageNew:           {StageContacted, StageLost, StageNurturing},
	StageContacted:     {StageQualified, StageLost, StageOnHold, StageNurturing},
	StageQualified:     {StageDemoScheduled, StageLost, StageOnHold},
	StageDemoScheduled: {StageDemoCompleted, StageLost, StageOnHold},
	StageDemoCompleted: {StageTrialStarted, StageProposalSent, StageLost, StageOnHold},
	StageTrialStarted:  {StageProposalSent, StageWon, StageLost, StageOnHold},
	StageProposalSent:  {StageNegotiation, StageWon, StageLost},
	StageNegotiation:   {StageContractSent, StageWon, StageLost},
	StageContractSent:  {StageWon, StageLost},
	StageOnHold:        {StageContacted, StageNurturing, StageLost},
	StageNurturing:     {StageContacted, StageLost},
}

// ExpectedTransition reports whether from -> to follows the advisory funnel
// edges. A false result is a hint for logging, never a rejection.
func ExpectedTransition(from, to Stage) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
