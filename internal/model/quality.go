package model

// Quality is an independent hot/warm/cool/cold readiness classification.
// It is advisory and directly settable; SuggestQuality only proposes.
type Quality string

const (
	QualityHot  Quality = "hot"
	QualityWarm Quality = "warm"
	QualityCool Quality = "cool"
	QualityCold Quality = "cold"
)

// QualityInfo is the static presentational descriptor for a quality band.
type QualityInfo struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Hint  string `json:"hint"`
}

var qualityInfos = map[Quality]QualityInfo{
	QualityHot:  {Label: "Hot", Icon: "fire", Hint: "Ready to buy, work daily"},
	QualityWarm: {Label: "Warm", Icon: "sun", Hint: "Engaged, work weekly"},
	QualityCool: {Label: "Cool", Icon: "cloud", Hint: "Some interest, keep in touch"},
	QualityCold: {Label: "Cold", Icon: "snowflake", Hint: "No signal yet"},
}

// Info returns the static descriptor for the quality band.
func (q Quality) Info() QualityInfo {
	return qualityInfos[q]
}

// Valid reports whether q is a known quality band.
func (q Quality) Valid() bool {
	_, ok := qualityInfos[q]
	return ok
}

// SuggestQuality derives an advisory quality from stage and interest with a
// fixed precedence: explicit high interest or late pipeline wins, then medium
// interest or mid pipeline, then low interest or a bare contact, else cold.
func SuggestQuality(stage Stage, interest InterestLevel) Quality {
	switch {
	case interest == InterestHigh || latePipeline(stage):
		return QualityHot
	case interest == InterestMedium || midPipeline(stage):
		return QualityWarm
	case interest == InterestLow || stage == StageContacted:
		return QualityCool
	default:
		return QualityCold
	}
}

func latePipeline(s Stage) bool {
	switch s {
	case StageTrialStarted, StageProposalSent, StageNegotiation, StageContractSent, StageWon:
		return true
	}
	return false
}

func midPipeline(s Stage) bool {
	switch s {
	case StageQualified, StageDemoScheduled, StageDemoCompleted:
		return true
	}
	return false
}
