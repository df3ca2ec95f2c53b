package domain

import "strings"

// Decision is an SSVC response-priority label.
type Decision string

// SSVC decisions.
const (
	DecisionAct     Decision = "Act"
	DecisionAttend  Decision = "Attend"
	DecisionTrack   Decision = "Track"
	DecisionUnknown Decision = "Unknown"
)

// SSVC holds the decision-support inputs read from an advisory.
type SSVC struct {
	Timestamp       string
	Exploitation    string
	Automatable     string
	TechnicalImpact string
}

// Complete reports whether all three categorical inputs are set.
func (s SSVC) Complete() bool {
	return s.Exploitation != "" && s.Automatable != "" && s.TechnicalImpact != ""
}

// Decision computes the decision label. Only meaningful when Complete.
func (s SSVC) Decision() Decision {
	return DecideSSVC(s.Exploitation, s.Automatable, s.TechnicalImpact)
}

type ssvcKey struct {
	exploitation string
	automatable  string
	impact       string
}

var ssvcTable = map[ssvcKey]Decision{
	{"active", "yes", "total"}:   DecisionAct,
	{"active", "no", "total"}:    DecisionAct,
	{"active", "yes", "partial"}: DecisionAct,
	{"active", "no", "partial"}:  DecisionAttend,

	{"poc", "yes", "total"}:   DecisionAttend,
	{"poc", "no", "total"}:    DecisionAttend,
	{"poc", "yes", "partial"}: DecisionAttend,
	{"poc", "no", "partial"}:  DecisionAttend,

	{"none", "yes", "total"}:   DecisionAttend,
	{"none", "yes", "partial"}: DecisionTrack,
	{"none", "no", "total"}:    DecisionTrack,
	{"none", "no", "partial"}:  DecisionTrack,
}

// DecideSSVC maps exploitation × automatable × technical impact to a
// decision. Inputs are case-insensitive; any unrecognized input yields
// DecisionUnknown.
func DecideSSVC(exploitation, automatable, technicalImpact string) Decision {
	key := ssvcKey{
		exploitation: strings.ToLower(strings.TrimSpace(exploitation)),
		automatable:  strings.ToLower(strings.TrimSpace(automatable)),
		impact:       strings.ToLower(strings.TrimSpace(technicalImpact)),
	}
	if d, ok := ssvcTable[key]; ok {
		return d
	}
	return DecisionUnknown
}
