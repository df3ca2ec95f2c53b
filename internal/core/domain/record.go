package domain

import "strings"

// Columns is the fixed output column order shared by every tabular sink.
var Columns = []string{
	"id",
	"published_date",
	"updated_date",
	"known_exploited",
	"known_exploited_date",
	"cvss_version",
	"base_score",
	"base_severity",
	"attack_vector",
	"attack_complexity",
	"privileges_required",
	"user_interaction",
	"scope",
	"confidentiality_impact",
	"integrity_impact",
	"availability_impact",
	"ssvc_timestamp",
	"ssvc_exploitation",
	"ssvc_automatable",
	"ssvc_technical_impact",
	"ssvc_decision",
	"impacted_vendor",
	"impacted_products",
	"vulnerable_versions",
	"cwe_number",
	"cwe_description",
}

// Record is the normalized, fixed-schema form of one advisory.
// Absent values are empty strings, never nil.
type Record struct {
	ID                 string `json:"id"`
	PublishedDate      string `json:"published_date"`
	UpdatedDate        string `json:"updated_date"`
	KnownExploited     bool   `json:"known_exploited"`
	KnownExploitedDate string `json:"known_exploited_date"`

	CVSSVersion           string `json:"cvss_version"`
	BaseScore             string `json:"base_score"`
	BaseSeverity          string `json:"base_severity"`
	AttackVector          string `json:"attack_vector"`
	AttackComplexity      string `json:"attack_complexity"`
	PrivilegesRequired    string `json:"privileges_required"`
	UserInteraction       string `json:"user_interaction"`
	Scope                 string `json:"scope"`
	ConfidentialityImpact string `json:"confidentiality_impact"`
	IntegrityImpact       string `json:"integrity_impact"`
	AvailabilityImpact    string `json:"availability_impact"`

	SSVCTimestamp       string `json:"ssvc_timestamp"`
	SSVCExploitation    string `json:"ssvc_exploitation"`
	SSVCAutomatable     string `json:"ssvc_automatable"`
	SSVCTechnicalImpact string `json:"ssvc_technical_impact"`
	SSVCDecision        string `json:"ssvc_decision"`

	ImpactedVendor     string   `json:"impacted_vendor"`
	ImpactedProducts   []string `json:"impacted_products"`
	VulnerableVersions []string `json:"vulnerable_versions"`

	CWENumber      string `json:"cwe_number"`
	CWEDescription string `json:"cwe_description"`
}

// NewRecord returns a record with non-nil list fields.
func NewRecord() Record {
	return Record{
		ImpactedProducts:   []string{},
		VulnerableVersions: []string{},
	}
}

// SubMetric returns a pointer to the record field backing a sub-metric.
func (r *Record) SubMetric(m SubMetric) *string {
	switch m {
	case AttackVector:
		return &r.AttackVector
	case AttackComplexity:
		return &r.AttackComplexity
	case PrivilegesRequired:
		return &r.PrivilegesRequired
	case UserInteraction:
		return &r.UserInteraction
	case Scope:
		return &r.Scope
	case ConfidentialityImpact:
		return &r.ConfidentialityImpact
	case IntegrityImpact:
		return &r.IntegrityImpact
	case AvailabilityImpact:
		return &r.AvailabilityImpact
	default:
		return nil
	}
}

// MissingSubMetrics lists the sub-metrics that are still empty.
func (r *Record) MissingSubMetrics() []SubMetric {
	var out []SubMetric
	for _, m := range SubMetrics() {
		if *r.SubMetric(m) == "" {
			out = append(out, m)
		}
	}
	return out
}

// KnownExploitedString renders the flag the way tabular sinks store it.
func (r *Record) KnownExploitedString() string {
	if r.KnownExploited {
		return "TRUE"
	}
	return "FALSE"
}

// ParseKnownExploited is the inverse of KnownExploitedString.
func ParseKnownExploited(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "TRUE")
}

// Values returns the record as strings in Columns order. List fields are
// comma-joined.
func (r *Record) Values() []string {
	return []string{
		r.ID,
		r.PublishedDate,
		r.UpdatedDate,
		r.KnownExploitedString(),
		r.KnownExploitedDate,
		r.CVSSVersion,
		r.BaseScore,
		r.BaseSeverity,
		r.AttackVector,
		r.AttackComplexity,
		r.PrivilegesRequired,
		r.UserInteraction,
		r.Scope,
		r.ConfidentialityImpact,
		r.IntegrityImpact,
		r.AvailabilityImpact,
		r.SSVCTimestamp,
		r.SSVCExploitation,
		r.SSVCAutomatable,
		r.SSVCTechnicalImpact,
		r.SSVCDecision,
		r.ImpactedVendor,
		strings.Join(r.ImpactedProducts, ","),
		strings.Join(r.VulnerableVersions, ","),
		r.CWENumber,
		r.CWEDescription,
	}
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.ImpactedProducts = append([]string{}, r.ImpactedProducts...)
	r.VulnerableVersions = append([]string{}, r.VulnerableVersions...)
	return r
}
