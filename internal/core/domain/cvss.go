package domain

// CVSSVersion is the key under which a metric block is stored.
type CVSSVersion string

// Known CVSS version keys.
const (
	CVSSV40 CVSSVersion = "cvssV4_0"
	CVSSV31 CVSSVersion = "cvssV3_1"
	CVSSV30 CVSSVersion = "cvssV3_0"
	CVSSV20 CVSSVersion = "cvssV2_0"
)

// DefaultVersionPreference is the most-recent-first lookup order.
func DefaultVersionPreference() []CVSSVersion {
	return []CVSSVersion{CVSSV40, CVSSV31, CVSSV30, CVSSV20}
}

// SubMetric identifies one of the eight CVSS base sub-metrics.
type SubMetric int

// The eight recognized sub-metrics, in record column order.
const (
	AttackVector SubMetric = iota
	AttackComplexity
	PrivilegesRequired
	UserInteraction
	Scope
	ConfidentialityImpact
	IntegrityImpact
	AvailabilityImpact
)

// SubMetrics lists every sub-metric in record column order.
func SubMetrics() []SubMetric {
	return []SubMetric{
		AttackVector, AttackComplexity, PrivilegesRequired, UserInteraction,
		Scope, ConfidentialityImpact, IntegrityImpact, AvailabilityImpact,
	}
}

var subMetricKeys = [...]string{"AV", "AC", "PR", "UI", "S", "C", "I", "A"}

var subMetricColumns = [...]string{
	"attack_vector", "attack_complexity", "privileges_required", "user_interaction",
	"scope", "confidentiality_impact", "integrity_impact", "availability_impact",
}

// Key returns the vector-string key, e.g. "AV".
func (m SubMetric) Key() string {
	if m < 0 || int(m) >= len(subMetricKeys) {
		return ""
	}
	return subMetricKeys[m]
}

// Column returns the record column name, e.g. "attack_vector".
func (m SubMetric) Column() string {
	if m < 0 || int(m) >= len(subMetricColumns) {
		return ""
	}
	return subMetricColumns[m]
}

// Category is the decoded value of a sub-metric, in the spelling used by the
// structured CVSS fields.
type Category string

// Categories produced by the default code table.
const (
	CategoryUnknown         Category = ""
	CategoryNetwork         Category = "NETWORK"
	CategoryAdjacentNetwork Category = "ADJACENT_NETWORK"
	CategoryLocal           Category = "LOCAL"
	CategoryPhysical        Category = "PHYSICAL"
	CategoryLow             Category = "LOW"
	CategoryHigh            Category = "HIGH"
	CategoryNone            Category = "NONE"
	CategoryRequired        Category = "REQUIRED"
	CategoryUnchanged       Category = "UNCHANGED"
	CategoryChanged         Category = "CHANGED"
)

// CodeTable maps single-letter vector codes to categories, per sub-metric.
type CodeTable map[SubMetric]map[string]Category

// DefaultCodeTable returns the CVSS v3 code table.
func DefaultCodeTable() CodeTable {
	impact := map[string]Category{"N": CategoryNone, "L": CategoryLow, "H": CategoryHigh}
	return CodeTable{
		AttackVector: {
			"N": CategoryNetwork, "A": CategoryAdjacentNetwork,
			"L": CategoryLocal, "P": CategoryPhysical,
		},
		AttackComplexity:      {"L": CategoryLow, "H": CategoryHigh},
		PrivilegesRequired:    {"N": CategoryNone, "L": CategoryLow, "H": CategoryHigh},
		UserInteraction:       {"N": CategoryNone, "R": CategoryRequired},
		Scope:                 {"U": CategoryUnchanged, "C": CategoryChanged},
		ConfidentialityImpact: copyCodes(impact),
		IntegrityImpact:       copyCodes(impact),
		AvailabilityImpact:    copyCodes(impact),
	}
}

func copyCodes(in map[string]Category) map[string]Category {
	out := make(map[string]Category, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Lookup maps a code to its category. Unrecognized codes map to
// CategoryUnknown.
func (t CodeTable) Lookup(m SubMetric, code string) Category {
	if c, ok := t[m][code]; ok {
		return c
	}
	return CategoryUnknown
}

// Code is the inverse of Lookup.
func (t CodeTable) Code(m SubMetric, c Category) (string, bool) {
	for code, cat := range t[m] {
		if cat == c {
			return code, true
		}
	}
	return "", false
}
