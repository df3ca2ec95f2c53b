package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a scalar leaf of an advisory document together with its presence.
// A JSON null, object or array decodes to an absent Field. Numbers and
// booleans keep their literal JSON text, so a base score of 9.8 becomes "9.8".
type Field struct {
	Value   string
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Field{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field{Value: s, Present: true}
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		// Not a scalar where one was expected: treat as absent.
		*f = Field{}
		return nil
	}
	*f = Field{Value: string(data), Present: true}
	return nil
}

// MarshalJSON implements json.Marshaler. Absent fields marshal to null.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Present {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Get returns the value and whether it was present.
func (f Field) Get() (string, bool) {
	return f.Value, f.Present
}

// String returns the value, or the empty string when absent.
func (f Field) String() string {
	return f.Value
}

// Text builds a present Field. Used by tests and fixtures.
func Text(v string) Field {
	return Field{Value: v, Present: true}
}

// Advisory is one CVE JSON 5 record as published upstream. Only the subset
// consumed by the extractor is modelled; nil pointers mean "absent".
type Advisory struct {
	Metadata   *AdvisoryMetadata `json:"cveMetadata,omitempty"`
	Containers *Containers       `json:"containers,omitempty"`
}

// AdvisoryMetadata is the cveMetadata block.
type AdvisoryMetadata struct {
	ID            Field `json:"cveId"`
	DatePublished Field `json:"datePublished"`
	DateUpdated   Field `json:"dateUpdated"`
}

// Containers holds the two namespaces that may carry scoring data.
// ADP is nil when the key is absent and non-nil (possibly empty) when present.
type Containers struct {
	ADP []Container `json:"adp,omitempty"`
	CNA *Container  `json:"cna,omitempty"`
}

// HasADP reports whether the secondary-assessment namespace is present.
func (c *Containers) HasADP() bool {
	return c != nil && c.ADP != nil
}

// HasCNA reports whether the primary-reporter namespace is present.
func (c *Containers) HasCNA() bool {
	return c != nil && c.CNA != nil
}

// Container is either an ADP block or the CNA block. Both share a shape.
type Container struct {
	Title        Field         `json:"title"`
	Metrics      Metrics       `json:"metrics,omitempty"`
	ProblemTypes []ProblemType `json:"problemTypes,omitempty"`
	Affected     []Affected    `json:"affected,omitempty"`
}

// Metrics is a metrics list. Entries that are not JSON objects are dropped
// while decoding instead of failing the whole document.
type Metrics []Metric

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Metrics, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) == 0 || r[0] != '{' {
			continue
		}
		var metric Metric
		if err := json.Unmarshal(r, &metric); err != nil {
			return err
		}
		out = append(out, metric)
	}
	*m = out
	return nil
}

// Metric is one entry of a metrics list: zero or more CVSS blocks keyed by
// version, and optionally an "other" block.
type Metric struct {
	CVSSV40 *CVSS        `json:"cvssV4_0,omitempty"`
	CVSSV31 *CVSS        `json:"cvssV3_1,omitempty"`
	CVSSV30 *CVSS        `json:"cvssV3_0,omitempty"`
	CVSSV20 *CVSS        `json:"cvssV2_0,omitempty"`
	Other   *OtherMetric `json:"other,omitempty"`
}

// Block returns the CVSS block stored under the given version key, or nil.
func (m Metric) Block(v CVSSVersion) *CVSS {
	switch v {
	case CVSSV40:
		return m.CVSSV40
	case CVSSV31:
		return m.CVSSV31
	case CVSSV30:
		return m.CVSSV30
	case CVSSV20:
		return m.CVSSV20
	default:
		return nil
	}
}

// CVSS is a version-tagged metric block.
type CVSS struct {
	Version               Field `json:"version"`
	BaseScore             Field `json:"baseScore"`
	BaseSeverity          Field `json:"baseSeverity"`
	VectorString          Field `json:"vectorString"`
	AttackVector          Field `json:"attackVector"`
	AttackComplexity      Field `json:"attackComplexity"`
	PrivilegesRequired    Field `json:"privilegesRequired"`
	UserInteraction       Field `json:"userInteraction"`
	Scope                 Field `json:"scope"`
	ConfidentialityImpact Field `json:"confidentialityImpact"`
	IntegrityImpact       Field `json:"integrityImpact"`
	AvailabilityImpact    Field `json:"availabilityImpact"`
}

// SubMetric returns the structured field for one of the eight sub-metrics.
func (c *CVSS) SubMetric(m SubMetric) Field {
	switch m {
	case AttackVector:
		return c.AttackVector
	case AttackComplexity:
		return c.AttackComplexity
	case PrivilegesRequired:
		return c.PrivilegesRequired
	case UserInteraction:
		return c.UserInteraction
	case Scope:
		return c.Scope
	case ConfidentialityImpact:
		return c.ConfidentialityImpact
	case IntegrityImpact:
		return c.IntegrityImpact
	case AvailabilityImpact:
		return c.AvailabilityImpact
	default:
		return Field{}
	}
}

// Other block type tags.
const (
	OtherTypeSSVC = "ssvc"
	OtherTypeKEV  = "kev"
)

// OtherMetric is the "other"-typed entry of a metrics list.
type OtherMetric struct {
	Type    Field         `json:"type"`
	Content *OtherContent `json:"content,omitempty"`
}

// OtherContent is the union of the SSVC and KEV payloads.
type OtherContent struct {
	// SSVC payload.
	Timestamp Field              `json:"timestamp"`
	Options   []map[string]Field `json:"options,omitempty"`

	// KEV payload.
	DateAdded Field `json:"dateAdded"`
}

// ProblemType is one entry of a problemTypes list.
type ProblemType struct {
	Descriptions []ProblemDescription `json:"descriptions,omitempty"`
}

// ProblemDescription classifies a weakness.
type ProblemDescription struct {
	Type        Field `json:"type"`
	CWEID       Field `json:"cweId"`
	Description Field `json:"description"`
}

// Affected is one affected vendor/product entry.
type Affected struct {
	Vendor   Field             `json:"vendor"`
	Product  Field             `json:"product"`
	Versions []AffectedVersion `json:"versions,omitempty"`
}

// AffectedVersion is one version entry of an affected product.
type AffectedVersion struct {
	Version Field `json:"version"`
	Status  Field `json:"status"`
}

// ParseAdvisory decodes a raw advisory document.
func ParseAdvisory(data []byte) (*Advisory, error) {
	var adv Advisory
	if err := json.Unmarshal(data, &adv); err != nil {
		return nil, fmt.Errorf("decode advisory: %w", err)
	}
	return &adv, nil
}
