package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestColumns_Order tests the fixed output schema
func TestColumns_Order(t *testing.T) {
	require.Len(t, Columns, 26)
	assert.Equal(t, "id", Columns[0])
	assert.Equal(t, "known_exploited", Columns[3])
	assert.Equal(t, "attack_vector", Columns[8])
	assert.Equal(t, "ssvc_decision", Columns[20])
	assert.Equal(t, "cwe_description", Columns[25])

	for i, m := range SubMetrics() {
		assert.Equal(t, m.Column(), Columns[8+i])
	}
}

// TestRecord_Values tests serialization to column order
func TestRecord_Values(t *testing.T) {
	r := NewRecord()
	r.ID = "CVE-2024-0001"
	r.KnownExploited = true
	r.AttackVector = "NETWORK"
	r.ImpactedProducts = []string{"a", "b", "a"}
	r.VulnerableVersions = []string{"1.0"}
	r.CWENumber = "CWE-79"

	values := r.Values()
	require.Len(t, values, len(Columns))
	assert.Equal(t, "CVE-2024-0001", values[0])
	assert.Equal(t, "TRUE", values[3])
	assert.Equal(t, "NETWORK", values[8])
	assert.Equal(t, "a,b,a", values[22])
	assert.Equal(t, "1.0", values[23])
	assert.Equal(t, "CWE-79", values[24])
}

// TestRecord_EmptyValues tests an empty record serializes to empty strings
func TestRecord_EmptyValues(t *testing.T) {
	r := NewRecord()
	values := r.Values()

	assert.Equal(t, "FALSE", values[3])
	for i, v := range values {
		if i == 3 {
			continue
		}
		assert.Empty(t, v, Columns[i])
	}
}

// TestRecord_SubMetric tests pointer access to sub-metric fields
func TestRecord_SubMetric(t *testing.T) {
	r := NewRecord()
	*r.SubMetric(Scope) = "CHANGED"
	assert.Equal(t, "CHANGED", r.Scope)
	assert.Nil(t, r.SubMetric(SubMetric(42)))

	missing := r.MissingSubMetrics()
	assert.Len(t, missing, 7)
	assert.NotContains(t, missing, Scope)
}

// TestParseKnownExploited tests the boolean parse
func TestParseKnownExploited(t *testing.T) {
	assert.True(t, ParseKnownExploited("TRUE"))
	assert.True(t, ParseKnownExploited("true"))
	assert.False(t, ParseKnownExploited("FALSE"))
	assert.False(t, ParseKnownExploited(""))
}

// TestRecord_Clone tests list fields are copied
func TestRecord_Clone(t *testing.T) {
	r := NewRecord()
	r.ImpactedProducts = []string{"a"}
	c := r.Clone()
	c.ImpactedProducts[0] = "b"
	assert.Equal(t, "a", r.ImpactedProducts[0])
}
