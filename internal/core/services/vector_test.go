package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// TestDecodeVector tests decoding of a complete CVSS 3.1 vector
func TestDecodeVector(t *testing.T) {
	got, err := DecodeVector("CVSS:3.1/AV:N/AC:L/PR:N/UI:R/S:C/C:H/I:L/A:N", domain.DefaultCodeTable())
	require.NoError(t, err)

	assert.Equal(t, map[domain.SubMetric]domain.Category{
		domain.AttackVector:          domain.CategoryNetwork,
		domain.AttackComplexity:      domain.CategoryLow,
		domain.PrivilegesRequired:    domain.CategoryNone,
		domain.UserInteraction:       domain.CategoryRequired,
		domain.Scope:                 domain.CategoryChanged,
		domain.ConfidentialityImpact: domain.CategoryHigh,
		domain.IntegrityImpact:       domain.CategoryLow,
		domain.AvailabilityImpact:    domain.CategoryNone,
	}, got)
}

// TestDecodeVector_EdgeCases tests partial, unknown and duplicate tokens
func TestDecodeVector_EdgeCases(t *testing.T) {
	codes := domain.DefaultCodeTable()

	tests := []struct {
		name   string
		vector string
		want   map[domain.SubMetric]domain.Category
	}{
		{
			name:   "empty string",
			vector: "",
			want:   map[domain.SubMetric]domain.Category{},
		},
		{
			name:   "prefix only",
			vector: "CVSS:3.1",
			want:   map[domain.SubMetric]domain.Category{},
		},
		{
			name:   "partial",
			vector: "CVSS:3.0/AV:L/S:U",
			want: map[domain.SubMetric]domain.Category{
				domain.AttackVector: domain.CategoryLocal,
				domain.Scope:        domain.CategoryUnchanged,
			},
		},
		{
			name:   "unknown code maps to unknown",
			vector: "CVSS:3.1/AV:Z",
			want:   map[domain.SubMetric]domain.Category{domain.AttackVector: domain.CategoryUnknown},
		},
		{
			name:   "last duplicate wins",
			vector: "CVSS:3.1/AV:N/AV:P",
			want:   map[domain.SubMetric]domain.Category{domain.AttackVector: domain.CategoryPhysical},
		},
		{
			name:   "unrecognized keys ignored",
			vector: "CVSS:4.0/AV:N/AT:N/VC:H/E:X",
			want:   map[domain.SubMetric]domain.Category{domain.AttackVector: domain.CategoryNetwork},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeVector(tt.vector, codes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDecodeVector_Malformed tests tokens without exactly one colon
func TestDecodeVector_Malformed(t *testing.T) {
	for _, v := range []string{
		"CVSS:3.1/AV:N/ACL",
		"CVSS:3.1/AV:N:X",
		"CVSS:3.1/AV:N/",
	} {
		t.Run(v, func(t *testing.T) {
			got, err := DecodeVector(v, domain.DefaultCodeTable())
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedVector))
			assert.Nil(t, got)
		})
	}
}

// TestVector_RoundTrip tests decode-then-encode reproduces the categories
func TestVector_RoundTrip(t *testing.T) {
	codes := domain.DefaultCodeTable()
	avs := []string{"N", "A", "L", "P"}
	lh := []string{"L", "H"}
	nlh := []string{"N", "L", "H"}
	nr := []string{"N", "R"}
	uc := []string{"U", "C"}

	count := 0
	for _, av := range avs {
		for _, ac := range lh {
			for _, pr := range nlh {
				for _, ui := range nr {
					for _, s := range uc {
						for _, c := range nlh {
							v := "CVSS:3.1/AV:" + av + "/AC:" + ac + "/PR:" + pr + "/UI:" + ui +
								"/S:" + s + "/C:" + c + "/I:" + c + "/A:" + c
							decoded, err := DecodeVector(v, codes)
							require.NoError(t, err)

							encoded := EncodeVector("CVSS:3.1", decoded, codes)
							assert.Equal(t, v, encoded)

							again, err := DecodeVector(encoded, codes)
							require.NoError(t, err)
							assert.Equal(t, decoded, again)
							count++
						}
					}
				}
			}
		}
	}
	assert.Equal(t, 4*2*3*2*2*3, count)
}

// TestEncodeVector_SkipsUnknown tests categories without a code are dropped
func TestEncodeVector_SkipsUnknown(t *testing.T) {
	got := EncodeVector("CVSS:3.1", map[domain.SubMetric]domain.Category{
		domain.AttackVector: domain.CategoryUnknown,
		domain.Scope:        domain.CategoryChanged,
	}, domain.DefaultCodeTable())
	assert.Equal(t, "CVSS:3.1/S:C", got)
}
