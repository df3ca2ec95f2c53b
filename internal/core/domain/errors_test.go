package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnextractable", ErrUnextractable},
		{"ErrMalformedVector", ErrMalformedVector},
		{"ErrConnectivity", ErrConnectivity},
		{"ErrRateLimited", ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Distinct tests that no two sentinels match each other
func TestErrors_Distinct(t *testing.T) {
	all := []error{
		ErrNotFound, ErrInvalidInput, ErrUnextractable,
		ErrMalformedVector, ErrConnectivity, ErrRateLimited,
	}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

// TestErrors_Wrapped tests sentinels survive fmt.Errorf wrapping
func TestErrors_Wrapped(t *testing.T) {
	err := fmt.Errorf("extract CVE-2024-0001: %w", ErrUnextractable)
	assert.True(t, errors.Is(err, ErrUnextractable))
	assert.Equal(t, "extract CVE-2024-0001: advisory unextractable", err.Error())
}
