package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("EGRESS_A", "alpha")
	t.Setenv("EGRESS_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${EGRESS_A}", "alpha"},
		{"$EGRESS_A-x", "alpha-x"},
		{"[${EGRESS_EMPTY}]", "[]"},
		{"$$${EGRESS_A}", "$alpha"},
		{"cost $$5", "cost $5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandEnv(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandEnv_Missing(t *testing.T) {
	t.Setenv("EGRESS_A", "alpha")

	_, err := ExpandEnv("${EGRESS_ZZZ} ${EGRESS_A} ${EGRESS_YYY} ${EGRESS_ZZZ}")
	require.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), "EGRESS_YYY, EGRESS_ZZZ")
}
