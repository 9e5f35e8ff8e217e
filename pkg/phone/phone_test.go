package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := New()

	tests := []struct {
		name   string
		number string
		region string
		want   string
	}{
		{"already e164", "+41791234567", "", "+41791234567"},
		{"formatted international", "+41 79 123 45 67", "", "+41791234567"},
		{"national with region", "079 123 45 67", "CH", "+41791234567"},
		{"national with default region", "079 123 45 67", "", "+41791234567"},
		{"german national", "0171 1234567", "DE", "+491711234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.number, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := New()
	first, err := n.Normalize("079 123 45 67", "CH")
	require.NoError(t, err)
	second, err := n.Normalize(first, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	n := New()

	_, err := n.Normalize("", "")
	assert.Error(t, err)

	_, err = n.Normalize("not a number", "CH")
	assert.Error(t, err)

	_, err = n.Normalize("+4112", "")
	assert.Error(t, err)
}
