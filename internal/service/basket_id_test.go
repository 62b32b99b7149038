package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasketID(t *testing.T) {
	key := newBasketKey()
	require.Len(t, key, 32)

	shopID, parsed, err := ParseBasketID("7-" + key)
	require.NoError(t, err)
	assert.Equal(t, int64(7), shopID)
	assert.Equal(t, key, parsed)
}

func TestParseBasketIDMalformed(t *testing.T) {
	key := newBasketKey()

	tests := []struct {
		name string
		id   string
	}{
		{"bare key", key},
		{"empty", ""},
		{"non numeric shop", "abc-" + key},
		{"zero shop", "0-" + key},
		{"negative shop", "-1-" + key},
		{"short key", "1-abc"},
		{"uppercase key", "1-" + "ABCDEF0123456789ABCDEF0123456789"},
		{"dashed uuid", "1-123e4567-e89b-12d3-a456-426614174000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseBasketID(tt.id)
			assert.ErrorIs(t, err, ErrMalformedBasketID)
		})
	}
}
