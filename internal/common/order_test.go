package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	for _, spelling := range []string{"bid", "buy"} {
		side, err := ParseSide(spelling)
		require.NoError(t, err)
		assert.Equal(t, Buy, side)
	}
	for _, spelling := range []string{"ask", "sell"} {
		side, err := ParseSide(spelling)
		require.NoError(t, err)
		assert.Equal(t, Sell, side)
	}

	_, err := ParseSide("hold")
	require.ErrorIs(t, err, ErrInvalidSide)
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}
