package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFloatRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1.0 / 3, -0.012345678901234567, 101.37/99.91 - 1, 1e-17, 123456789.123456789} {
		got, err := ParseFloatOrNaN(FormatFloat(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	assert.Equal(t, Undefined, FormatFloat(math.NaN()))
	assert.Equal(t, Undefined, FormatFloat(math.Inf(1)))
	nan, err := ParseFloatOrNaN(Undefined)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(nan))
}
