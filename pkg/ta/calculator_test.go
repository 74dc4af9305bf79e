package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5, 6}, 5)
	require.Len(t, out, 6)
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(out[i]), "index %d should be in lookback", i)
	}
	assert.InDelta(t, 3.0, out[4], 1e-12)
	assert.InDelta(t, 4.0, out[5], 1e-12)
}

func TestShortSeriesIsAllNaN(t *testing.T) {
	for _, out := range [][]float64{
		SMA([]float64{1, 2}, 5),
		RollingStdDev([]float64{0.01, 0.02}, 21),
	} {
		require.Len(t, out, 2)
		assert.True(t, math.IsNaN(out[0]))
		assert.True(t, math.IsNaN(out[1]))
	}
}

func TestRollingStdDev(t *testing.T) {
	// 总体标准差：{1,3} -> 1, {3,5} -> 1
	out := RollingStdDev([]float64{1, 3, 5}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 1.0, out[1], 1e-9)
	assert.InDelta(t, 1.0, out[2], 1e-9)

	vol := AnnualizedRollingVol([]float64{1, 3, 5}, 2, 4)
	assert.InDelta(t, 2.0, vol[2], 1e-9)
}

func TestCalculator(t *testing.T) {
	tc := NewTACalculator(2, 2)
	_, err := tc.Calculate("AAPL")
	assert.Error(t, err)

	for _, v := range []float64{0.2, 0.4, -0.2} {
		tc.Append("AAPL", v)
	}
	data, err := tc.Calculate("AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.4, -0.2}, data.Values)
	assert.InDelta(t, 0.3, data.SMA[1], 1e-12)
	assert.InDelta(t, 0.1, data.SMA[2], 1e-12)
}
