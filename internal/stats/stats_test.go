package stats

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-sector-backtest/internal/model"
)

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics([]float64{0.01, -0.02, 0.03, 0}, 252)
	assert.Equal(t, 4, m.Days)
	assert.Equal(t, 3, m.ActiveDays)
	assert.InDelta(t, 0.005, m.Mean, 1e-12)
	assert.InDelta(t, 0.005*252, m.AnnualizedArith, 1e-12)

	total := 1.01*0.98*1.03 - 1
	assert.InDelta(t, total, m.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1+total, 252.0/4)-1, m.AnnualizedGeom, 1e-9)
	assert.InDelta(t, 0.98-1, m.MaxDrawdown, 1e-12)

	sd := math.Sqrt((0.005*0.005 + 0.025*0.025 + 0.025*0.025 + 0.005*0.005) / 3)
	assert.InDelta(t, sd, m.StdDev, 1e-12)
	assert.InDelta(t, 0.005/sd*math.Sqrt(252), m.SharpeRatio, 1e-9)
}

func TestSharpeUndefinedForZeroVariance(t *testing.T) {
	m := ComputeMetrics([]float64{0.001, 0.001, 0.001}, 252)
	assert.True(t, math.IsNaN(m.SharpeRatio))
	assert.True(t, math.IsNaN(ComputeMetrics(nil, 252).SharpeRatio))
	assert.True(t, math.IsNaN(ComputeMetrics([]float64{0.01}, 252).SharpeRatio))
}

func TestOneSampleTTest(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	tt, ok := OneSampleTTest(x, 0.95)
	require.True(t, ok)

	sd := math.Sqrt(0.025)
	se := sd / math.Sqrt(5)
	assert.InDelta(t, 0.3/se, tt.T, 1e-9)
	assert.Equal(t, 4.0, tt.DF)
	// t = 4.2426, df = 4 -> p ≈ 0.01324
	assert.InDelta(t, 0.01324, tt.P, 1e-4)
	// t_{0.975,4} = 2.776445
	assert.InDelta(t, 0.3-2.776445*se, tt.CILow, 1e-5)
	assert.InDelta(t, 0.3+2.776445*se, tt.CIHigh, 1e-5)

	_, ok = OneSampleTTest([]float64{0, 0, 0}, 0.95)
	assert.False(t, ok)
	undefined, ok := OneSampleTTest([]float64{0.1}, 0.95)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(undefined.P))
}

func TestWelchTTest(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 4, 6, 8, 10}
	w := WelchTTest(a, b)

	va, vb := 5.0/3.0, 10.0
	se2 := va/4 + vb/5
	assert.InDelta(t, (2.5-6)/math.Sqrt(se2), w.T, 1e-12)
	wantDF := se2 * se2 / ((va/4)*(va/4)/3 + (vb/5)*(vb/5)/4)
	assert.InDelta(t, wantDF, w.DF, 1e-12)
	assert.Greater(t, w.P, 0.0)
	assert.Less(t, w.P, 0.1)

	assert.True(t, math.IsNaN(WelchTTest([]float64{1}, b).P))
	assert.True(t, math.IsNaN(WelchTTest([]float64{1, 1}, []float64{2, 2}).P))
}

func TestBenjaminiHochberg(t *testing.T) {
	q := BenjaminiHochberg([]float64{0.01, 0.04, 0.03, math.NaN(), 0.2})
	assert.InDelta(t, 0.04, q[0], 1e-12)
	assert.InDelta(t, 0.0533333333, q[1], 1e-9)
	assert.InDelta(t, 0.0533333333, q[2], 1e-9)
	assert.True(t, math.IsNaN(q[3]))
	assert.InDelta(t, 0.2, q[4], 1e-12)

	assert.Empty(t, BenjaminiHochberg(nil))
}

func TestWeeklyReturns(t *testing.T) {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, day(1, 5), WeekEnding(day(1, 1)))
	assert.Equal(t, day(1, 5), WeekEnding(day(1, 5)))
	assert.Equal(t, day(1, 12), WeekEnding(day(1, 6)))

	rows := []model.SectorDailyReturn{
		{Date: day(1, 4), Return: 0.01},
		{Date: day(1, 5), Return: 0.02},
		{Date: day(1, 8), Return: -0.01},
	}
	weeks, returns := WeeklyReturns(rows)
	require.Len(t, weeks, 2)
	assert.InDelta(t, 1.01*1.02-1, returns[0], 1e-12)
	assert.InDelta(t, -0.01, returns[1], 1e-12)
}

func dailyRows(sector model.Sector, returns ...float64) []model.SectorDailyReturn {
	out := make([]model.SectorDailyReturn, len(returns))
	for i, r := range returns {
		positions := 0
		if r != 0 {
			positions = 1
		}
		out[i] = model.SectorDailyReturn{
			Date:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Sector:    sector,
			Return:    r,
			Positions: positions,
		}
	}
	return out
}

func TestAnalyzeZeroTradeSectorIsReported(t *testing.T) {
	var daily []model.SectorDailyReturn
	for _, s := range model.AllSectors {
		if s == model.SectorTechnology {
			daily = append(daily, dailyRows(s, 0.01, -0.005, 0.02, 0.003)...)
			continue
		}
		daily = append(daily, dailyRows(s, 0, 0, 0, 0)...)
	}
	trades := []*model.TradeRecord{{Ticker: "AAPL", Sector: model.SectorTechnology}}

	report := Analyze(daily, trades, nil, DefaultConfig())
	require.Len(t, report.Sectors, len(model.AllSectors))
	require.NoError(t, VerifySectorTable(report.Sectors))
	assert.Len(t, report.Insufficient, len(model.AllSectors)-1)

	for _, st := range report.Sectors {
		if st.Sector == model.SectorTechnology {
			assert.Equal(t, model.StatusOK, st.Status)
			assert.Equal(t, 1, st.TradeCount)
			assert.Equal(t, 4, st.ActiveDays)
			assert.True(t, st.LowPower)
			assert.False(t, math.IsNaN(st.SharpeRatio))
			assert.False(t, math.IsNaN(st.PValueFDR))
			assert.Less(t, st.CILow, st.AnnualizedArith)
			assert.Greater(t, st.CIHigh, st.AnnualizedArith)
			continue
		}
		assert.Equal(t, model.StatusInsufficientData, st.Status, st.Sector)
		assert.True(t, math.IsNaN(st.SharpeRatio))
		assert.True(t, math.IsNaN(st.PValue))
		assert.True(t, math.IsNaN(st.CILow))
		assert.Equal(t, 0.0, st.AnnualizedReturn)
	}

	var insufficient *model.InsufficientDataError
	assert.True(t, errors.As(report.Insufficient[0], &insufficient))

	require.NotEmpty(t, report.Pairwise)
	for _, p := range report.Pairwise {
		assert.Equal(t, model.SectorTechnology, p.Best)
	}
	assert.Len(t, report.Weekly, len(model.AllSectors))

	report.MarkFitFailed("single class")
	assert.Equal(t, model.StatusFitFailed, report.Sectors[0].Status)
}

func TestVerifySectorTable(t *testing.T) {
	rows := []model.SectorStats{{Sector: model.SectorEnergy}}
	assert.Error(t, VerifySectorTable(rows))

	full := make([]model.SectorStats, 0, len(model.AllSectors)+1)
	for _, s := range model.AllSectors {
		full = append(full, model.SectorStats{Sector: s})
	}
	assert.NoError(t, VerifySectorTable(full))
	assert.Error(t, VerifySectorTable(append(full, model.SectorStats{Sector: model.SectorEnergy})))
}
