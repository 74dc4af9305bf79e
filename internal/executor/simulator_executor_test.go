package executor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
)

func d(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func newSim() *SimulatorExecutor {
	return NewSimulatorExecutor(&SimulatorConfig{
		CostBps:        10,
		VolWindow:      2,
		PeriodsPerYear: 252,
		Sectors:        []model.Sector{model.SectorEnergy, model.SectorTechnology},
	}, zap.NewNop().Sugar())
}

func long(ticker string, sector model.Sector, day int, ret float64) model.Signal {
	return model.Signal{Ticker: ticker, Sector: sector, Date: d(day), Position: model.DirLong, NextDayReturn: ret}
}

func flat(ticker string, sector model.Sector, day int, ret float64) model.Signal {
	return model.Signal{Ticker: ticker, Sector: sector, Date: d(day), Position: model.DirFlat, NextDayReturn: ret}
}

func run(t *testing.T, sim *SimulatorExecutor, days [][]model.Signal) {
	t.Helper()
	ctx := context.Background()
	for _, signals := range days {
		for _, s := range signals {
			require.NoError(t, sim.ExecuteSignal(ctx, s))
		}
		require.NoError(t, sim.SettleDay(ctx, signals[0].Date))
	}
	require.NoError(t, sim.Finish(ctx))
}

// close=[100,101,99]：D1 预测上涨，D2 空仓
func TestCostChargedOnEntryDay(t *testing.T) {
	sim := newSim()
	run(t, sim, [][]model.Signal{
		{long("X", model.SectorTechnology, 1, 0.01)},
		{flat("X", model.SectorTechnology, 2, 99.0/101.0-1)},
	})

	curve := sim.EquityCurve()
	require.Len(t, curve, 2)
	assert.InDelta(t, 0.009, curve[0].DailyReturn, 1e-12)
	assert.Equal(t, 0.0, curve[1].DailyReturn)
	assert.InDelta(t, 0.009, curve[1].CumulativeReturn, 1e-12)
	assert.Equal(t, 1, curve[0].PositionsHeld)
	assert.Equal(t, 0, curve[1].PositionsHeld)

	trades, err := sim.GetTradeHistory()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, d(1), trades[0].EntryDate)
	assert.Equal(t, d(1), trades[0].ExitDate)
	assert.False(t, trades[0].Open)
}

func TestMultiDayHoldPaysCostOnce(t *testing.T) {
	sim := newSim()
	run(t, sim, [][]model.Signal{
		{long("X", model.SectorTechnology, 1, 0.01)},
		{long("X", model.SectorTechnology, 2, 0.02)},
		{long("X", model.SectorTechnology, 3, -0.01)},
	})

	curve := sim.EquityCurve()
	require.Len(t, curve, 3)
	assert.InDelta(t, 0.009, curve[0].DailyReturn, 1e-12)
	assert.InDelta(t, 0.02, curve[1].DailyReturn, 1e-12)
	assert.InDelta(t, -0.01, curve[2].DailyReturn, 1e-12)

	// cumulative_return = prod(1 + r) - 1
	want := 1.0
	for i, p := range curve {
		want *= 1 + p.DailyReturn
		assert.InDelta(t, want-1, curve[i].CumulativeReturn, 1e-12)
	}

	trades, _ := sim.GetTradeHistory()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Open, "position still held at the end of the test window")
	assert.Equal(t, 3, trades[0].DaysHeld)
	assert.InDelta(t, 0.001, trades[0].Cost, 1e-15)
	assert.InDelta(t, 1.01*1.02*0.99-1, trades[0].GrossReturn, 1e-12)

	assert.True(t, math.IsNaN(curve[0].RollingVol21))
	assert.False(t, math.IsNaN(curve[2].RollingVol21))
	assert.InDelta(t, 1.009*1.02, sim.GetMaxEquity(), 1e-12)
}

func TestPortfolioAndSectorAverages(t *testing.T) {
	sim := newSim()
	run(t, sim, [][]model.Signal{
		{
			long("A", model.SectorTechnology, 1, 0.02),
			long("B", model.SectorTechnology, 1, 0.04),
			long("C", model.SectorEnergy, 1, -0.01),
			flat("D", model.SectorEnergy, 1, 0.5),
		},
		{
			flat("A", model.SectorTechnology, 2, 0.01),
			flat("B", model.SectorTechnology, 2, 0.01),
			flat("C", model.SectorEnergy, 2, 0.01),
		},
	})

	curve := sim.EquityCurve()
	assert.InDelta(t, (0.019+0.039-0.011)/3, curve[0].DailyReturn, 1e-12)
	assert.Equal(t, 3, curve[0].PositionsHeld)

	daily := sim.SectorDailyReturns()
	require.Len(t, daily, 4, "one row per date per configured sector")
	byKey := make(map[string]model.SectorDailyReturn)
	for _, r := range daily {
		byKey[r.Date.Format("0102")+string(r.Sector)] = r
	}
	assert.InDelta(t, -0.011, byKey[d(1).Format("0102")+string(model.SectorEnergy)].Return, 1e-12)
	assert.InDelta(t, 0.029, byKey[d(1).Format("0102")+string(model.SectorTechnology)].Return, 1e-12)
	assert.Equal(t, 2, byKey[d(1).Format("0102")+string(model.SectorTechnology)].Positions)
	assert.Equal(t, 0.0, byKey[d(2).Format("0102")+string(model.SectorEnergy)].Return)
}

func TestMissingSignalClosesPosition(t *testing.T) {
	sim := newSim()
	run(t, sim, [][]model.Signal{
		{long("X", model.SectorTechnology, 1, 0.01), long("Y", model.SectorEnergy, 1, 0.01)},
		{long("Y", model.SectorEnergy, 2, 0.01)},
		{long("X", model.SectorTechnology, 3, 0.01), long("Y", model.SectorEnergy, 3, 0.01)},
	})

	trades, _ := sim.GetTradeHistory()
	require.Len(t, trades, 3)
	assert.Equal(t, "X", trades[0].Ticker)
	assert.Equal(t, 1, trades[0].DaysHeld)

	// X 重新开仓，再次扣除成本
	curve := sim.EquityCurve()
	assert.InDelta(t, (0.009+0.01)/2, curve[2].DailyReturn, 1e-12)
}

func TestOutOfOrderSignalsRejected(t *testing.T) {
	sim := newSim()
	ctx := context.Background()
	require.NoError(t, sim.ExecuteSignal(ctx, long("X", model.SectorTechnology, 2, 0.01)))
	assert.Error(t, sim.ExecuteSignal(ctx, long("Y", model.SectorTechnology, 3, 0.01)))
	assert.Error(t, sim.ExecuteSignal(ctx, long("X", model.SectorTechnology, 2, 0.01)))
	require.NoError(t, sim.SettleDay(ctx, d(2)))
	assert.Error(t, sim.ExecuteSignal(ctx, long("X", model.SectorTechnology, 1, 0.01)))
	assert.Error(t, sim.SettleDay(ctx, d(2)))

	pos, err := sim.GetCurrentPosition(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, model.DirLong, pos.Direction)
	pos, _ = sim.GetCurrentPosition(ctx, "Z")
	assert.Equal(t, model.DirFlat, pos.Direction)
}
