package stats

import (
	"sort"
	"time"

	"news-sector-backtest/internal/model"
)

// WeekEnding 所在周的周五 (W-FRI)。周六、周日归入下一个周五
func WeekEnding(t time.Time) time.Time {
	offset := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC)
}

// SeriesBySector 把板块日收益拆成按日期升序的序列
func SeriesBySector(daily []model.SectorDailyReturn) map[model.Sector][]model.SectorDailyReturn {
	out := make(map[model.Sector][]model.SectorDailyReturn)
	for _, r := range daily {
		out[r.Sector] = append(out[r.Sector], r)
	}
	for _, rows := range out {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	return out
}

// WeeklyReturns 日收益按周复利：(1+r1)(1+r2)... - 1，按周五日期升序
func WeeklyReturns(rows []model.SectorDailyReturn) ([]time.Time, []float64) {
	var (
		weeks   []time.Time
		returns []float64
	)
	for _, r := range rows {
		week := WeekEnding(r.Date)
		if len(weeks) == 0 || !weeks[len(weeks)-1].Equal(week) {
			weeks = append(weeks, week)
			returns = append(returns, 0)
		}
		last := len(returns) - 1
		returns[last] = (1+returns[last])*(1+r.Return) - 1
	}
	return weeks, returns
}

func returnsOf(rows []model.SectorDailyReturn) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Return
	}
	return out
}
