package strategy

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"news-sector-backtest/internal/model"
)

func sortRows(rows []model.TrainingRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Ticker < rows[j].Ticker
	})
}

// uniqueDates 升序去重的交易日
func uniqueDates(rows []model.TrainingRow) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, r := range rows {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// ChronologicalSplit 按交易日切分：前 floor(fraction * 日期数) 个日期为训练集，其余为测试集。
// 至少有两个日期时两侧各至少保留一个日期。训练集的最后日期严格早于测试集的第一个日期
func ChronologicalSplit(rows []model.TrainingRow, fraction float64) Split {
	sorted := make([]model.TrainingRow, len(rows))
	copy(sorted, rows)
	sortRows(sorted)

	dates := uniqueDates(sorted)
	nTrain := int(math.Floor(fraction * float64(len(dates))))
	if len(dates) >= 2 {
		nTrain = min(max(nTrain, 1), len(dates)-1)
	} else {
		nTrain = len(dates)
	}

	var split Split
	if nTrain == 0 {
		return split
	}
	split.LastTrain = dates[nTrain-1]
	split.TrainDates = nTrain
	split.TestDates = len(dates) - nTrain
	if split.TestDates > 0 {
		split.FirstTest = dates[nTrain]
	}

	for _, r := range sorted {
		if r.Date.After(split.LastTrain) {
			split.Test = append(split.Test, r)
		} else {
			split.Train = append(split.Train, r)
		}
	}
	return split
}

// BalanceBySector 把训练集每个板块无放回地降采样到最小板块的行数。
// 板块按名称排序后依次抽样，相同种子和输入得到相同结果
func BalanceBySector(train []model.TrainingRow, seed uint64) ([]model.TrainingRow, int) {
	bySector := make(map[model.Sector][]model.TrainingRow)
	for _, r := range train {
		bySector[r.Sector] = append(bySector[r.Sector], r)
	}
	if len(bySector) == 0 {
		return nil, 0
	}

	sectors := make([]model.Sector, 0, len(bySector))
	minRows := math.MaxInt
	for s, rows := range bySector {
		sectors = append(sectors, s)
		minRows = min(minRows, len(rows))
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i] < sectors[j] })

	rng := rand.New(rand.NewPCG(seed, 0))
	balanced := make([]model.TrainingRow, 0, minRows*len(sectors))
	for _, s := range sectors {
		rows := bySector[s]
		sortRows(rows)
		if len(rows) == minRows {
			balanced = append(balanced, rows...)
			continue
		}
		for _, i := range rng.Perm(len(rows))[:minRows] {
			balanced = append(balanced, rows[i])
		}
	}
	sortRows(balanced)
	return balanced, len(train) - len(balanced)
}
