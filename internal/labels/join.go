package labels

import (
	"time"

	"news-sector-backtest/internal/model"
)

type rowKey struct {
	ticker string
	date   time.Time
}

// Join 特征与标签按 (ticker, 交易日) 内连接，输出训练样本。
// 计数单位是两侧键的并集，任一侧没有匹配的键都会计入排除原因
func Join(features []model.FeatureRow, labelRows []model.LabelRow) ([]model.TrainingRow, *model.StageCounts) {
	counts := model.NewStageCounts("join")
	counts.In = len(features)

	byKey := make(map[rowKey]model.LabelRow, len(labelRows))
	for _, l := range labelRows {
		byKey[rowKey{l.Ticker, l.Date}] = l
	}

	matched := make(map[rowKey]struct{}, len(labelRows))
	rows := make([]model.TrainingRow, 0, len(features))
	for _, f := range features {
		key := rowKey{f.Ticker, f.Date}
		l, ok := byKey[key]
		if !ok {
			counts.Exclude(model.ReasonNoLabel)
			continue
		}
		matched[key] = struct{}{}
		rows = append(rows, model.TrainingRow{
			FeatureRow:    f,
			NextDayReturn: l.NextDayReturn,
			Label:         l.Label,
		})
	}
	if n := len(labelRows) - len(matched); n > 0 {
		counts.Excluded[model.ReasonNoFeature] += n
		counts.In += n
	}
	counts.Out = len(rows)
	return rows, counts
}
