package store

import (
	"fmt"
	"strconv"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
)

// 中间产物的文件名
const (
	FeaturesFile     = "features.csv"
	LabelsFile       = "labels.csv"
	TrainingDataFile = "training_data.csv"
)

var featureHeader = []string{
	"date", "ticker", "sector", "headline_count", "mean_sentiment", "max_sentiment", "sentiment_sma5",
}

var trainingHeader = append(append([]string{}, featureHeader...), "next_day_return", "label")

func featureFields(f model.FeatureRow) []string {
	return []string{
		service.FormatDate(f.Date),
		f.Ticker,
		string(f.Sector),
		strconv.Itoa(f.HeadlineCount),
		service.FormatFloat(f.MeanSentiment),
		service.FormatFloat(f.MaxSentiment),
		service.FormatFloat(f.SentimentSMA5),
	}
}

// WriteFeatures 写出 features.csv
func WriteFeatures(path string, rows []model.FeatureRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, featureFields(r))
	}
	return WriteTable(path, featureHeader, out)
}

// WriteLabels 写出 labels.csv
func WriteLabels(path string, rows []model.LabelRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			service.FormatDate(r.Date),
			r.Ticker,
			service.FormatFloat(r.NextDayReturn),
			string(r.Label),
		})
	}
	return WriteTable(path, []string{"date", "ticker", "next_day_return", "label"}, out)
}

// WriteTraining 写出 training_data.csv
func WriteTraining(path string, rows []model.TrainingRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		fields := featureFields(r.FeatureRow)
		fields = append(fields, service.FormatFloat(r.NextDayReturn), string(r.Label))
		out = append(out, fields)
	}
	return WriteTable(path, trainingHeader, out)
}

// LoadTraining 读取 training_data.csv。这是回测阶段的输入，
// 任何一行不合法都视为产物损坏，直接返回错误
func LoadTraining(path string) ([]model.TrainingRow, error) {
	t, err := readTable(path, trainingHeader...)
	if err != nil {
		return nil, err
	}

	rows := make([]model.TrainingRow, 0, len(t.rows))
	for i, row := range t.rows {
		r, err := parseTrainingRow(t, row)
		if err != nil {
			return nil, t.rowError(i, "bad training row", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func parseTrainingRow(t *table, row []string) (model.TrainingRow, error) {
	var r model.TrainingRow
	date, err := service.ParseDate(t.get(row, "date"))
	if err != nil {
		return r, err
	}
	r.Date = date
	r.Ticker = t.get(row, "ticker")
	r.Sector = model.Sector(t.get(row, "sector"))
	if !model.IsKnownSector(r.Sector) {
		return r, fmt.Errorf("unknown sector %q", r.Sector)
	}
	if r.HeadlineCount, err = strconv.Atoi(t.get(row, "headline_count")); err != nil {
		return r, err
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{"mean_sentiment", &r.MeanSentiment},
		{"max_sentiment", &r.MaxSentiment},
		{"sentiment_sma5", &r.SentimentSMA5},
		{"next_day_return", &r.NextDayReturn},
	}
	for _, f := range floats {
		if *f.dst, err = service.ParseFloatOrNaN(t.get(row, f.col)); err != nil {
			return r, fmt.Errorf("column %s: %w", f.col, err)
		}
	}

	switch label := model.Label(t.get(row, "label")); label {
	case model.LabelUp, model.LabelDown:
		r.Label = label
	default:
		return r, fmt.Errorf("unknown label %q", label)
	}
	return r, nil
}
