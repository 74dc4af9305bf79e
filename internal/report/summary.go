package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
	"news-sector-backtest/internal/strategy"
)

// EngineSummary 训练/回测阶段的摘要
type EngineSummary struct {
	FinalStage       string             `toml:"final_stage"`
	TrainRows        int                `toml:"train_rows"`
	TestRows         int                `toml:"test_rows"`
	TrainDates       int                `toml:"train_dates"`
	TestDates        int                `toml:"test_dates"`
	LastTrainDate    string             `toml:"last_train_date"`
	FirstTestDate    string             `toml:"first_test_date"`
	BalancedOut      int                `toml:"balanced_out"`
	TestAccuracy     string             `toml:"test_accuracy"`
	Trades           int                `toml:"trades"`
	CumulativeReturn string             `toml:"cumulative_return"`
	SharpeRatio      string             `toml:"sharpe_ratio"`
	MaxDrawdown      string             `toml:"max_drawdown"`
	FitError         string             `toml:"fit_error,omitempty"`
	Coefficients     map[string]float64 `toml:"coefficients,omitempty"`
}

// RunSummary 一次运行的摘要：各阶段的行数、排除原因和警告
type RunSummary struct {
	RunID      string               `toml:"run_id"`
	Mode       string               `toml:"mode"`
	Seed       uint64               `toml:"seed"`
	StartedAt  time.Time            `toml:"started_at"`
	FinishedAt time.Time            `toml:"finished_at"`
	Stages     []*model.StageCounts `toml:"stages"`
	Engine     *EngineSummary       `toml:"engine,omitempty"`
	Warnings   []string             `toml:"warnings"`
}

// NewRunSummary 生成新的 run id
func NewRunSummary(mode model.RunMode, seed uint64) *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		Mode:      string(mode),
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}
}

// AddStage 记录一个阶段的计数
func (s *RunSummary) AddStage(counts *model.StageCounts) {
	s.Stages = append(s.Stages, counts)
}

// Warn 记录一条警告
func (s *RunSummary) Warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// SetEngine 汇总引擎结果，并把引擎的警告并入摘要
func (s *RunSummary) SetEngine(res *strategy.Result) {
	e := &EngineSummary{
		FinalStage:    string(res.FinalStage),
		TrainRows:     len(res.Split.Train),
		TestRows:      len(res.Split.Test),
		TrainDates:    res.Split.TrainDates,
		TestDates:     res.Split.TestDates,
		LastTrainDate: service.FormatDate(res.Split.LastTrain),
		FirstTestDate: service.FormatDate(res.Split.FirstTest),
		BalancedOut:   res.Split.Dropped,
		TestAccuracy:  service.FormatFloat(res.TestAccuracy),
		Trades:        len(res.Trades),
		Coefficients:  res.Coefficients,
	}
	if res.Report != nil {
		e.CumulativeReturn = service.FormatFloat(res.Report.Portfolio.TotalReturn)
		e.SharpeRatio = service.FormatFloat(res.Report.Portfolio.SharpeRatio)
		e.MaxDrawdown = service.FormatFloat(res.Report.Portfolio.MaxDrawdown)
	}
	if res.FitErr != nil {
		e.FitError = res.FitErr.Error()
	}
	s.Engine = e

	warnings := append([]string(nil), res.Warnings...)
	sort.Strings(warnings)
	s.Warnings = append(s.Warnings, warnings...)
}

// Write 以 TOML 格式写出 run_summary{_suffix}.toml
func (s *RunSummary) Write(w *Writer) (string, error) {
	s.FinishedAt = time.Now().UTC()
	data, err := toml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode run summary: %w", err)
	}

	path := w.Path(RunSummaryFile, tomlExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write run summary: %w", err)
	}
	return path, nil
}

// ReadRunSummary 读回运行摘要
func ReadRunSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s RunSummary
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode run summary %s: %w", path, err)
	}
	return &s, nil
}
