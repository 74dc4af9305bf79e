package report

import (
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
	"news-sector-backtest/internal/stats"
	"news-sector-backtest/internal/store"
	"news-sector-backtest/internal/strategy"
)

// 输出文件名 (不含模式后缀)
const (
	SignalsFile     = "signals"
	TradesFile      = "trades"
	EquityCurveFile = "equity_curve"
	SectorDailyFile = "sector_daily_returns"
	SectorStatsFile = "sector_stats"
	WeeklyTTestFile = "sector_ttest_weekly"
	PairwiseFile    = "sector_pairwise"
	RunSummaryFile  = "run_summary"

	csvExt  = ".csv"
	tomlExt = ".toml"
)

// Writer 把一次回测的结果写到输出目录，文件名带运行模式后缀
type Writer struct {
	dir    string
	mode   model.RunMode
	logger *zap.Logger
}

func NewWriter(dir string, mode model.RunMode, logger *zap.Logger) *Writer {
	return &Writer{dir: dir, mode: mode, logger: logger}
}

// Path 某个输出文件的完整路径，例如 sector_stats_balanced.csv
func (w *Writer) Path(name, ext string) string {
	return filepath.Join(w.dir, name+w.mode.Suffix()+ext)
}

// WriteAll 写出全部 CSV 报表。写之前检查板块统计表的完整性
func (w *Writer) WriteAll(res *strategy.Result) error {
	if res.Report == nil {
		return fmt.Errorf("report: result has no aggregated statistics")
	}
	if err := stats.VerifySectorTable(res.Report.Sectors); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{SignalsFile, func() error { return w.WriteSignals(res.Signals) }},
		{TradesFile, func() error { return w.WriteTrades(res.Trades) }},
		{EquityCurveFile, func() error { return w.WriteEquity(res.Equity) }},
		{SectorDailyFile, func() error { return w.WriteSectorDaily(res.SectorDaily) }},
		{SectorStatsFile, func() error { return w.WriteSectorStats(res.Report.Sectors) }},
		{WeeklyTTestFile, func() error { return w.WriteWeekly(res.Report.Weekly) }},
		{PairwiseFile, func() error { return w.WritePairwise(res.Report.Pairwise) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("write %s: %w", step.name, err)
		}
		w.logger.Info("Report written", zap.String("file", w.Path(step.name, csvExt)))
	}
	return nil
}

// WriteSignals 每个测试集 (ticker, 交易日) 一行
func (w *Writer) WriteSignals(signals []model.Signal) error {
	header := []string{"date", "ticker", "sector", "prob_up", "predicted_label", "position", "action", "next_day_return"}
	rows := make([][]string, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, []string{
			service.FormatDate(s.Date),
			s.Ticker,
			string(s.Sector),
			service.FormatFloat(s.ProbabilityUp),
			string(s.PredictedLabel),
			s.Position.String(),
			string(s.Action),
			service.FormatFloat(s.NextDayReturn),
		})
	}
	return store.WriteTable(w.Path(SignalsFile, csvExt), header, rows)
}

// WriteTrades 每次完整的开仓-平仓一行
func (w *Writer) WriteTrades(trades []*model.TradeRecord) error {
	header := []string{"ticker", "sector", "entry_date", "exit_date", "days_held", "gross_return", "cost", "open_at_end"}
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			t.Ticker,
			string(t.Sector),
			service.FormatDate(t.EntryDate),
			service.FormatDate(t.ExitDate),
			strconv.Itoa(t.DaysHeld),
			service.FormatFloat(t.GrossReturn),
			service.FormatFloat(t.Cost),
			strconv.FormatBool(t.Open),
		})
	}
	return store.WriteTable(w.Path(TradesFile, csvExt), header, rows)
}

// WriteEquity 组合每日收益曲线
func (w *Writer) WriteEquity(points []model.EquityPoint) error {
	header := []string{"date", "daily_return", "cumulative_return", "positions_held", "rolling_vol_21d"}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			service.FormatDate(p.Date),
			service.FormatFloat(p.DailyReturn),
			service.FormatFloat(p.CumulativeReturn),
			strconv.Itoa(p.PositionsHeld),
			service.FormatFloat(p.RollingVol21),
		})
	}
	return store.WriteTable(w.Path(EquityCurveFile, csvExt), header, rows)
}

// WriteSectorDaily 每个交易日、每个板块一行
func (w *Writer) WriteSectorDaily(daily []model.SectorDailyReturn) error {
	header := []string{"date", "sector", "return", "positions"}
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{
			service.FormatDate(d.Date),
			string(d.Sector),
			service.FormatFloat(d.Return),
			strconv.Itoa(d.Positions),
		})
	}
	return store.WriteTable(w.Path(SectorDailyFile, csvExt), header, rows)
}

// WriteSectorStats 板块统计表，无定义的数值写成 "undefined"
func (w *Writer) WriteSectorStats(sectors []model.SectorStats) error {
	header := []string{
		"sector", "annualized_return", "annualized_return_arith", "ci_low", "ci_high",
		"annualized_vol", "sharpe_ratio", "max_drawdown", "t_stat", "p_value", "p_value_fdr",
		"days", "active_days", "trade_count", "low_power", "status", "note",
	}
	rows := make([][]string, 0, len(sectors))
	for _, s := range sectors {
		rows = append(rows, []string{
			string(s.Sector),
			service.FormatFloat(s.AnnualizedReturn),
			service.FormatFloat(s.AnnualizedArith),
			service.FormatFloat(s.CILow),
			service.FormatFloat(s.CIHigh),
			service.FormatFloat(s.AnnualizedVol),
			service.FormatFloat(s.SharpeRatio),
			service.FormatFloat(s.MaxDrawdown),
			service.FormatFloat(s.TStat),
			service.FormatFloat(s.PValue),
			service.FormatFloat(s.PValueFDR),
			strconv.Itoa(s.Days),
			strconv.Itoa(s.ActiveDays),
			strconv.Itoa(s.TradeCount),
			strconv.FormatBool(s.LowPower),
			string(s.Status),
			s.Note,
		})
	}
	return store.WriteTable(w.Path(SectorStatsFile, csvExt), header, rows)
}

// WriteWeekly 周收益 t 检验
func (w *Writer) WriteWeekly(tests []stats.SectorTTest) error {
	header := []string{
		"sector", "n_weeks", "mean_weekly", "sd_weekly", "t_stat", "p_value", "p_value_fdr",
		"ann_mean", "ann_ci_low", "ann_ci_high",
	}
	rows := make([][]string, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, []string{
			string(t.Sector),
			strconv.Itoa(t.N),
			service.FormatFloat(t.Mean),
			service.FormatFloat(t.StdDev),
			service.FormatFloat(t.T),
			service.FormatFloat(t.P),
			service.FormatFloat(t.PFDR),
			service.FormatFloat(t.AnnMean),
			service.FormatFloat(t.AnnCILow),
			service.FormatFloat(t.AnnCIHigh),
		})
	}
	return store.WriteTable(w.Path(WeeklyTTestFile, csvExt), header, rows)
}

// WritePairwise 最佳板块 vs 其余板块，日频和周频各一组
func (w *Writer) WritePairwise(tests []stats.PairwiseTest) error {
	header := []string{
		"frequency", "best_sector", "other_sector", "mean_best", "mean_other", "ann_mean_best", "ann_mean_other",
		"n_best", "n_other", "t_stat", "df", "p_value", "p_value_fdr",
	}
	rows := make([][]string, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, []string{
			string(t.Frequency),
			string(t.Best),
			string(t.Other),
			service.FormatFloat(t.MeanBest),
			service.FormatFloat(t.MeanOther),
			service.FormatFloat(t.AnnMeanBest),
			service.FormatFloat(t.AnnMeanOther),
			strconv.Itoa(t.NBest),
			strconv.Itoa(t.NOther),
			service.FormatFloat(t.T),
			service.FormatFloat(t.DF),
			service.FormatFloat(t.P),
			service.FormatFloat(t.PFDR),
		})
	}
	return store.WriteTable(w.Path(PairwiseFile, csvExt), header, rows)
}
