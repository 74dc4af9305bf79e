package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"news-sector-backtest/internal/model"
)

// Config 统计参数
type Config struct {
	Annualization float64 // 日频年化系数
	WeeksPerYear  float64
	MinActiveDays int
	Confidence    float64
}

// DefaultConfig 252 个交易日、52 周、95% 置信区间
func DefaultConfig() Config {
	return Config{
		Annualization: model.TradingDaysPerYear,
		WeeksPerYear:  model.TradingWeeksPerYear,
		MinActiveDays: model.DefaultMinActiveDays,
		Confidence:    0.95,
	}
}

// Frequency 检验使用的收益频率
type Frequency string

const (
	FreqDaily  Frequency = "daily"
	FreqWeekly Frequency = "weekly"
)

// SectorTTest 板块收益 vs 0 的单样本 t 检验
type SectorTTest struct {
	TTest
	Frequency Frequency
	Sector    model.Sector
	PFDR      float64
	AnnMean   float64
	AnnCILow  float64
	AnnCIHigh float64
}

// PairwiseTest 收益均值最高的板块与其余板块的 Welch 检验
type PairwiseTest struct {
	WelchResult
	Frequency    Frequency
	Best         model.Sector
	Other        model.Sector
	PFDR         float64
	MeanBest     float64
	MeanOther    float64
	NBest        int
	NOther       int
	AnnMeanBest  float64
	AnnMeanOther float64
}

// Report 一次回测的全部统计结果
type Report struct {
	Sectors      []model.SectorStats // 按 model.AllSectors 顺序，每个板块一行
	Weekly       []SectorTTest
	Pairwise     []PairwiseTest
	Portfolio    Metrics
	Insufficient []error // *model.InsufficientDataError
}

// Analyze 计算板块统计、周度 t 检验和两两比较。
// 没有任何交易的板块不会中断计算：状态记为 insufficient_data，夏普/CI/p 值为 NaN
func Analyze(daily []model.SectorDailyReturn, trades []*model.TradeRecord, equity []model.EquityPoint, cfg Config) *Report {
	series := SeriesBySector(daily)
	tradeCount := make(map[model.Sector]int)
	for _, t := range trades {
		tradeCount[t.Sector]++
	}

	report := &Report{}
	portfolio := make([]float64, len(equity))
	for i, p := range equity {
		portfolio[i] = p.DailyReturn
	}
	report.Portfolio = ComputeMetrics(portfolio, cfg.Annualization)

	pvals := make([]float64, 0, len(model.AllSectors))
	for _, sector := range model.AllSectors {
		st, err := sectorStats(sector, series[sector], tradeCount[sector], cfg)
		if err != nil {
			report.Insufficient = append(report.Insufficient, err)
		}
		report.Sectors = append(report.Sectors, st)
		pvals = append(pvals, st.PValue)
	}
	for i, q := range BenjaminiHochberg(pvals) {
		report.Sectors[i].PValueFDR = q
	}

	report.Weekly = weeklyTests(series, cfg)
	report.Pairwise = append(
		pairwiseTests(FreqDaily, dailyReturns(series), cfg.Annualization),
		pairwiseTests(FreqWeekly, weeklySeries(series), cfg.WeeksPerYear)...,
	)
	return report
}

func sectorStats(sector model.Sector, rows []model.SectorDailyReturn, trades int, cfg Config) (model.SectorStats, error) {
	returns := returnsOf(rows)
	m := ComputeMetrics(returns, cfg.Annualization)

	st := model.SectorStats{
		Sector:           sector,
		AnnualizedReturn: m.AnnualizedGeom,
		AnnualizedArith:  m.AnnualizedArith,
		AnnualizedVol:    m.AnnualizedVol,
		SharpeRatio:      m.SharpeRatio,
		MaxDrawdown:      m.MaxDrawdown,
		Days:             m.Days,
		ActiveDays:       m.ActiveDays,
		TradeCount:       trades,
		Status:           model.StatusOK,
	}

	tt, ok := OneSampleTTest(returns, cfg.Confidence)
	st.TStat, st.PValue = tt.T, tt.P
	st.CILow, st.CIHigh = cfg.Annualization*tt.CILow, cfg.Annualization*tt.CIHigh

	if st.ActiveDays < cfg.MinActiveDays {
		st.LowPower = true
		st.Note = fmt.Sprintf("low power: %d active days < %d", st.ActiveDays, cfg.MinActiveDays)
	}

	if trades == 0 {
		nan := math.NaN()
		st.SharpeRatio, st.TStat, st.PValue, st.CILow, st.CIHigh = nan, nan, nan, nan, nan
		st.Status = model.StatusInsufficientData
		st.Note = "no trades in test window"
		return st, &model.InsufficientDataError{Sector: string(sector), Metric: "sharpe_ratio/t_stat", N: 0}
	}
	if !ok {
		st.Note = joinNote(st.Note, "t-test undefined (n < 2 or zero variance)")
	}
	return st, nil
}

func joinNote(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func sortedSectors(series map[model.Sector][]float64) []model.Sector {
	out := make([]model.Sector, 0, len(series))
	for s := range series {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dailyReturns(series map[model.Sector][]model.SectorDailyReturn) map[model.Sector][]float64 {
	out := make(map[model.Sector][]float64, len(series))
	for s, rows := range series {
		out[s] = returnsOf(rows)
	}
	return out
}

func weeklySeries(series map[model.Sector][]model.SectorDailyReturn) map[model.Sector][]float64 {
	out := make(map[model.Sector][]float64, len(series))
	for s, rows := range series {
		_, out[s] = WeeklyReturns(rows)
	}
	return out
}

// weeklyTests 周收益 vs 0 的 t 检验，年化系数 52
func weeklyTests(series map[model.Sector][]model.SectorDailyReturn, cfg Config) []SectorTTest {
	weekly := weeklySeries(series)
	var out []SectorTTest
	var pvals []float64
	for _, s := range sortedSectors(weekly) {
		tt, _ := OneSampleTTest(weekly[s], cfg.Confidence)
		out = append(out, SectorTTest{
			Frequency: FreqWeekly,
			Sector:    s,
			TTest:     tt,
			AnnMean:   tt.Mean * cfg.WeeksPerYear,
			AnnCILow:  tt.CILow * cfg.WeeksPerYear,
			AnnCIHigh: tt.CIHigh * cfg.WeeksPerYear,
		})
		pvals = append(pvals, tt.P)
	}
	for i, q := range BenjaminiHochberg(pvals) {
		out[i].PFDR = q
	}
	return out
}

// pairwiseTests 均值最高的板块 vs 其余每个板块
func pairwiseTests(freq Frequency, series map[model.Sector][]float64, annualization float64) []PairwiseTest {
	sectors := sortedSectors(series)
	if len(sectors) < 2 {
		return nil
	}

	means := make(map[model.Sector]float64, len(sectors))
	for _, s := range sectors {
		means[s] = mean(series[s])
	}
	best := sectors[0]
	for _, s := range sectors[1:] {
		if means[s] > means[best] {
			best = s
		}
	}

	var out []PairwiseTest
	var pvals []float64
	for _, s := range sectors {
		if s == best {
			continue
		}
		w := WelchTTest(series[best], series[s])
		out = append(out, PairwiseTest{
			Frequency:    freq,
			Best:         best,
			Other:        s,
			WelchResult:  w,
			MeanBest:     means[best],
			MeanOther:    means[s],
			NBest:        len(series[best]),
			NOther:       len(series[s]),
			AnnMeanBest:  means[best] * annualization,
			AnnMeanOther: means[s] * annualization,
		})
		pvals = append(pvals, w.P)
	}
	for i, q := range BenjaminiHochberg(pvals) {
		out[i].PFDR = q
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// MarkFitFailed 分类器训练失败时，所有板块的状态改为 fit_failed
func (r *Report) MarkFitFailed(reason string) {
	for i := range r.Sectors {
		r.Sectors[i].Status = model.StatusFitFailed
		r.Sectors[i].Note = joinNote("classifier not fitted: "+reason, r.Sectors[i].Note)
	}
}

// VerifySectorTable 检查板块统计表：每个已知板块恰好一行
func VerifySectorTable(rows []model.SectorStats) error {
	seen := make(map[model.Sector]int, len(rows))
	for _, r := range rows {
		if !model.IsKnownSector(r.Sector) {
			return fmt.Errorf("sector table: unknown sector %q", r.Sector)
		}
		seen[r.Sector]++
	}
	for _, s := range model.AllSectors {
		switch seen[s] {
		case 1:
		case 0:
			return fmt.Errorf("sector table: missing sector %q", s)
		default:
			return fmt.Errorf("sector table: sector %q appears %d times", s, seen[s])
		}
	}
	return nil
}
