package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics 一条日收益序列的绩效指标。无定义的指标为 NaN
type Metrics struct {
	Days            int
	ActiveDays      int // 收益非零的天数
	Mean            float64
	StdDev          float64 // 样本标准差 (ddof=1)
	TotalReturn     float64
	AnnualizedArith float64 // mean * periodsPerYear
	AnnualizedGeom  float64 // (1 + total)^(periodsPerYear / n) - 1
	AnnualizedVol   float64
	SharpeRatio     float64 // mean / sd * sqrt(periodsPerYear)，sd == 0 时无定义
	MaxDrawdown     float64
}

// ComputeMetrics 计算年化收益、波动率、夏普比率和最大回撤
func ComputeMetrics(returns []float64, periodsPerYear float64) Metrics {
	n := len(returns)
	m := Metrics{Days: n}
	if n == 0 {
		nan := math.NaN()
		m.Mean, m.StdDev, m.TotalReturn = nan, nan, nan
		m.AnnualizedArith, m.AnnualizedGeom, m.AnnualizedVol = nan, nan, nan
		m.SharpeRatio, m.MaxDrawdown = nan, nan
		return m
	}

	for _, r := range returns {
		if r != 0 {
			m.ActiveDays++
		}
	}

	m.Mean = stat.Mean(returns, nil)
	m.StdDev = math.NaN()
	if n >= 2 {
		m.StdDev = stat.StdDev(returns, nil)
	}

	equity := 1.0
	peak := 1.0
	m.MaxDrawdown = 0
	for _, r := range returns {
		equity *= 1 + r
		peak = math.Max(peak, equity)
		m.MaxDrawdown = math.Min(m.MaxDrawdown, equity/peak-1)
	}
	m.TotalReturn = equity - 1

	m.AnnualizedArith = m.Mean * periodsPerYear
	m.AnnualizedGeom = math.Pow(1+m.TotalReturn, periodsPerYear/float64(n)) - 1
	m.AnnualizedVol = m.StdDev * math.Sqrt(periodsPerYear)
	m.SharpeRatio = Sharpe(m.Mean, m.StdDev, periodsPerYear)
	return m
}

// Sharpe 年化夏普比率 (无风险利率为 0)；标准差为 0 或无定义时返回 NaN
func Sharpe(mean, sd, periodsPerYear float64) float64 {
	if math.IsNaN(sd) || sd == 0 {
		return math.NaN()
	}
	return mean / sd * math.Sqrt(periodsPerYear)
}
