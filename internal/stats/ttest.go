package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTest 单样本 t 检验 (H0: mean == 0) 的结果。CI 是均值的置信区间
type TTest struct {
	N      int
	Mean   float64
	StdDev float64
	T      float64
	DF     float64
	P      float64
	CILow  float64
	CIHigh float64
}

// OneSampleTTest 双侧单样本 t 检验，df = n - 1。
// n < 2 或标准差为 0 时 T/P/CI 为 NaN，ok 为 false
func OneSampleTTest(x []float64, confidence float64) (TTest, bool) {
	nan := math.NaN()
	res := TTest{N: len(x), Mean: nan, StdDev: nan, T: nan, DF: nan, P: nan, CILow: nan, CIHigh: nan}
	if len(x) == 0 {
		return res, false
	}
	res.Mean = stat.Mean(x, nil)
	if len(x) < 2 {
		return res, false
	}
	res.StdDev = stat.StdDev(x, nil)
	if res.StdDev == 0 {
		return res, false
	}

	n := float64(len(x))
	se := res.StdDev / math.Sqrt(n)
	res.DF = n - 1
	res.T = res.Mean / se

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	res.P = math.Min(1, 2*dist.Survival(math.Abs(res.T)))
	q := dist.Quantile(1 - (1-confidence)/2)
	res.CILow = res.Mean - q*se
	res.CIHigh = res.Mean + q*se
	return res, true
}

// WelchResult 两样本 Welch t 检验 (不假设方差相等)
type WelchResult struct {
	T  float64
	DF float64 // Welch–Satterthwaite 自由度
	P  float64
}

// WelchTTest H0: mean(a) == mean(b)。样本不足或两侧方差都为 0 时返回 NaN
func WelchTTest(a, b []float64) WelchResult {
	nan := WelchResult{T: math.NaN(), DF: math.NaN(), P: math.NaN()}
	if len(a) < 2 || len(b) < 2 {
		return nan
	}
	na, nb := float64(len(a)), float64(len(b))
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	sa, sb := va/na, vb/nb
	if sa+sb == 0 {
		return nan
	}

	t := (ma - mb) / math.Sqrt(sa+sb)
	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return WelchResult{T: t, DF: df, P: math.Min(1, 2*dist.Survival(math.Abs(t)))}
}

// BenjaminiHochberg FDR 校正。NaN 的 p 值不参与排序，结果仍为 NaN
func BenjaminiHochberg(p []float64) []float64 {
	out := make([]float64, len(p))
	idx := make([]int, 0, len(p))
	for i, v := range p {
		out[i] = math.NaN()
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	m := float64(len(idx))
	if m == 0 {
		return out
	}
	sort.SliceStable(idx, func(i, j int) bool { return p[idx[i]] < p[idx[j]] })

	// 从最大的 p 开始向前取累计最小值，保证单调
	running := 1.0
	for k := len(idx) - 1; k >= 0; k-- {
		i := idx[k]
		q := p[i] * m / float64(k+1)
		running = math.Min(running, q)
		out[i] = math.Max(0, math.Min(1, running))
	}
	return out
}
