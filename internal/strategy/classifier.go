package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"news-sector-backtest/internal/model"
)

// 分类器使用的数值特征列
var numericColumns = []string{"mean_sentiment", "max_sentiment", "headline_count"}

// FeatureEncoder 数值列 + 板块 one-hot (去掉第一个板块)，再做标准化
type FeatureEncoder struct {
	Columns []string
	sectors []model.Sector // 按名称排序，sectors[0] 为基准类别
	mean    []float64
	scale   []float64
}

// NewFeatureEncoder 板块取训练集和测试集的并集，两侧编码完全一致
func NewFeatureEncoder(train, test []model.TrainingRow) *FeatureEncoder {
	seen := make(map[model.Sector]struct{})
	for _, rows := range [][]model.TrainingRow{train, test} {
		for _, r := range rows {
			seen[r.Sector] = struct{}{}
		}
	}
	sectors := make([]model.Sector, 0, len(seen))
	for s := range seen {
		sectors = append(sectors, s)
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i] < sectors[j] })

	e := &FeatureEncoder{sectors: sectors}
	e.Columns = append(e.Columns, numericColumns...)
	for i, s := range sectors {
		if i == 0 {
			continue
		}
		e.Columns = append(e.Columns, "sector_"+string(s))
	}
	return e
}

func (e *FeatureEncoder) raw(r model.TrainingRow) []float64 {
	x := make([]float64, len(e.Columns))
	x[0] = zeroIfNaN(r.MeanSentiment)
	x[1] = zeroIfNaN(r.MaxSentiment)
	x[2] = float64(r.HeadlineCount)
	for i, s := range e.sectors {
		if i > 0 && s == r.Sector {
			x[len(numericColumns)+i-1] = 1
		}
	}
	return x
}

// Fit 在训练集上估计每列的均值和总体标准差；常数列的缩放系数取 1
func (e *FeatureEncoder) Fit(rows []model.TrainingRow) {
	cols := make([][]float64, len(e.Columns))
	for _, r := range rows {
		for j, v := range e.raw(r) {
			cols[j] = append(cols[j], v)
		}
	}
	e.mean = make([]float64, len(e.Columns))
	e.scale = make([]float64, len(e.Columns))
	for j, col := range cols {
		e.scale[j] = 1
		if len(col) == 0 {
			continue
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		e.mean[j] = mean
		if std > 0 {
			e.scale[j] = std
		}
	}
}

// Transform 编码并标准化
func (e *FeatureEncoder) Transform(r model.TrainingRow) []float64 {
	x := e.raw(r)
	for j := range x {
		x[j] = (x[j] - e.mean[j]) / e.scale[j]
	}
	return x
}

// Classifier 二分类器：y 取 0/1，PredictProba 返回 P(up)
type Classifier interface {
	Fit(X [][]float64, y []float64) error
	PredictProba(x []float64) float64
}

var _ Classifier = (*LogisticRegression)(nil)

// LogisticRegression 带 L2 正则的二分类逻辑回归，截距不参与正则
type LogisticRegression struct {
	L2            float64 // 1/C
	MaxIterations int

	Weights   []float64
	Intercept float64
}

// Fit 最小化 sum(logloss) + L2/2 * ||w||^2，使用 L-BFGS。
// 训练标签只有一个类别时返回 *model.FitError
func (m *LogisticRegression) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return &model.FitError{Reason: "empty training set"}
	}
	pos := floats.Sum(y)
	if pos == 0 || pos == float64(len(y)) {
		return &model.FitError{Reason: fmt.Sprintf("training labels contain a single class (%d rows)", len(y))}
	}

	dim := len(X[0])
	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			loss := 0.0
			for i, x := range X {
				z := theta[dim] + floats.Dot(theta[:dim], x)
				loss += softplus(z) - y[i]*z
			}
			return loss + 0.5*m.L2*floats.Dot(theta[:dim], theta[:dim])
		},
		Grad: func(grad, theta []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, x := range X {
				z := theta[dim] + floats.Dot(theta[:dim], x)
				diff := sigmoid(z) - y[i]
				floats.AddScaled(grad[:dim], diff, x)
				grad[dim] += diff
			}
			floats.AddScaled(grad[:dim], m.L2, theta[:dim])
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: 1e-8,
		MajorIterations:   m.MaxIterations,
	}
	result, err := optimize.Minimize(problem, make([]float64, dim+1), settings, &optimize.LBFGS{})
	if result == nil {
		return &model.FitError{Reason: "optimizer returned no result", Err: err}
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &model.FitError{Reason: "optimizer diverged", Err: err}
		}
	}
	if err != nil && !errors.Is(err, optimize.ErrLinesearcherFailure) {
		return &model.FitError{Reason: "optimizer failed", Err: err}
	}

	m.Weights = append([]float64(nil), result.X[:dim]...)
	m.Intercept = result.X[dim]
	return nil
}

// PredictProba P(up | x)
func (m *LogisticRegression) PredictProba(x []float64) float64 {
	return sigmoid(m.Intercept + floats.Dot(m.Weights, x))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

// softplus log(1 + e^z)，避免大 z 溢出
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
