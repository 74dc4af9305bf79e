package ta

import (
	"fmt"
	"math"
	"sync"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"news-sector-backtest/internal/service"
)

// TAData 一条按交易日排列的序列 (ticker 的日均情绪、组合日收益) 及其指标
type TAData struct {
	Key    string
	Values []float64 // 原始序列，按日期升序

	// 与 Values 等长，回看期内为 NaN
	SMA    []float64
	StdDev []float64
}

// TACalculator 管理多条序列并计算滚动指标
type TACalculator struct {
	mu         sync.RWMutex
	HistoryMap map[string]*TAData // Key: ticker 或 "portfolio"
	SMAPeriod  int
	VolPeriod  int
}

// NewTACalculator 初始化技术指标计算器
func NewTACalculator(smaPeriod, volPeriod int) *TACalculator {
	return &TACalculator{
		HistoryMap: make(map[string]*TAData),
		SMAPeriod:  smaPeriod,
		VolPeriod:  volPeriod,
	}
}

// Append 追加一个观测值，调用方保证按日期顺序追加
func (tc *TACalculator) Append(key string, value float64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	taData, ok := tc.HistoryMap[key]
	if !ok {
		taData = &TAData{Key: key, Values: make([]float64, 0, 64)}
		tc.HistoryMap[key] = taData
	}
	taData.Values = append(taData.Values, value)
}

// Calculate 计算某条序列的全部指标
func (tc *TACalculator) Calculate(key string) (*TAData, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	taData, ok := tc.HistoryMap[key]
	if !ok {
		return nil, fmt.Errorf("no history for series %s", key)
	}
	taData.SMA = SMA(taData.Values, tc.SMAPeriod)
	taData.StdDev = RollingStdDev(taData.Values, tc.VolPeriod)
	if len(taData.Values) < max(tc.SMAPeriod, tc.VolPeriod) {
		service.Logger.Debug("Not enough history for full indicator window",
			zap.String("series", key), zap.Int("len", len(taData.Values)))
	}
	return taData, nil
}

// SMA 简单移动平均。talib 在序列短于周期时会越界，这里直接返回全 NaN
func SMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nanSeries(len(values))
	}
	out := talib.Sma(values, period)
	fillLookback(out, period-1)
	return out
}

// RollingStdDev 滚动总体标准差 (talib STDDEV, nbDev=1)
func RollingStdDev(values []float64, period int) []float64 {
	if period < 2 || len(values) < period {
		return nanSeries(len(values))
	}
	out := talib.StdDev(values, period, 1)
	fillLookback(out, period-1)
	return out
}

// AnnualizedRollingVol 日收益的滚动波动率，按 periodsPerYear 年化
func AnnualizedRollingVol(returns []float64, period int, periodsPerYear float64) []float64 {
	out := RollingStdDev(returns, period)
	scale := math.Sqrt(periodsPerYear)
	for i := range out {
		out[i] *= scale
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	fillLookback(out, n)
	return out
}

func fillLookback(out []float64, lookback int) {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
}
