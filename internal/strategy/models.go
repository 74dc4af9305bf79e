package strategy

import (
	"time"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/stats"
)

// Stage 训练/回测引擎的阶段
type Stage string

const (
	StageInitial    Stage = "INITIAL"
	StageSplit      Stage = "SPLIT"
	StageTrained    Stage = "TRAINED"
	StagePredicted  Stage = "PREDICTED"
	StageBacktested Stage = "BACKTESTED"
	StageAggregated Stage = "AGGREGATED"

	// 分类器无法训练，所有仓位为空仓，仍然输出全部产物
	StageFitFailed Stage = "FIT_FAILED"
)

// EngineConfig 引擎参数，随机种子和运行模式显式传入
type EngineConfig struct {
	TrainFraction float64
	CostBps       float64
	Seed          uint64
	Mode          model.RunMode
	ProbThreshold float64
	L2            float64
	MaxIterations int
	VolWindow     int
	Annualization float64
	MinActiveDays int
	Confidence    float64
}

// DefaultEngineConfig 与研究脚本一致的默认参数
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TrainFraction: model.DefaultTrainFraction,
		CostBps:       model.DefaultCostBps,
		Seed:          model.DefaultSeed,
		Mode:          model.ModeUnbalanced,
		ProbThreshold: 0.5,
		L2:            1.0,
		MaxIterations: 1000,
		VolWindow:     21,
		Annualization: model.TradingDaysPerYear,
		MinActiveDays: model.DefaultMinActiveDays,
		Confidence:    0.95,
	}
}

// Prediction 测试集上一行的分类结果
type Prediction struct {
	Row           model.TrainingRow
	ProbabilityUp float64
	Label         model.Label
}

// Split 时间切分的结果
type Split struct {
	Train      []model.TrainingRow
	Test       []model.TrainingRow
	TrainDates int
	TestDates  int
	LastTrain  time.Time
	FirstTest  time.Time
	Dropped    int // 平衡模式下被降采样去掉的训练行
}

// Result 引擎一次运行的全部输出
type Result struct {
	RunMode      model.RunMode
	FinalStage   Stage
	Split        Split
	TestAccuracy float64 // 无定义时为 NaN
	Signals      []model.Signal
	Trades       []*model.TradeRecord
	Equity       []model.EquityPoint
	SectorDaily  []model.SectorDailyReturn
	Report       *stats.Report
	Warnings     []string
	FitErr       error
	Coefficients map[string]float64
}
