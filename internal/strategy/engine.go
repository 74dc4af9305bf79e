package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"news-sector-backtest/internal/executor"
	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/stats"
)

// Engine 训练 + 回测引擎：时间切分、(可选) 板块平衡、逻辑回归、多头/空仓模拟和板块统计
type Engine struct {
	cfg        EngineConfig
	logger     *zap.Logger
	state      *StateMachine
	signal     *SignalGenerator
	classifier Classifier
}

// NewEngine 每次运行使用一个新的 Engine
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = model.ModeUnbalanced
	}
	return &Engine{
		cfg:        cfg,
		logger:     logger,
		state:      NewStateMachine(logger),
		signal:     NewSignalGenerator(cfg.ProbThreshold, logger),
		classifier: &LogisticRegression{L2: cfg.L2, MaxIterations: cfg.MaxIterations},
	}
}

// WithClassifier 替换默认的逻辑回归
func (e *Engine) WithClassifier(c Classifier) *Engine {
	e.classifier = c
	return e
}

// Stage 当前阶段
func (e *Engine) Stage() Stage {
	return e.state.GetCurrentState()
}

// Run 在完整的训练数据上运行一次。
// 分类器无法训练时不返回错误：所有仓位为空仓，Result.FitErr 记录原因，统计表状态为 fit_failed
func (e *Engine) Run(ctx context.Context, rows []model.TrainingRow) (*Result, error) {
	res := &Result{RunMode: e.cfg.Mode, TestAccuracy: math.NaN()}

	split := ChronologicalSplit(rows, e.cfg.TrainFraction)
	if split.TrainDates == 0 || split.TestDates == 0 {
		return nil, &model.DataError{
			Source: "engine",
			Msg:    fmt.Sprintf("need at least two distinct trading dates, got %d", split.TrainDates+split.TestDates),
		}
	}
	if e.cfg.Mode == model.ModeBalanced {
		split.Train, split.Dropped = BalanceBySector(split.Train, e.cfg.Seed)
	}
	res.Split = split
	if err := e.state.Transition(StageSplit,
		zap.Int("train_rows", len(split.Train)),
		zap.Int("test_rows", len(split.Test)),
		zap.String("last_train", split.LastTrain.Format("2006-01-02")),
		zap.String("first_test", split.FirstTest.Format("2006-01-02")),
		zap.Int("balanced_out", split.Dropped),
	); err != nil {
		return nil, err
	}

	predictions, err := e.fitAndPredict(split, res)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sim := executor.NewSimulatorExecutor(&executor.SimulatorConfig{
		CostBps:        e.cfg.CostBps,
		VolWindow:      e.cfg.VolWindow,
		PeriodsPerYear: e.cfg.Annualization,
	}, e.logger.Sugar())
	if err := e.backtest(ctx, sim, predictions, res); err != nil {
		return nil, err
	}
	if err := e.state.Transition(StageBacktested,
		zap.Int("signals", len(res.Signals)),
		zap.Int("trades", len(res.Trades)),
	); err != nil {
		return nil, err
	}

	res.Report = stats.Analyze(res.SectorDaily, res.Trades, res.Equity, stats.Config{
		Annualization: e.cfg.Annualization,
		WeeksPerYear:  model.TradingWeeksPerYear,
		MinActiveDays: e.cfg.MinActiveDays,
		Confidence:    e.cfg.Confidence,
	})
	if res.FitErr != nil {
		res.Report.MarkFitFailed(res.FitErr.Error())
	}
	for _, insufficient := range res.Report.Insufficient {
		res.Warnings = append(res.Warnings, insufficient.Error())
	}
	if err := e.state.Transition(StageAggregated); err != nil {
		return nil, err
	}
	res.FinalStage = e.state.GetCurrentState()
	if e.state.FitFailed() {
		res.FinalStage = StageFitFailed
	}
	return res, nil
}

// fitAndPredict 训练分类器并对测试集打分。FitError 转为 FIT_FAILED：每行 p_up 为 NaN，预测为 down
func (e *Engine) fitAndPredict(split Split, res *Result) ([]Prediction, error) {
	encoder := NewFeatureEncoder(split.Train, split.Test)
	encoder.Fit(split.Train)

	X := make([][]float64, len(split.Train))
	y := make([]float64, len(split.Train))
	for i, r := range split.Train {
		X[i] = encoder.Transform(r)
		if r.Label == model.LabelUp {
			y[i] = 1
		}
	}

	clf := e.classifier
	predictions := make([]Prediction, len(split.Test))

	if err := clf.Fit(X, y); err != nil {
		var fitErr *model.FitError
		if !errors.As(err, &fitErr) {
			return nil, err
		}
		res.FitErr = err
		res.Warnings = append(res.Warnings, err.Error())
		e.logger.Warn("Classifier could not be fitted, all positions flat", zap.Error(err))
		if err := e.state.Transition(StageFitFailed, zap.String("reason", fitErr.Reason)); err != nil {
			return nil, err
		}
		for i, r := range split.Test {
			predictions[i] = Prediction{Row: r, ProbabilityUp: math.NaN(), Label: model.LabelDown}
		}
		return predictions, nil
	}

	if lr, ok := clf.(*LogisticRegression); ok {
		res.Coefficients = make(map[string]float64, len(encoder.Columns)+1)
		for j, col := range encoder.Columns {
			res.Coefficients[col] = lr.Weights[j]
		}
		res.Coefficients["intercept"] = lr.Intercept
	}
	if err := e.state.Transition(StageTrained, zap.Int("features", len(encoder.Columns))); err != nil {
		return nil, err
	}

	correct := 0
	for i, r := range split.Test {
		p := clf.PredictProba(encoder.Transform(r))
		predictions[i] = Prediction{Row: r, ProbabilityUp: p, Label: e.signal.Classify(p)}
		if predictions[i].Label == r.Label {
			correct++
		}
	}
	if len(split.Test) > 0 {
		res.TestAccuracy = float64(correct) / float64(len(split.Test))
	}
	if err := e.state.Transition(StagePredicted, zap.Float64("test_accuracy", res.TestAccuracy)); err != nil {
		return nil, err
	}
	return predictions, nil
}

// backtest 按交易日顺序把预测转成信号交给模拟器，每个交易日结束后结算
func (e *Engine) backtest(ctx context.Context, sim *executor.SimulatorExecutor, predictions []Prediction, res *Result) error {
	for start := 0; start < len(predictions); {
		date := predictions[start].Row.Date
		end := start
		for end < len(predictions) && predictions[end].Row.Date.Equal(date) {
			end++
		}

		for _, pred := range predictions[start:end] {
			pos, err := sim.GetCurrentPosition(ctx, pred.Row.Ticker)
			if err != nil {
				return err
			}
			signal := e.signal.GenerateSignal(pred, pos)
			if err := sim.ExecuteSignal(ctx, signal); err != nil {
				return err
			}
			res.Signals = append(res.Signals, signal)
		}
		if err := sim.SettleDay(ctx, date); err != nil {
			return err
		}
		start = end
	}
	if err := sim.Finish(ctx); err != nil {
		return err
	}

	trades, err := sim.GetTradeHistory()
	if err != nil {
		return err
	}
	res.Trades = trades
	res.Equity = sim.EquityCurve()
	res.SectorDaily = sim.SectorDailyReturns()
	return nil
}
