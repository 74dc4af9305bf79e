package strategy

import (
	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
)

// SignalGenerator 负责根据分类结果和当前持仓生成交易信号
type SignalGenerator struct {
	threshold float64
	logger    *zap.Logger
}

// NewSignalGenerator 初始化信号生成器；threshold 为判定上涨的概率阈值
func NewSignalGenerator(threshold float64, logger *zap.Logger) *SignalGenerator {
	return &SignalGenerator{threshold: threshold, logger: logger}
}

// Classify p_up > threshold 判定为上涨
func (sg *SignalGenerator) Classify(pUp float64) model.Label {
	if pUp > sg.threshold {
		return model.LabelUp
	}
	return model.LabelDown
}

// GenerateSignal 预测上涨则持有多头，否则空仓，不做空。
// Action 描述相对当前持仓的变化
func (sg *SignalGenerator) GenerateSignal(pred Prediction, currentPosition *model.Position) model.Signal {
	target := model.DirFlat
	if pred.Label == model.LabelUp {
		target = model.DirLong
	}

	current := model.DirFlat
	if currentPosition != nil {
		current = currentPosition.Direction
	}

	action := model.ActionNone
	switch {
	case current == model.DirFlat && target == model.DirLong:
		action = model.ActionOpen
	case current == model.DirLong && target == model.DirFlat:
		action = model.ActionClose
	}

	signal := model.Signal{
		Ticker:         pred.Row.Ticker,
		Sector:         pred.Row.Sector,
		Date:           pred.Row.Date,
		PredictedLabel: pred.Label,
		ProbabilityUp:  pred.ProbabilityUp,
		Position:       target,
		Action:         action,
		NextDayReturn:  pred.Row.NextDayReturn,
	}
	if action != model.ActionNone {
		sg.logger.Debug(signal.String())
	}
	return signal
}
