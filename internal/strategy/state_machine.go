package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// 合法的阶段转换。训练失败时 SPLIT -> FIT_FAILED，之后以全部空仓继续回测
var transitions = map[Stage][]Stage{
	StageInitial:    {StageSplit},
	StageSplit:      {StageTrained, StageFitFailed},
	StageTrained:    {StagePredicted},
	StagePredicted:  {StageBacktested},
	StageFitFailed:  {StageBacktested},
	StageBacktested: {StageAggregated},
}

// StateMachine 记录引擎当前所处的阶段
type StateMachine struct {
	mu           sync.RWMutex
	CurrentState Stage
	fitFailed    bool
	logger       *zap.Logger
}

// NewStateMachine 初始化状态机
func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{CurrentState: StageInitial, logger: logger}
}

// Transition 切换到下一个阶段；非法转换返回错误且不改变状态
func (sm *StateMachine) Transition(to Stage, fields ...zap.Field) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	allowed := false
	for _, next := range transitions[sm.CurrentState] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("illegal stage transition %s -> %s", sm.CurrentState, to)
	}

	sm.logger.Info("Stage transition",
		append([]zap.Field{zap.String("from", string(sm.CurrentState)), zap.String("to", string(to))}, fields...)...)
	if to == StageFitFailed {
		sm.fitFailed = true
	}
	sm.CurrentState = to
	return nil
}

// GetCurrentState 当前阶段
func (sm *StateMachine) GetCurrentState() Stage {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.CurrentState
}

// FitFailed 本次运行是否经过 FIT_FAILED
func (sm *StateMachine) FitFailed() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.fitFailed
}
