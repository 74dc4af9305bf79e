package model

import (
	"fmt"
	"time"
)

// 回测默认参数
const (
	// 往返交易成本 (基点)，开仓时一次性扣除
	DefaultCostBps = 10.0

	// 年化使用的交易日数量
	TradingDaysPerYear  = 252.0
	TradingWeeksPerYear = 52.0

	// 时间切分：前 80% 的交易日用于训练
	DefaultTrainFraction = 0.8

	// 板块降采样的默认随机种子
	DefaultSeed = 42

	// 活跃交易日少于该值时，t 检验的检验力不足
	DefaultMinActiveDays = 30
)

// RunMode 运行模式
type RunMode string

const (
	ModeUnbalanced RunMode = "unbalanced" // 默认：保持真实的媒体覆盖分布
	ModeBalanced   RunMode = "balanced"   // 稳健性检查：训练集按板块降采样
)

// Suffix 输出文件名后缀，平衡模式的结果不会覆盖默认结果
func (m RunMode) Suffix() string {
	if m == ModeBalanced {
		return "_balanced"
	}
	return ""
}

// ActionType 定义了信号类型
type ActionType string

const (
	ActionNone  ActionType = "NONE"  // 无操作
	ActionOpen  ActionType = "OPEN"  // 开仓
	ActionClose ActionType = "CLOSE" // 平仓
)

// Direction 持仓方向，本策略不做空
type Direction string

const (
	DirLong Direction = "long"
	DirFlat Direction = "flat"
)

func (d Direction) String() string {
	return string(d)
}

// Signal 分类器在测试集上的输出以及据此得到的目标仓位
type Signal struct {
	Ticker         string
	Sector         Sector
	Date           time.Time
	PredictedLabel Label
	ProbabilityUp  float64
	Position       Direction
	Action         ActionType // 相对前一交易日仓位的变化
	NextDayReturn  float64    // 该交易日持仓实现的收益 (close->next close)
}

func (s Signal) String() string {
	return fmt.Sprintf("SIGNAL [%s | %s] %s %s p_up=%.3f pred=%s",
		s.Action, s.Position, s.Ticker, s.Date.Format("2006-01-02"), s.ProbabilityUp, s.PredictedLabel)
}

// Position 某个 ticker 当前持仓
type Position struct {
	Ticker    string
	Sector    Sector
	Direction Direction
	EntryDate time.Time
	LastDate  time.Time // 最近一个持仓日
	DaysHeld  int
	GrossPnL  float64 // 持仓期间累计收益 (复利)
	Cost      float64 // 开仓时扣除的往返成本
}

// TradeRecord 记录一次完整的开仓和平仓交易
type TradeRecord struct {
	Ticker      string
	Sector      Sector
	EntryDate   time.Time
	ExitDate    time.Time // 最后一个持仓日
	DaysHeld    int
	GrossReturn float64
	Cost        float64
	Open        bool // 测试期结束时仍未平仓
}

// EquityPoint 组合每日收益 (BacktestResult)
type EquityPoint struct {
	Date             time.Time
	DailyReturn      float64
	CumulativeReturn float64
	PositionsHeld    int
	RollingVol21     float64
}

// SectorDailyReturn 板块每日收益 (无持仓日为 0)
type SectorDailyReturn struct {
	Date      time.Time
	Sector    Sector
	Return    float64
	Positions int
}

// StatStatus 板块统计状态
type StatStatus string

const (
	StatusOK               StatStatus = "ok"
	StatusInsufficientData StatStatus = "insufficient_data"
	StatusFitFailed        StatStatus = "fit_failed"
)

// SectorStats 板块绩效与显著性。NaN 表示无定义，输出时写成 "undefined"
type SectorStats struct {
	Sector           Sector
	AnnualizedReturn float64 // 几何年化
	AnnualizedArith  float64 // 算术年化 = mean * 252
	CILow            float64 // 算术年化收益 95% 置信区间
	CIHigh           float64
	AnnualizedVol    float64
	SharpeRatio      float64
	MaxDrawdown      float64
	TStat            float64
	PValue           float64
	PValueFDR        float64
	Days             int
	ActiveDays       int
	TradeCount       int
	LowPower         bool
	Status           StatStatus
	Note             string
}
