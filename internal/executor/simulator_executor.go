package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
	"news-sector-backtest/pkg/ta"
)

// SimulatorConfig 模拟器配置
type SimulatorConfig struct {
	CostBps        float64        // 往返交易成本 (基点)，开仓当日一次性扣除
	VolWindow      int            // 滚动波动率窗口
	PeriodsPerYear float64        // 年化使用的周期数
	Sectors        []model.Sector // 板块日收益覆盖的板块，为空时使用 model.AllSectors
}

type fill struct {
	ticker string
	sector model.Sector
	net    float64
}

var _ Executor = (*SimulatorExecutor)(nil)

// SimulatorExecutor 实现了 Executor 接口：等权持有所有预测上涨的股票
type SimulatorExecutor struct {
	cfg    *SimulatorConfig
	logger *zap.SugaredLogger

	mu sync.RWMutex

	// 组合净值 (初始 1)
	equity    float64
	maxEquity float64

	// 持仓状态
	positions   map[string]*model.Position
	touched     map[string]struct{} // 当日收到信号的 ticker
	currentDate time.Time
	lastSettled time.Time
	fills       []fill

	curve        []model.EquityPoint
	sectorDaily  []model.SectorDailyReturn
	tradeHistory []*model.TradeRecord
	finished     bool
}

// NewSimulatorExecutor 构造函数
func NewSimulatorExecutor(cfg *SimulatorConfig, logger *zap.SugaredLogger) *SimulatorExecutor {
	if len(cfg.Sectors) == 0 {
		cfg.Sectors = model.AllSectors
	}
	return &SimulatorExecutor{
		cfg:       cfg,
		logger:    logger,
		equity:    1.0,
		maxEquity: 1.0,
		positions: make(map[string]*model.Position),
		touched:   make(map[string]struct{}),
	}
}

// cost 往返成本 (小数)
func (e *SimulatorExecutor) cost() float64 {
	return e.cfg.CostBps / 10000.0
}

// ExecuteSignal 模拟持仓变化。信号必须按交易日顺序到达，同一交易日的信号之后调用 SettleDay
func (e *SimulatorExecutor) ExecuteSignal(ctx context.Context, signal model.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished {
		return fmt.Errorf("simulator already finished")
	}
	if !e.lastSettled.IsZero() && !signal.Date.After(e.lastSettled) {
		return fmt.Errorf("signal for %s %s arrived after %s was settled",
			signal.Ticker, service.FormatDate(signal.Date), service.FormatDate(e.lastSettled))
	}
	if e.currentDate.IsZero() {
		e.currentDate = signal.Date
	} else if !signal.Date.Equal(e.currentDate) {
		return fmt.Errorf("signal for %s while %s is not settled",
			service.FormatDate(signal.Date), service.FormatDate(e.currentDate))
	}
	if _, dup := e.touched[signal.Ticker]; dup {
		return fmt.Errorf("duplicate signal for %s on %s", signal.Ticker, service.FormatDate(signal.Date))
	}
	e.touched[signal.Ticker] = struct{}{}

	pos := e.positions[signal.Ticker]
	if signal.Position != model.DirLong {
		if pos != nil {
			e.closePosition(pos, false)
		}
		return nil
	}

	net := signal.NextDayReturn
	if pos == nil {
		// 开仓：往返成本在开仓当日一次性扣除
		pos = &model.Position{
			Ticker:    signal.Ticker,
			Sector:    signal.Sector,
			Direction: model.DirLong,
			EntryDate: signal.Date,
			Cost:      e.cost(),
		}
		e.positions[signal.Ticker] = pos
		net -= pos.Cost
		e.logger.Debugf("Sim OPEN: %s (%s) on %s, cost %.4f",
			signal.Ticker, signal.Sector, service.FormatDate(signal.Date), pos.Cost)
	}
	pos.LastDate = signal.Date
	pos.DaysHeld++
	pos.GrossPnL = (1+pos.GrossPnL)*(1+signal.NextDayReturn) - 1

	e.fills = append(e.fills, fill{ticker: signal.Ticker, sector: signal.Sector, net: net})
	return nil
}

// openTickers 排序后的持仓 ticker，交易记录顺序稳定
func (e *SimulatorExecutor) openTickers() []string {
	tickers := make([]string, 0, len(e.positions))
	for t := range e.positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// closePosition 构造交易记录并移除持仓；open=true 表示测试期结束时仍未平仓
func (e *SimulatorExecutor) closePosition(pos *model.Position, open bool) {
	record := &model.TradeRecord{
		Ticker:      pos.Ticker,
		Sector:      pos.Sector,
		EntryDate:   pos.EntryDate,
		ExitDate:    pos.LastDate,
		DaysHeld:    pos.DaysHeld,
		GrossReturn: pos.GrossPnL,
		Cost:        pos.Cost,
		Open:        open,
	}
	e.tradeHistory = append(e.tradeHistory, record)
	delete(e.positions, pos.Ticker)

	e.logger.Debugf("Sim CLOSE: %s held %d days (%s -> %s), gross %.4f, open=%v",
		pos.Ticker, pos.DaysHeld, service.FormatDate(pos.EntryDate), service.FormatDate(pos.LastDate), pos.GrossPnL, open)
}

// SettleDay 组合日收益 = 当日所有持仓净收益的均值，没有持仓时为 0；
// 板块日收益同理，只在该板块的持仓上取均值
func (e *SimulatorExecutor) SettleDay(ctx context.Context, date time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.currentDate.IsZero() && !date.Equal(e.currentDate) {
		return fmt.Errorf("settling %s while signals are pending for %s",
			service.FormatDate(date), service.FormatDate(e.currentDate))
	}
	if !e.lastSettled.IsZero() && !date.After(e.lastSettled) {
		return fmt.Errorf("day %s already settled", service.FormatDate(date))
	}

	// 当日没有信号的 ticker 不再持有
	for _, ticker := range e.openTickers() {
		if _, ok := e.touched[ticker]; !ok {
			e.closePosition(e.positions[ticker], false)
		}
	}

	daily := 0.0
	sectorSum := make(map[model.Sector]float64)
	sectorN := make(map[model.Sector]int)
	for _, f := range e.fills {
		daily += f.net
		sectorSum[f.sector] += f.net
		sectorN[f.sector]++
	}
	if len(e.fills) > 0 {
		daily /= float64(len(e.fills))
	}

	e.equity *= 1 + daily
	if e.equity > e.maxEquity {
		e.maxEquity = e.equity
	}
	e.curve = append(e.curve, model.EquityPoint{
		Date:             date,
		DailyReturn:      daily,
		CumulativeReturn: e.equity - 1,
		PositionsHeld:    len(e.fills),
	})

	for _, s := range e.cfg.Sectors {
		point := model.SectorDailyReturn{Date: date, Sector: s, Positions: sectorN[s]}
		if n := sectorN[s]; n > 0 {
			point.Return = sectorSum[s] / float64(n)
		}
		e.sectorDaily = append(e.sectorDaily, point)
	}

	e.fills = e.fills[:0]
	e.touched = make(map[string]struct{})
	e.currentDate = time.Time{}
	e.lastSettled = date
	return nil
}

// Finish 测试期结束：剩余持仓记为未平仓交易，并计算滚动波动率
func (e *SimulatorExecutor) Finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.currentDate.IsZero() {
		return fmt.Errorf("finish with unsettled day %s", service.FormatDate(e.currentDate))
	}
	for _, ticker := range e.openTickers() {
		e.closePosition(e.positions[ticker], true)
	}

	returns := make([]float64, len(e.curve))
	for i, p := range e.curve {
		returns[i] = p.DailyReturn
	}
	vol := ta.AnnualizedRollingVol(returns, e.cfg.VolWindow, e.cfg.PeriodsPerYear)
	for i := range e.curve {
		e.curve[i].RollingVol21 = vol[i]
	}

	e.finished = true
	e.logger.Infof("Sim finished: %d days, cumulative return %.4f, max equity %.4f, %d trades",
		len(e.curve), e.equity-1, e.maxEquity, len(e.tradeHistory))
	return nil
}

// EquityCurve 组合每日收益和累计收益
func (e *SimulatorExecutor) EquityCurve() []model.EquityPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.EquityPoint(nil), e.curve...)
}

// SectorDailyReturns 每个交易日、每个板块一行
func (e *SimulatorExecutor) SectorDailyReturns() []model.SectorDailyReturn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]model.SectorDailyReturn(nil), e.sectorDaily...)
}

// GetTradeHistory 实现 Executor 接口
func (e *SimulatorExecutor) GetTradeHistory() ([]*model.TradeRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// 返回记录的副本，防止外部修改
	records := make([]*model.TradeRecord, len(e.tradeHistory))
	copy(records, e.tradeHistory)
	return records, nil
}

// GetMaxEquity 返回历史上的最高净值
func (e *SimulatorExecutor) GetMaxEquity() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.maxEquity
}

// GetCurrentPosition 查询某个 ticker 的当前持仓
func (e *SimulatorExecutor) GetCurrentPosition(ctx context.Context, ticker string) (*model.Position, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pos, ok := e.positions[ticker]
	if !ok {
		return &model.Position{Ticker: ticker, Direction: model.DirFlat}, nil
	}
	snapshot := *pos
	return &snapshot, nil
}
