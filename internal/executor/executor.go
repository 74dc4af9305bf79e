package executor

import (
	"context"
	"time"

	"news-sector-backtest/internal/model"
)

// Executor 是回测执行器的通用接口，按交易日顺序接收信号并结算
type Executor interface {
	// 接收一个 (ticker, 交易日) 的信号并更新该 ticker 的持仓
	ExecuteSignal(ctx context.Context, signal model.Signal) error

	// 结算一个交易日：计算组合和板块当日收益。当日没有收到信号的持仓视为平仓
	SettleDay(ctx context.Context, date time.Time) error

	// 查询某个 ticker 的当前持仓，空仓返回 Direction=flat
	GetCurrentPosition(ctx context.Context, ticker string) (*model.Position, error)

	// 返回交易记录 (包括 Finish 之后仍未平仓的交易)
	GetTradeHistory() ([]*model.TradeRecord, error)

	// 返回历史最高净值 (初始为 1)
	GetMaxEquity() float64
}
