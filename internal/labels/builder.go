package labels

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
	"news-sector-backtest/internal/universe"
)

// Result 标签构建的输出
type Result struct {
	Rows     []model.LabelRow
	Counts   *model.StageCounts
	Rejected []error // 被整体排除的 ticker (*model.DataError / *model.AlignmentError)
}

// Builder 根据日线收盘价计算次日收益和涨跌标签
type Builder struct {
	index  universe.Index
	logger *zap.Logger
}

// NewBuilder index 为 nil 时不检查股票池
func NewBuilder(index universe.Index, logger *zap.Logger) *Builder {
	return &Builder{index: index, logger: logger}
}

// Build next_day_return = close[next] / close[date] - 1，label = up 当且仅当收益 > 0。
// 每个 ticker 的最后一个交易日没有标签。日期重复或不递增的 ticker 整体排除
func (b *Builder) Build(ctx context.Context, bars []model.PriceBar) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := model.NewStageCounts("labels")
	counts.In = len(bars)
	res := &Result{Counts: counts}

	series := make(map[string][]model.PriceBar)
	var order []string
	for _, bar := range bars {
		if b.index != nil {
			if _, err := b.index.SectorOf(bar.Ticker); err != nil {
				counts.Exclude(model.ReasonUnknownTicker)
				continue
			}
		}
		if _, ok := series[bar.Ticker]; !ok {
			order = append(order, bar.Ticker)
		}
		series[bar.Ticker] = append(series[bar.Ticker], bar)
	}
	sort.Strings(order)

	for _, ticker := range order {
		rows, err := b.buildTicker(ticker, series[ticker], counts)
		if err != nil {
			res.Rejected = append(res.Rejected, err)
			counts.Excluded[model.ReasonUnorderedDates] += len(series[ticker])
			b.logger.Warn("Ticker excluded from labels", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		res.Rows = append(res.Rows, rows...)
	}

	sort.SliceStable(res.Rows, func(i, j int) bool {
		if !res.Rows[i].Date.Equal(res.Rows[j].Date) {
			return res.Rows[i].Date.Before(res.Rows[j].Date)
		}
		return res.Rows[i].Ticker < res.Rows[j].Ticker
	})
	counts.Out = len(res.Rows)

	b.logger.Info("Labels built",
		zap.Int("bars", counts.In),
		zap.Int("rows", counts.Out),
		zap.Int("tickers", len(order)-len(res.Rejected)))
	return res, nil
}

// buildTicker 单个 ticker 的标签；bars 保持输入顺序
func (b *Builder) buildTicker(ticker string, bars []model.PriceBar, counts *model.StageCounts) ([]model.LabelRow, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return nil, &model.DataError{
				Source: "labels",
				Msg: fmt.Sprintf("ticker %s: dates not strictly increasing (%s after %s)",
					ticker, service.FormatDate(bars[i].Date), service.FormatDate(bars[i-1].Date)),
			}
		}
	}

	// 只在原始相邻的两根 bar 之间计算收益；任一收盘价非正则该日没有标签
	rows := make([]model.LabelRow, 0, len(bars))
	for i, bar := range bars {
		if i+1 == len(bars) {
			if bar.Close.IsPositive() {
				counts.Exclude(model.ReasonNoNextDay)
			} else {
				counts.Exclude(model.ReasonBadClose)
			}
			break
		}
		next := bars[i+1]
		if !bar.Close.IsPositive() || !next.Close.IsPositive() {
			counts.Exclude(model.ReasonBadClose)
			continue
		}
		ret := NextDayReturn(bar.Close, next.Close)
		label := model.LabelDown
		if ret.IsPositive() {
			label = model.LabelUp
		}
		rows = append(rows, model.LabelRow{
			Ticker:        ticker,
			Date:          service.NormalizeDate(bar.Date),
			NextDayReturn: ret.InexactFloat64(),
			Label:         label,
		})
	}
	return rows, nil
}

// NextDayReturn (next / cur) - 1
func NextDayReturn(cur, next decimal.Decimal) decimal.Decimal {
	return next.Div(cur).Sub(decimal.NewFromInt(1))
}
