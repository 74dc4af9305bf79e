package features

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/universe"
	"news-sector-backtest/pkg/ta"
)

// Policy 没有任何新闻的 (ticker, 交易日) 如何处理
type Policy string

const (
	PolicyNeutral Policy = "neutral" // 补一行 0 情绪、0 条新闻
	PolicyDrop    Policy = "drop"    // 不输出
)

// Options 特征构建参数
type Options struct {
	Location  *time.Location // 截止时间所在时区
	Cutoff    time.Duration  // 距零点的时长，15:30 -> 15h30m
	Policy    Policy
	SMAPeriod int
}

// DefaultOptions 15:30 America/New_York，中性填充，5 日均线
func DefaultOptions() Options {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Options{
		Location:  loc,
		Cutoff:    15*time.Hour + 30*time.Minute,
		Policy:    PolicyNeutral,
		SMAPeriod: 5,
	}
}

// Result 特征构建的输出
type Result struct {
	Rows   []model.FeatureRow
	Scores []model.SentimentScore
	// Mapping 以新闻为单位：匹配到至少一个 ticker 或被排除
	Mapping *model.StageCounts
	// Attribution 以 (新闻, ticker) 为单位：归属到交易日或被排除
	Attribution *model.StageCounts
	// Counts 以 (ticker, 交易日) 为单位：输出特征行或在 drop 策略下被排除
	Counts         *model.StageCounts
	LateAttributed int // 归属交易日晚于发布日的 (新闻, ticker) 数：截止后或非交易日发布
}

// Builder 将新闻标题聚合为 (ticker, 交易日) 特征
type Builder struct {
	index  universe.Index
	mapper *universe.Mapper
	scorer Scorer
	opts   Options
	logger *zap.Logger
}

// NewBuilder mapper 可以为 nil，此时只使用新闻自带的 ticker 列
func NewBuilder(index universe.Index, mapper *universe.Mapper, scorer Scorer, opts Options, logger *zap.Logger) *Builder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Policy == "" {
		opts.Policy = PolicyNeutral
	}
	if opts.SMAPeriod <= 0 {
		opts.SMAPeriod = 5
	}
	return &Builder{index: index, mapper: mapper, scorer: scorer, opts: opts, logger: logger}
}

// Build 只使用截止时间之前发布的新闻构建交易日 D 的特征：
// 截止时间之后发布的新闻归属到下一个交易日，非交易日发布的新闻归属到之后第一个交易日。
// 时间戳为零值时返回 *model.DataError
func (b *Builder) Build(ctx context.Context, headlines []model.Headline, bars []model.PriceBar) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mapping := model.NewStageCounts("headline_mapping")
	mapping.In = len(headlines)
	attribution := model.NewStageCounts("attribution")

	universeBars := make([]model.PriceBar, 0, len(bars))
	for _, bar := range bars {
		if _, ok := b.index[bar.Ticker]; ok {
			universeBars = append(universeBars, bar)
		}
	}
	cal := NewTradingCalendar(universeBars)

	agg := NewDayAggregator()
	res := &Result{Mapping: mapping, Attribution: attribution}
	for _, h := range headlines {
		if h.PublishedAt.IsZero() {
			return nil, &model.DataError{Source: "features", Msg: fmt.Sprintf("headline %s has no timezone-aware published_at", h.ID)}
		}

		tickers, reason := b.tickersFor(h)
		if len(tickers) == 0 {
			mapping.Exclude(reason)
			continue
		}
		mapping.Out++

		score := b.score(h)
		res.Scores = append(res.Scores, model.SentimentScore{HeadlineID: h.ID, Compound: score})

		day := AttributionDay(h.PublishedAt, b.opts.Location, b.opts.Cutoff)
		for _, ticker := range tickers {
			attribution.In++
			tradingDay, ok := cal.OnOrAfter(ticker, day)
			if !ok {
				if len(cal[ticker]) == 0 {
					attribution.Exclude(model.ReasonNoPriceHistory)
				} else {
					attribution.Exclude(model.ReasonBeyondPriceHistory)
				}
				continue
			}
			attribution.Out++
			if !tradingDay.Equal(calendarDay(h.PublishedAt, b.opts.Location)) {
				res.LateAttributed++
			}
			agg.Add(ticker, tradingDay, score)
		}
	}

	res.Counts = model.NewStageCounts("features")
	res.Rows = b.emitRows(cal, agg, res.Counts)

	b.logger.Info("Features built",
		zap.Int("headlines", mapping.In),
		zap.Int("pairs", attribution.In),
		zap.Int("rows", res.Counts.Out),
		zap.Int("buckets_with_news", agg.Len()),
		zap.Int("late_attributed", res.LateAttributed),
		zap.String("policy", string(b.opts.Policy)))
	for _, counts := range []*model.StageCounts{mapping, attribution} {
		for _, reason := range counts.Reasons() {
			b.logger.Warn("Headlines excluded from features",
				zap.String("stage", counts.Stage),
				zap.String("reason", reason),
				zap.Int("count", counts.Excluded[reason]))
		}
	}
	return res, nil
}

// tickersFor 上游给出的 ticker 优先，否则使用别名匹配
func (b *Builder) tickersFor(h model.Headline) ([]string, string) {
	if h.MatchedTicker != "" {
		if _, err := b.index.SectorOf(h.MatchedTicker); err != nil {
			return nil, model.ReasonUnknownTicker
		}
		return []string{h.MatchedTicker}, ""
	}
	if b.mapper == nil {
		return nil, model.ReasonNoAliasMatch
	}
	return b.mapper.Match(h.Text), model.ReasonNoAliasMatch
}

// score 预先计算的情绪分优先
func (b *Builder) score(h model.Headline) float64 {
	if h.Sentiment != nil {
		return *h.Sentiment
	}
	return b.scorer.Score(h.Text)
}

// emitRows 按交易日历输出特征行，并计算情绪均线
func (b *Builder) emitRows(cal TradingCalendar, agg *DayAggregator, counts *model.StageCounts) []model.FeatureRow {
	calc := ta.NewTACalculator(b.opts.SMAPeriod, b.opts.SMAPeriod)

	var rows []model.FeatureRow
	for _, ticker := range b.index.Tickers() {
		sector := b.index[ticker].Sector
		start := len(rows)
		for _, day := range cal[ticker] {
			counts.In++
			row := model.FeatureRow{Ticker: ticker, Date: day, Sector: sector}
			if bucket, ok := agg.Get(ticker, day); ok {
				row.MeanSentiment = bucket.Mean()
				row.MaxSentiment = bucket.Max
				row.HeadlineCount = bucket.Count
			} else if b.opts.Policy == PolicyDrop {
				counts.Exclude(model.ReasonNoHeadlines)
				continue
			}
			rows = append(rows, row)
			calc.Append(ticker, row.MeanSentiment)
		}
		if len(rows) == start {
			continue
		}
		data, err := calc.Calculate(ticker)
		if err != nil {
			continue
		}
		for i := range rows[start:] {
			rows[start+i].SentimentSMA5 = data.SMA[i]
		}
	}

	counts.Out = len(rows)

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	return rows
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
