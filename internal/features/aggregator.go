package features

import (
	"math"
	"sort"
	"time"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
)

// TradingCalendar 每个 ticker 有价格的交易日 (升序、去重)
type TradingCalendar map[string][]time.Time

// NewTradingCalendar 从日线价格构建交易日历
func NewTradingCalendar(bars []model.PriceBar) TradingCalendar {
	seen := make(map[string]map[time.Time]struct{})
	for _, b := range bars {
		day := service.NormalizeDate(b.Date)
		if seen[b.Ticker] == nil {
			seen[b.Ticker] = make(map[time.Time]struct{})
		}
		seen[b.Ticker][day] = struct{}{}
	}

	cal := make(TradingCalendar, len(seen))
	for ticker, days := range seen {
		dates := make([]time.Time, 0, len(days))
		for d := range days {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		cal[ticker] = dates
	}
	return cal
}

// OnOrAfter 返回 ticker 在 day 当天或之后的第一个交易日
func (c TradingCalendar) OnOrAfter(ticker string, day time.Time) (time.Time, bool) {
	dates := c[ticker]
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(day) })
	if i == len(dates) {
		return time.Time{}, false
	}
	return dates[i], true
}

// AttributionDay 新闻可以被使用的最早日历日：
// 截止时间 (含) 之前发布的归属当天，之后发布的归属下一个日历日
func AttributionDay(publishedAt time.Time, loc *time.Location, cutoff time.Duration) time.Time {
	local := publishedAt.In(loc)
	y, m, d := local.Date()
	h, mi, sec := local.Clock()
	clock := time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(local.Nanosecond())

	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if clock > cutoff {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

type bucketKey struct {
	ticker string
	date   time.Time
}

// DayBucket 一个 (ticker, 交易日) 上已归属的新闻情绪
type DayBucket struct {
	Ticker string
	Date   time.Time
	Sum    float64
	Max    float64
	Count  int
}

// Mean 平均情绪；空桶为 0
func (b *DayBucket) Mean() float64 {
	if b.Count == 0 {
		return 0
	}
	return b.Sum / float64(b.Count)
}

// DayAggregator 按 (ticker, 交易日) 聚合新闻情绪
type DayAggregator struct {
	buckets map[bucketKey]*DayBucket
}

func NewDayAggregator() *DayAggregator {
	return &DayAggregator{buckets: make(map[bucketKey]*DayBucket)}
}

// Add 把一条新闻的情绪分累加到对应的桶
func (agg *DayAggregator) Add(ticker string, date time.Time, score float64) {
	key := bucketKey{ticker: ticker, date: date}
	b, ok := agg.buckets[key]
	if !ok {
		b = &DayBucket{Ticker: ticker, Date: date, Max: math.Inf(-1)}
		agg.buckets[key] = b
	}
	b.Sum += score
	b.Max = math.Max(b.Max, score)
	b.Count++
}

// Get 查询桶；没有任何新闻时返回 false
func (agg *DayAggregator) Get(ticker string, date time.Time) (*DayBucket, bool) {
	b, ok := agg.buckets[bucketKey{ticker: ticker, date: date}]
	return b, ok
}

// Len 非空桶数量
func (agg *DayAggregator) Len() int {
	return len(agg.buckets)
}
