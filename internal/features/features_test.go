package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/universe"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(f float64) *float64 { return &f }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func fixture(t *testing.T) (universe.Index, *universe.Mapper, []model.PriceBar) {
	t.Helper()
	idx := universe.NewIndex([]model.UniverseEntry{
		{Ticker: "AAPL", Sector: model.SectorTechnology},
		{Ticker: "XOM", Sector: model.SectorEnergy},
	})
	mapper, rejected := universe.NewMapper([]model.AliasEntry{
		{Ticker: "AAPL", Alias: "apple", Mode: model.AliasWord},
		{Ticker: "XOM", Alias: "exxon", Mode: model.AliasWord},
	}, idx)
	require.Empty(t, rejected)

	px := decimal.NewFromInt(100)
	bars := []model.PriceBar{
		// 2024-01-04 周四, 01-05 周五, 01-08 周一
		{Ticker: "AAPL", Date: day(2024, 1, 4), Close: px},
		{Ticker: "AAPL", Date: day(2024, 1, 5), Close: px},
		{Ticker: "AAPL", Date: day(2024, 1, 8), Close: px},
		{Ticker: "XOM", Date: day(2024, 1, 4), Close: px},
		{Ticker: "XOM", Date: day(2024, 1, 5), Close: px},
		{Ticker: "SPY", Date: day(2024, 1, 4), Close: px},
	}
	return idx, mapper, bars
}

func fixtureHeadlines(t *testing.T) []model.Headline {
	return []model.Headline{
		{ID: "h1", Text: "Apple opens store", PublishedAt: mustTime(t, "2024-01-04T10:00:00-05:00"), Sentiment: ptr(0.5)},
		{ID: "h2", Text: "Apple at the cutoff", PublishedAt: mustTime(t, "2024-01-04T15:30:00-05:00"), Sentiment: ptr(0.1)},
		{ID: "h3", Text: "Apple after the cutoff", PublishedAt: mustTime(t, "2024-01-04T15:31:00-05:00"), Sentiment: ptr(-0.4)},
		{ID: "h4", Text: "Apple on a Saturday", PublishedAt: mustTime(t, "2024-01-06T12:00:00-05:00"), Sentiment: ptr(0.8)},
		{ID: "h5", Text: "Apple after the last bar", PublishedAt: mustTime(t, "2024-01-08T16:00:00-05:00"), Sentiment: ptr(0.9)},
		{ID: "h6", Text: "Index fund flows", PublishedAt: mustTime(t, "2024-01-04T10:00:00-05:00"), MatchedTicker: "SPY"},
		{ID: "h7", Text: "Weather report", PublishedAt: mustTime(t, "2024-01-04T10:00:00-05:00")},
	}
}

func newTestBuilder(t *testing.T, policy Policy) (*Builder, []model.PriceBar) {
	idx, mapper, bars := fixture(t)
	scorer, err := NewLexiconScorer()
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Policy = policy
	return NewBuilder(idx, mapper, scorer, opts, zap.NewNop()), bars
}

func TestBuildNeutralFill(t *testing.T) {
	b, bars := newTestBuilder(t, PolicyNeutral)
	res, err := b.Build(context.Background(), fixtureHeadlines(t), bars)
	require.NoError(t, err)

	type key struct {
		ticker string
		date   time.Time
	}
	got := make(map[key]model.FeatureRow)
	for _, r := range res.Rows {
		got[key{r.Ticker, r.Date}] = r
	}
	require.Len(t, res.Rows, 5, "every price date of every universe ticker gets a row")

	thu := got[key{"AAPL", day(2024, 1, 4)}]
	assert.Equal(t, 2, thu.HeadlineCount, "15:30:00 is still inside the cutoff")
	assert.InDelta(t, 0.3, thu.MeanSentiment, 1e-12)
	assert.InDelta(t, 0.5, thu.MaxSentiment, 1e-12)
	assert.Equal(t, model.SectorTechnology, thu.Sector)

	fri := got[key{"AAPL", day(2024, 1, 5)}]
	assert.Equal(t, 1, fri.HeadlineCount, "15:31 headline moves to the next trading day")
	assert.InDelta(t, -0.4, fri.MeanSentiment, 1e-12)

	mon := got[key{"AAPL", day(2024, 1, 8)}]
	assert.Equal(t, 1, mon.HeadlineCount, "weekend headline moves to Monday")
	assert.InDelta(t, 0.8, mon.MeanSentiment, 1e-12)

	xom := got[key{"XOM", day(2024, 1, 4)}]
	assert.Equal(t, 0, xom.HeadlineCount)
	assert.Equal(t, 0.0, xom.MeanSentiment)
	assert.Equal(t, 0.0, xom.MaxSentiment)

	assert.Equal(t, 2, res.LateAttributed)

	assert.Equal(t, 7, res.Mapping.In)
	assert.Equal(t, 5, res.Mapping.Out)
	assert.Equal(t, 1, res.Mapping.Excluded[model.ReasonUnknownTicker])
	assert.Equal(t, 1, res.Mapping.Excluded[model.ReasonNoAliasMatch])

	assert.Equal(t, 5, res.Attribution.In)
	assert.Equal(t, 4, res.Attribution.Out)
	assert.Equal(t, 1, res.Attribution.Excluded[model.ReasonBeyondPriceHistory])

	assert.Equal(t, 5, res.Counts.In)
	assert.Equal(t, 5, res.Counts.Out)
	assert.Empty(t, res.Counts.Excluded)

	// 输出按 (日期, ticker) 排序
	for i := 1; i < len(res.Rows); i++ {
		prev, cur := res.Rows[i-1], res.Rows[i]
		assert.True(t, prev.Date.Before(cur.Date) || (prev.Date.Equal(cur.Date) && prev.Ticker < cur.Ticker))
	}
}

func TestBuildDropPolicy(t *testing.T) {
	b, bars := newTestBuilder(t, PolicyDrop)
	res, err := b.Build(context.Background(), fixtureHeadlines(t), bars)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	for _, r := range res.Rows {
		assert.Equal(t, "AAPL", r.Ticker)
		assert.Positive(t, r.HeadlineCount)
	}
	assert.Equal(t, 5, res.Counts.In)
	assert.Equal(t, 2, res.Counts.Excluded[model.ReasonNoHeadlines])
}

func TestStageCountsReconcile(t *testing.T) {
	for _, policy := range []Policy{PolicyNeutral, PolicyDrop} {
		t.Run(string(policy), func(t *testing.T) {
			b, bars := newTestBuilder(t, policy)
			res, err := b.Build(context.Background(), fixtureHeadlines(t), bars)
			require.NoError(t, err)
			for _, c := range []*model.StageCounts{res.Mapping, res.Attribution, res.Counts} {
				assert.Equal(t, c.In, c.Out+c.TotalExcluded(), c.Stage)
			}
		})
	}
}

func TestBuildRejectsMissingTimestamp(t *testing.T) {
	b, bars := newTestBuilder(t, PolicyNeutral)
	_, err := b.Build(context.Background(), []model.Headline{{ID: "x", Text: "Apple"}}, bars)
	var dataErr *model.DataError
	require.True(t, errors.As(err, &dataErr))
}

func TestBuildUsesScorerWithoutPrecomputedSentiment(t *testing.T) {
	b, bars := newTestBuilder(t, PolicyDrop)
	res, err := b.Build(context.Background(), []model.Headline{
		{ID: "a", Text: "Exxon profits surge", PublishedAt: mustTime(t, "2024-01-04T09:00:00-05:00")},
	}, bars)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "XOM", res.Rows[0].Ticker)
	assert.Greater(t, res.Rows[0].MeanSentiment, 0.0)
	require.Len(t, res.Scores, 1)
	assert.Equal(t, "a", res.Scores[0].HeadlineID)
}

func TestBuildCancelled(t *testing.T) {
	b, bars := newTestBuilder(t, PolicyNeutral)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Build(ctx, fixtureHeadlines(t), bars)
	assert.ErrorIs(t, err, context.Canceled)
}

// 任何时刻发布的新闻，归属日要么是发布当天 (且不晚于截止时间)，要么是之后的日期
func TestAttributionNeverLeaks(t *testing.T) {
	opts := DefaultOptions()
	start := mustTime(t, "2024-03-08T00:00:00-05:00") // 跨越夏令时切换
	for ts := start; ts.Before(start.Add(72 * time.Hour)); ts = ts.Add(7 * time.Minute) {
		attributed := AttributionDay(ts, opts.Location, opts.Cutoff)
		local := ts.In(opts.Location)
		published := day(local.Year(), local.Month(), local.Day())

		if attributed.Equal(published) {
			cutoff := time.Date(local.Year(), local.Month(), local.Day(), 15, 30, 0, 0, opts.Location)
			assert.False(t, ts.After(cutoff), "headline at %s leaked into %s", ts, attributed)
		} else {
			assert.Equal(t, published.AddDate(0, 0, 1), attributed)
		}
	}
}

func TestTradingCalendarOnOrAfter(t *testing.T) {
	_, _, bars := fixture(t)
	cal := NewTradingCalendar(bars)

	got, ok := cal.OnOrAfter("AAPL", day(2024, 1, 6))
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 8), got)

	_, ok = cal.OnOrAfter("AAPL", day(2024, 1, 9))
	assert.False(t, ok)
	_, ok = cal.OnOrAfter("MSFT", day(2024, 1, 4))
	assert.False(t, ok)
}

func TestLexiconScorer(t *testing.T) {
	s, err := NewLexiconScorer()
	require.NoError(t, err)

	tests := []struct {
		text string
		sign int
	}{
		{"Apple beats estimates as profits surge", 1},
		{"Exxon shares plunge after lawsuit", -1},
		{"Company holds annual meeting", 0},
		{"", 0},
		{"Bank does not expect losses", 1},
		{"Outlook is not good", -1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			score := s.Score(tt.text)
			assert.GreaterOrEqual(t, score, -1.0)
			assert.LessOrEqual(t, score, 1.0)
			switch tt.sign {
			case 1:
				assert.Greater(t, score, 0.0)
			case -1:
				assert.Less(t, score, 0.0)
			default:
				assert.Equal(t, 0.0, score)
			}
		})
	}

	assert.Greater(t, s.Score("very strong quarter"), s.Score("strong quarter"))
}
