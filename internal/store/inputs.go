package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"news-sector-backtest/internal/model"
	"news-sector-backtest/internal/service"
	"news-sector-backtest/internal/universe"
)

// LoadUniverse 读取股票池。股票池是必需输入，任何错误都是致命的
func LoadUniverse(path string) ([]model.UniverseEntry, error) {
	t, err := readTable(path, "ticker", "sector")
	if err != nil {
		return nil, err
	}

	entries := make([]model.UniverseEntry, 0, len(t.rows))
	for _, row := range t.rows {
		entries = append(entries, model.UniverseEntry{
			Ticker:  strings.ToUpper(t.get(row, "ticker")),
			Company: t.get(row, "company"),
			Sector:  model.Sector(t.get(row, "sector")),
		})
	}
	if err := universe.Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadAliases 读取别名表；mode 列缺省为 word
func LoadAliases(path string) ([]model.AliasEntry, []error, error) {
	t, err := readTable(path, "ticker", "alias")
	if err != nil {
		return nil, nil, err
	}

	var (
		aliases []model.AliasEntry
		rowErrs []error
	)
	for i, row := range t.rows {
		ticker, alias := strings.ToUpper(t.get(row, "ticker")), t.get(row, "alias")
		if ticker == "" || alias == "" {
			rowErrs = append(rowErrs, t.rowError(i, "empty ticker or alias", nil))
			continue
		}
		mode := model.AliasMode(strings.ToLower(t.get(row, "mode")))
		if mode == "" {
			mode = model.AliasWord
		}
		aliases = append(aliases, model.AliasEntry{Ticker: ticker, Alias: alias, Mode: mode})
	}
	return aliases, rowErrs, nil
}

// LoadPrices 读取日线价格。无法解析的行跳过并以行级错误返回
func LoadPrices(path string) ([]model.PriceBar, []error, error) {
	t, err := readTable(path, "date", "ticker", "close")
	if err != nil {
		return nil, nil, err
	}

	var (
		bars    []model.PriceBar
		rowErrs []error
	)
	for i, row := range t.rows {
		date, err := service.ParseDate(t.get(row, "date"))
		if err != nil {
			rowErrs = append(rowErrs, t.rowError(i, "bad date", err))
			continue
		}
		ticker := strings.ToUpper(t.get(row, "ticker"))
		if ticker == "" {
			rowErrs = append(rowErrs, t.rowError(i, "empty ticker", nil))
			continue
		}
		closePx, err := decimal.NewFromString(t.get(row, "close"))
		if err != nil {
			rowErrs = append(rowErrs, t.rowError(i, "bad close", err))
			continue
		}

		bar := model.PriceBar{Ticker: ticker, Date: date, Close: closePx}
		bar.Open = optionalFloat(t.get(row, "open"))
		bar.High = optionalFloat(t.get(row, "high"))
		bar.Low = optionalFloat(t.get(row, "low"))
		bar.AdjClose = optionalFloat(t.get(row, "adj_close"))
		bar.Volume = optionalFloat(t.get(row, "volume"))
		bars = append(bars, bar)
	}
	return bars, rowErrs, nil
}

// LoadHeadlines 读取新闻标题。published_at 必须带时区，
// 无时区的行返回 *model.DataError 并被排除
func LoadHeadlines(path string) ([]model.Headline, []error, error) {
	t, err := readTable(path, "published_at", "title")
	if err != nil {
		return nil, nil, err
	}

	var (
		headlines []model.Headline
		rowErrs   []error
	)
	for i, row := range t.rows {
		title := t.get(row, "title")
		if title == "" {
			rowErrs = append(rowErrs, t.rowError(i, "empty title", nil))
			continue
		}
		ts, err := service.ParseTimestamp(t.get(row, "published_at"))
		if err != nil {
			rowErrs = append(rowErrs, t.rowError(i, "bad published_at", err))
			continue
		}

		h := model.Headline{
			ID:            t.get(row, "id"),
			Text:          title,
			PublishedAt:   ts,
			MatchedTicker: strings.ToUpper(t.get(row, "ticker")),
		}
		if h.ID == "" {
			h.ID = "h" + strconv.Itoa(i+1)
		}
		if raw := t.get(row, "sentiment"); raw != "" {
			score, err := service.StringToFloat(raw)
			if err != nil || math.IsNaN(score) || score < -1 || score > 1 {
				rowErrs = append(rowErrs, t.rowError(i, fmt.Sprintf("sentiment %q outside [-1, 1]", raw), err))
				continue
			}
			h.Sentiment = &score
		}
		headlines = append(headlines, h)
	}
	return headlines, rowErrs, nil
}

func optionalFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := service.StringToFloat(s)
	if err != nil {
		return 0
	}
	return f
}

// WriteUniverse 写出股票池 (--seed-universe)
func WriteUniverse(path string, entries []model.UniverseEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Ticker, e.Company, string(e.Sector)})
	}
	return WriteTable(path, []string{"ticker", "company", "sector"}, rows)
}

// WriteAliases 写出别名表 (--seed-universe)
func WriteAliases(path string, aliases []model.AliasEntry) error {
	rows := make([][]string, 0, len(aliases))
	for _, a := range aliases {
		rows = append(rows, []string{a.Ticker, a.Alias, string(a.Mode)})
	}
	return WriteTable(path, []string{"ticker", "alias", "mode"}, rows)
}
