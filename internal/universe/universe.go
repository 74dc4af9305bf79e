package universe

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"news-sector-backtest/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type seedEntry struct {
	Ticker  string `yaml:"ticker"`
	Company string `yaml:"company"`
	Sector  string `yaml:"sector"`
}

type seedAlias struct {
	Alias string `yaml:"alias"`
	Mode  string `yaml:"mode"`
}

type seedFile struct {
	Universe []seedEntry            `yaml:"universe"`
	Aliases  map[string][]seedAlias `yaml:"aliases"`
}

// Defaults 返回内置的股票池和别名表 (别名按 ticker 排序，输出稳定)
func Defaults() ([]model.UniverseEntry, []model.AliasEntry, error) {
	var seed seedFile
	if err := yaml.Unmarshal(defaultsYAML, &seed); err != nil {
		return nil, nil, fmt.Errorf("parse built-in universe: %w", err)
	}

	entries := make([]model.UniverseEntry, 0, len(seed.Universe))
	for _, e := range seed.Universe {
		entries = append(entries, model.UniverseEntry{
			Ticker:  strings.ToUpper(strings.TrimSpace(e.Ticker)),
			Company: e.Company,
			Sector:  model.Sector(e.Sector),
		})
	}
	if err := Validate(entries); err != nil {
		return nil, nil, err
	}

	tickers := make([]string, 0, len(seed.Aliases))
	for t := range seed.Aliases {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var aliases []model.AliasEntry
	for _, t := range tickers {
		for _, a := range seed.Aliases[t] {
			aliases = append(aliases, model.AliasEntry{
				Ticker: strings.ToUpper(t),
				Alias:  a.Alias,
				Mode:   model.AliasMode(a.Mode),
			})
		}
	}
	return entries, aliases, nil
}

// Validate 检查 ticker 唯一且每个 ticker 恰好属于一个已知板块
func Validate(entries []model.UniverseEntry) error {
	seen := make(map[string]model.Sector, len(entries))
	for _, e := range entries {
		if e.Ticker == "" {
			return &model.DataError{Source: "universe", Msg: "empty ticker"}
		}
		if prev, ok := seen[e.Ticker]; ok {
			return &model.DataError{Source: "universe", Msg: fmt.Sprintf("duplicate ticker %s (sectors %q, %q)", e.Ticker, prev, e.Sector)}
		}
		if !model.IsKnownSector(e.Sector) {
			return &model.DataError{Source: "universe", Msg: fmt.Sprintf("ticker %s has unknown sector %q", e.Ticker, e.Sector)}
		}
		seen[e.Ticker] = e.Sector
	}
	return nil
}

// Index ticker -> UniverseEntry
type Index map[string]model.UniverseEntry

func NewIndex(entries []model.UniverseEntry) Index {
	idx := make(Index, len(entries))
	for _, e := range entries {
		idx[e.Ticker] = e
	}
	return idx
}

// SectorOf 查询 ticker 所属板块；不在股票池中返回 *model.AlignmentError
func (idx Index) SectorOf(ticker string) (model.Sector, error) {
	e, ok := idx[ticker]
	if !ok {
		return "", &model.AlignmentError{Ticker: ticker, Reason: "ticker not in universe"}
	}
	return e.Sector, nil
}

// Tickers 排序后的 ticker 列表
func (idx Index) Tickers() []string {
	out := make([]string, 0, len(idx))
	for t := range idx {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
