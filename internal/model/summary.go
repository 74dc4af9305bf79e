package model

import "sort"

// StageCounts 一个流水线阶段的输入/输出数以及按原因统计的排除数。
// 同一阶段内 In、Out 与排除数使用同一计数单位，满足 In == Out + TotalExcluded()
type StageCounts struct {
	Stage    string         `toml:"stage"`
	In       int            `toml:"in"`
	Out      int            `toml:"out"`
	Excluded map[string]int `toml:"excluded"`
}

func NewStageCounts(stage string) *StageCounts {
	return &StageCounts{Stage: stage, Excluded: make(map[string]int)}
}

// Exclude 记录一次排除
func (s *StageCounts) Exclude(reason string) {
	s.Excluded[reason]++
}

// TotalExcluded 所有原因的排除总数
func (s *StageCounts) TotalExcluded() int {
	total := 0
	for _, n := range s.Excluded {
		total += n
	}
	return total
}

// Reasons 排序后的排除原因，日志输出稳定
func (s *StageCounts) Reasons() []string {
	out := make([]string, 0, len(s.Excluded))
	for r := range s.Excluded {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// 排除原因
const (
	ReasonBadRow             = "bad_row"
	ReasonNoAliasMatch       = "no_alias_match"
	ReasonUnknownTicker      = "unknown_ticker"
	ReasonNoPriceHistory     = "no_price_history"
	ReasonBeyondPriceHistory = "beyond_price_history"
	ReasonNoHeadlines        = "no_headlines"
	ReasonNoNextDay          = "no_next_day"
	ReasonBadClose           = "non_positive_close"
	ReasonUnorderedDates     = "duplicate_or_unordered_dates"
	ReasonNoLabel            = "no_label"
	ReasonNoFeature          = "no_feature"
	ReasonBalancedOut        = "balanced_downsample"
)
