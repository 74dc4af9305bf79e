package universe

import (
	"regexp"
	"sort"
	"strings"

	"news-sector-backtest/internal/model"
)

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Normalize 小写、标点替换为空格、压缩空白
// 标题和别名使用同一套规则，"johnson & johnson" 与 "Johnson & Johnson's" 才能对上
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = punctRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

type compiledAlias struct {
	ticker string
	alias  string
	word   *regexp.Regexp // 仅 word 模式
}

// Mapper 将新闻标题映射到 ticker
type Mapper struct {
	aliases []compiledAlias
}

// NewMapper 编译别名表。ticker 不在股票池中的别名被跳过，
// 以 *model.AlignmentError 返回，由调用方计入运行摘要
func NewMapper(aliases []model.AliasEntry, idx Index) (*Mapper, []error) {
	m := &Mapper{}
	var rejected []error
	for _, a := range aliases {
		ticker := strings.ToUpper(strings.TrimSpace(a.Ticker))
		if _, err := idx.SectorOf(ticker); err != nil {
			rejected = append(rejected, err)
			continue
		}
		norm := Normalize(a.Alias)
		if norm == "" {
			rejected = append(rejected, &model.AlignmentError{Ticker: ticker, Reason: "empty alias"})
			continue
		}
		ca := compiledAlias{ticker: ticker, alias: norm}
		switch a.Mode {
		case model.AliasWord, "":
			ca.word = regexp.MustCompile(`\b` + regexp.QuoteMeta(norm) + `\b`)
		case model.AliasContains:
		default:
			rejected = append(rejected, &model.AlignmentError{Ticker: ticker, Reason: "unknown alias mode " + string(a.Mode)})
			continue
		}
		m.aliases = append(m.aliases, ca)
	}
	return m, rejected
}

// Len 已编译的别名数量
func (m *Mapper) Len() int {
	return len(m.aliases)
}

// Match 返回标题命中的 ticker (去重、排序)
func (m *Mapper) Match(title string) []string {
	norm := Normalize(title)
	if norm == "" {
		return nil
	}
	hits := make(map[string]struct{})
	for _, a := range m.aliases {
		if _, done := hits[a.ticker]; done {
			continue
		}
		var ok bool
		if a.word != nil {
			ok = a.word.MatchString(norm)
		} else {
			ok = strings.Contains(norm, a.alias)
		}
		if ok {
			hits[a.ticker] = struct{}{}
		}
	}
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, 0, len(hits))
	for t := range hits {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
