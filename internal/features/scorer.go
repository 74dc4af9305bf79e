package features

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

// VADER 的归一化常数和否定系数
const (
	normalizeAlpha = 15.0
	negationScalar = -0.74
	negationWindow = 3
)

// Scorer 给一条标题打 compound 情绪分，范围 [-1, 1]
type Scorer interface {
	Score(text string) float64
}

// ScorerFunc 让普通函数满足 Scorer
type ScorerFunc func(text string) float64

func (f ScorerFunc) Score(text string) float64 { return f(text) }

type lexiconFile struct {
	Negations []string           `yaml:"negations"`
	Boosters  map[string]float64 `yaml:"boosters"`
	Words     map[string]float64 `yaml:"words"`
}

// LexiconScorer 基于词典的情绪打分
type LexiconScorer struct {
	words     map[string]float64
	boosters  map[string]float64
	negations map[string]struct{}
}

// NewLexiconScorer 加载内置词典
func NewLexiconScorer() (*LexiconScorer, error) {
	var lex lexiconFile
	if err := yaml.Unmarshal(lexiconYAML, &lex); err != nil {
		return nil, fmt.Errorf("parse sentiment lexicon: %w", err)
	}
	s := &LexiconScorer{
		words:     lex.Words,
		boosters:  lex.Boosters,
		negations: make(map[string]struct{}, len(lex.Negations)),
	}
	for _, n := range lex.Negations {
		s.negations[n] = struct{}{}
	}
	return s, nil
}

// tokenize 小写并按非字母数字切分；撇号直接去掉 ("don't" -> "dont")
func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	text = strings.ReplaceAll(text, "’", "")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Score 累加词分 (考虑加强词和前 3 个词内的否定词)，再归一化到 [-1, 1]
func (s *LexiconScorer) Score(text string) float64 {
	tokens := tokenize(text)
	sum := 0.0
	for i, tok := range tokens {
		valence, ok := s.words[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if b, ok := s.boosters[tokens[i-1]]; ok {
				if valence > 0 {
					valence += b
				} else {
					valence -= b
				}
			}
		}
		for j := max(0, i-negationWindow); j < i; j++ {
			if _, ok := s.negations[tokens[j]]; ok {
				valence *= negationScalar
				break
			}
		}
		sum += valence
	}
	return normalize(sum)
}

func normalize(score float64) float64 {
	if score == 0 {
		return 0
	}
	norm := score / math.Sqrt(score*score+normalizeAlpha)
	return math.Max(-1, math.Min(1, norm))
}
