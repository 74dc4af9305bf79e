package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sector 板块 (GICS 简化分类)
type Sector string

const (
	SectorCommunication Sector = "Communication Services"
	SectorDiscretionary Sector = "Consumer Discretionary"
	SectorStaples       Sector = "Consumer Staples"
	SectorEnergy        Sector = "Energy"
	SectorFinancials    Sector = "Financials"
	SectorHealthcare    Sector = "Healthcare"
	SectorIndustrials   Sector = "Industrials"
	SectorMaterials     Sector = "Materials"
	SectorRealEstate    Sector = "Real Estate"
	SectorTechnology    Sector = "Technology"
	SectorUtilities     Sector = "Utilities"
)

// AllSectors 按字母排序的全部板块，所有运行必须保持一致
var AllSectors = []Sector{
	SectorCommunication,
	SectorDiscretionary,
	SectorStaples,
	SectorEnergy,
	SectorFinancials,
	SectorHealthcare,
	SectorIndustrials,
	SectorMaterials,
	SectorRealEstate,
	SectorTechnology,
	SectorUtilities,
}

// IsKnownSector 判断是否为已定义的板块
func IsKnownSector(s Sector) bool {
	for _, known := range AllSectors {
		if known == s {
			return true
		}
	}
	return false
}

// UniverseEntry 可交易股票及其板块
type UniverseEntry struct {
	Ticker  string
	Company string
	Sector  Sector
}

// AliasMode 别名匹配方式
type AliasMode string

const (
	AliasWord     AliasMode = "word"     // 单词边界匹配 (品牌名)
	AliasContains AliasMode = "contains" // 子串匹配 (多词短语)
)

// AliasEntry 公司名称/品牌别名 -> ticker
type AliasEntry struct {
	Ticker string
	Alias  string
	Mode   AliasMode
}

// PriceBar 日线价格
type PriceBar struct {
	Ticker   string
	Date     time.Time // 交易日 (UTC 零点)
	Open     float64
	High     float64
	Low      float64
	Close    decimal.Decimal // 收盘价，用 decimal 计算收益避免浮点误差
	AdjClose float64
	Volume   float64
}

// Headline 新闻标题 (入库后不可变)
type Headline struct {
	ID            string
	Text          string
	PublishedAt   time.Time // 必须带时区
	MatchedTicker string    // 可选：上游已经匹配的 ticker
	Sentiment     *float64  // 可选：上游已计算的 compound 分数
}

// SentimentScore 每条标题一个 compound 分数，范围 [-1, 1]
type SentimentScore struct {
	HeadlineID string
	Compound   float64
}

// FeatureRow 每个 (ticker, 交易日) 的情绪特征
type FeatureRow struct {
	Ticker        string
	Date          time.Time
	Sector        Sector
	MeanSentiment float64
	MaxSentiment  float64
	HeadlineCount int
	SentimentSMA5 float64 // 诊断列，不进入分类器
}

// Label 次日涨跌标签
type Label string

const (
	LabelUp   Label = "up"
	LabelDown Label = "down"
)

// LabelRow 次日收益和标签
type LabelRow struct {
	Ticker        string
	Date          time.Time
	NextDayReturn float64
	Label         Label
}

// TrainingRow 特征与标签按 (ticker, date) 连接后的训练样本
type TrainingRow struct {
	FeatureRow
	NextDayReturn float64
	Label         Label
}
