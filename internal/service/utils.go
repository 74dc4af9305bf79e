package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // 保证没有系统时区库的环境也能加载 America/New_York

	"news-sector-backtest/internal/model"
)

// DateLayout 交易日的文本格式
const DateLayout = "2006-01-02"

// Undefined NaN 统计量在输出表格中的写法
const Undefined = "undefined"

func StringToFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FormatFloat 输出用的浮点格式；NaN/Inf 写成 "undefined"。
// 使用最短的可精确还原表示，中间产物读回后与写出前逐位相等
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Undefined
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseFloatOrNaN 读取输出表格时把 "undefined" 还原为 NaN
func ParseFloatOrNaN(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == Undefined || s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// NormalizeDate 截断到 UTC 零点，交易日统一用这个形式做 map key
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析交易日，兼容带时间部分的写法 ("2024-01-02 00:00:00")
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// 带时区的时间戳格式
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -0700 MST",
	"20060102T150405Z07:00", // GDELT seendate
}

// 不带时区的时间戳格式：能解析但必须拒绝
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"20060102T150405",
	"20060102150405",
}

// ParseTimestamp 解析新闻发布时间。只接受带时区的时间戳，
// 无时区的时间戳返回 *model.DataError
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &model.DataError{Msg: "missing timestamp"}
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return time.Time{}, &model.DataError{Msg: fmt.Sprintf("timestamp %q is not timezone-aware", s)}
		}
	}
	return time.Time{}, &model.DataError{Msg: fmt.Sprintf("unparseable timestamp %q", s)}
}

// ParseClock 将 "15:30" 或 "15:30:00" 解析为距零点的时长
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// LoadLocation 加载时区；兼容 "US/Eastern" 这类旧名称
func LoadLocation(name string) (*time.Location, error) {
	if name == "US/Eastern" {
		name = "America/New_York"
	}
	return time.LoadLocation(name)
}
