package model

import (
	"errors"
	"fmt"
)

// ErrMissingArtifact 必需的输入文件不存在（流水线级错误，直接终止运行）
var ErrMissingArtifact = errors.New("required input artifact missing")

// DataError 数据格式错误：时间戳缺失/无时区、列缺失、数值非法等
type DataError struct {
	Source string // 出错的文件或 stage
	Row    int    // 行号 (从 1 开始，0 表示非行级错误)
	Msg    string
	Err    error
}

func (e *DataError) Error() string {
	prefix := "data error"
	if e.Source != "" {
		prefix += " [" + e.Source + "]"
	}
	if e.Row > 0 {
		prefix += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *DataError) Unwrap() error { return e.Err }

// AlignmentError ticker 没有匹配的别名或板块
type AlignmentError struct {
	Ticker string
	Reason string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment error: ticker %q: %s", e.Ticker, e.Reason)
}

// InsufficientDataError 板块/日期分区样本太少，统计量无定义
type InsufficientDataError struct {
	Sector string
	Metric string
	N      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: sector %q: %s undefined (n=%d)", e.Sector, e.Metric, e.N)
}

// FitError 分类器无法训练（例如训练集标签只有一个类别）
type FitError struct {
	Reason string
	Err    error
}

func (e *FitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit error: %s: %v", e.Reason, e.Err)
	}
	return "fit error: " + e.Reason
}

func (e *FitError) Unwrap() error { return e.Err }
