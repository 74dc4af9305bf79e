package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"news-sector-backtest/internal/model"
)

// table 一张已读入内存的 CSV 表 (第一行为表头)
type table struct {
	path   string
	header map[string]int
	rows   [][]string
}

// normalizeColumn "Adj Close" -> "adj_close"
func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

// readTable 读取整张表，并检查必需列
// 文件不存在时返回包装了 model.ErrMissingArtifact 的错误
func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrMissingArtifact, path)
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &model.DataError{Source: path, Msg: "malformed csv", Err: err}
	}
	if len(records) == 0 {
		return nil, &model.DataError{Source: path, Msg: "empty file, header row expected"}
	}

	t := &table{path: path, header: make(map[string]int, len(records[0])), rows: records[1:]}
	for i, name := range records[0] {
		t.header[normalizeColumn(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	for _, col := range required {
		if _, ok := t.header[col]; !ok {
			return nil, &model.DataError{Source: path, Msg: fmt.Sprintf("schema mismatch: missing column %q", col)}
		}
	}
	return t, nil
}

// get 取某行某列的值；列不存在或该行字段不足时返回空串
func (t *table) get(row []string, col string) string {
	i, ok := t.header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowError 行级错误，行号按文件行计算 (表头为第 1 行)
func (t *table) rowError(i int, msg string, err error) error {
	return &model.DataError{Source: filepath.Base(t.path), Row: i + 2, Msg: msg, Err: err}
}

// WriteTable 写出一张完整的表，必要时创建目录
func WriteTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
