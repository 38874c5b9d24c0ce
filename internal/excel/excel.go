// Package excel читает и пишет табличные xlsx-файлы.
//
// Первая строка листа — заголовок, остальные — данные. Все значения
// читаются как строки в том виде, в каком их показывает Excel.
package excel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound — в книге нет листа с указанным именем.
var ErrSheetNotFound = errors.New("sheet not found")

// Table — содержимое листа.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column возвращает индекс колонки по имени без учёта регистра (-1, если нет).
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Value возвращает значение ячейки строки по имени колонки.
func (t *Table) Value(row []string, column string) string {
	i := t.Column(column)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Records возвращает строки как map заголовок → значение.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// Filter возвращает таблицу со строками, для которых keep вернул true.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := &Table{Header: t.Header}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Read читает лист книги. Пустое имя листа — первый лист.
func Read(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrSheetNotFound, sheet, path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	t := &Table{}
	if len(rows) == 0 {
		return t, nil
	}
	t.Header = rows[0]
	for _, row := range rows[1:] {
		if isEmpty(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write сохраняет таблицу в новую книгу с одним листом.
func Write(path, sheet string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := fill(f, sheet, t); err != nil {
		return err
	}
	return save(f, path)
}

// WriteFromTemplate копирует книгу-шаблон и заполняет лист таблицей.
// Форматирование и остальные листы шаблона сохраняются.
func WriteFromTemplate(templatePath, path, sheet string, t *Table) error {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return fmt.Errorf("open template %s: %w", templatePath, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}
	if err := fill(f, sheet, t); err != nil {
		return err
	}
	return save(f, path)
}

func fill(f *excelize.File, sheet string, t *Table) error {
	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}

func save(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func isEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// IsTrue распознаёт булевы значения Excel: TRUE, VERDADERO, 1.
func IsTrue(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "TRUE", "VERDADERO", "1", "YES", "SI", "SÍ":
		return true
	default:
		return false
	}
}

// IsFalse распознаёт FALSE, FALSO, 0.
func IsFalse(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "FALSE", "FALSO", "0", "NO":
		return true
	default:
		return false
	}
}
