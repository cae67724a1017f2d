// Package excel reads and writes the ministry catalog workbook.
package excel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a requested worksheet is absent.
var ErrSheetNotFound = errors.New("sheet not found")

// Workbook extracts named worksheets from an xlsx file.
// It implements pipeline.CatalogExtractor.
type Workbook struct {
	path   string
	sheets []string
	logger *slog.Logger
}

// NewWorkbook returns an extractor for the given sheets of the file at path,
// in the order they should be concatenated.
func NewWorkbook(path string, sheets []string, logger *slog.Logger) *Workbook {
	return &Workbook{path: path, sheets: sheets, logger: logger}
}

// ExtractSheets reads every configured sheet. The first row of a sheet is its
// header; trailing rows with no content are not returned.
func (w *Workbook) ExtractSheets(ctx context.Context) ([]domain.RawSheet, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", w.path, err)
	}
	defer f.Close()

	out := make([]domain.RawSheet, 0, len(w.sheets))
	for _, name := range w.sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx, err := f.GetSheetIndex(name)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, name, w.path)
		}

		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		rows = trimTrailingBlank(rows)

		sheet := domain.RawSheet{Name: name}
		if len(rows) > 0 {
			sheet.Header = rows[0]
			sheet.Rows = rows[1:]
		}
		w.logger.Debug("sheet read", "sheet", name, "rows", len(sheet.Rows))
		out = append(out, sheet)
	}
	return out, nil
}

func trimTrailingBlank(rows [][]string) [][]string {
	for len(rows) > 0 && isBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteCatalog saves sheets as a new workbook at path. Cells that parse as
// numbers are stored as numbers so the file reads back like the ministry one.
func WriteCatalog(path string, sheets []domain.RawSheet) error {
	if len(sheets) == 0 {
		return errors.New("write catalog: no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		idx, err := f.NewSheet(sheet.Name)
		if err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}

		if err := writeRow(f, sheet.Name, 1, sheet.Header); err != nil {
			return err
		}
		for j, row := range sheet.Rows {
			if err := writeRow(f, sheet.Name, j+2, row); err != nil {
				return err
			}
		}
	}

	// NewFile starts with a default sheet that the catalog does not have.
	if !hasSheet(sheets, "Sheet1") {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("delete default sheet: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %q: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		if v := domain.ParseOptionalFloat(c); v.Valid && strings.TrimSpace(c) == c {
			values[i] = v.Value
		} else {
			values[i] = c
		}
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write sheet %q row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func hasSheet(sheets []domain.RawSheet, name string) bool {
	for _, s := range sheets {
		if s.Name == name {
			return true
		}
	}
	return false
}
