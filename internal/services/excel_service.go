package services

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"

	"github.com/xuri/excelize/v2"
)

// ExcelService exports extracted tables as a spreadsheet, one sheet per table
type ExcelService struct{}

// NewExcelService creates a new spreadsheet export service
func NewExcelService() *ExcelService {
	return &ExcelService{}
}

// Render writes each table to its own sheet: title in row 1, header in row 2,
// data rows after. Sheet names are deduplicated and clamped to Excel's limit.
func (s *ExcelService) Render(tables []models.Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	usedNames := make(map[string]bool)
	for i, table := range tables {
		sheet := sheetName(table.Title, i, usedNames)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("failed to name sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("failed to add sheet: %w", err)
			}
		}

		if err := f.SetCellValue(sheet, "A1", table.Title); err != nil {
			return nil, err
		}
		for col, name := range table.Header {
			cell, err := excelize.CoordinatesToCellName(col+1, 2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, name); err != nil {
				return nil, err
			}
		}

		for rowIdx, row := range table.Values {
			cols := make([]int, 0, len(row))
			for key := range row {
				if col, err := strconv.Atoi(key); err == nil {
					cols = append(cols, col)
				}
			}
			sort.Ints(cols)
			for _, col := range cols {
				cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+3)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, row[strconv.Itoa(col)]); err != nil {
					return nil, err
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName produces a unique, Excel-safe sheet name from a table title
func sheetName(title string, index int, used map[string]bool) string {
	name := title
	for _, forbidden := range []string{":", "\\", "/", "?", "*", "[", "]"} {
		name = strings.ReplaceAll(name, forbidden, " ")
	}
	name = utils.NormalizeWhitespace(name)
	if name == "" {
		name = "Table"
	}
	if len(name) > 25 {
		name = strings.TrimSpace(utils.TruncateChars(name, 25))
	}
	candidate := name
	if used[candidate] {
		candidate = fmt.Sprintf("%s %d", name, index+1)
	}
	used[candidate] = true
	return candidate
}
