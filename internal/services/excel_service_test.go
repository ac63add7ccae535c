package services

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"kb-research-report/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuri/excelize/v2"
)

func TestExcelRender(t *testing.T) {
	tables := []models.Table{
		{
			Title:  "Adoption rates",
			Header: []string{"Year", "Share"},
			Values: []map[string]string{
				{"0": "2024", "1": "31%"},
				{"1": "38%"}, // first cell was a placeholder
			},
		},
		{
			Title:  "Adoption rates", // duplicate title gets a unique sheet
			Header: []string{"Region"},
			Values: []map[string]string{{"0": "EMEA"}},
		},
	}

	data, err := NewExcelService().Render(tables)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 2)
	assert.NotEqual(t, sheets[0], sheets[1])

	title, err := f.GetCellValue(sheets[0], "A1")
	require.NoError(t, err)
	assert.Equal(t, "Adoption rates", title)

	header, err := f.GetCellValue(sheets[0], "A2")
	require.NoError(t, err)
	assert.Equal(t, "Year", header)

	cell, err := f.GetCellValue(sheets[0], "A3")
	require.NoError(t, err)
	assert.Equal(t, "2024", cell)

	// Sparse row: only column B is populated
	gap, err := f.GetCellValue(sheets[0], "A4")
	require.NoError(t, err)
	assert.Empty(t, gap)
	val, err := f.GetCellValue(sheets[0], "B4")
	require.NoError(t, err)
	assert.Equal(t, "38%", val)
}

func TestExcelRenderNoTables(t *testing.T) {
	_, err := NewExcelService().Render(nil)
	assert.Error(t, err)
}

func TestExcelSheetNameRuneSafe(t *testing.T) {
	tables := []models.Table{{
		Title:  strings.Repeat("ä", 20), // 40 bytes, clamp falls mid-rune
		Header: []string{"A"},
		Values: []map[string]string{{"0": "1"}},
	}}

	data, err := NewExcelService().Render(tables)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	assert.True(t, utf8.ValidString(sheets[0]), "sheet name must not split a rune")
	assert.LessOrEqual(t, len(sheets[0]), 25)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	markdown := "# Title\n\nIntro paragraph with **bold** text.\n\n## Section\n\n- first point\n- second point\n\n---\n\nClosing paragraph."
	data, err := NewPDFService().Render(markdown)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output is a PDF document")
}

func TestDocxRenderProducesDocument(t *testing.T) {
	data, err := NewDocxService().Render("# Title\n\nBody text.\n\n## Section\n\n- point")
	require.NoError(t, err)
	// DOCX files are ZIP archives
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "output is a ZIP container")
}
