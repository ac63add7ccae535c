package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
)

// PDFService renders report markdown into a PDF document
type PDFService struct{}

// NewPDFService creates a new PDF service
func NewPDFService() *PDFService {
	return &PDFService{}
}

// Render converts the report markdown into PDF bytes. Markdown handling is
// intentionally line-oriented: headings, bullets and paragraphs. Inline
// emphasis markers are stripped rather than styled.
func (s *PDFService) Render(markdown string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(108, 117, 125)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	translator := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	textWidth := pageWidth - left - right

	writeParagraph := func(text string, size float64, style string, r, g, b int) {
		pdf.SetFont("Arial", style, size)
		pdf.SetTextColor(r, g, b)
		pdf.MultiCell(textWidth, size*0.55, translator(text), "", "L", false)
		pdf.Ln(2)
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			pdf.Ln(2)
		case strings.HasPrefix(trimmed, "### "):
			writeParagraph(stripInlineMarkdown(trimmed[4:]), 12, "B", 60, 60, 60)
		case strings.HasPrefix(trimmed, "## "):
			pdf.Ln(2)
			writeParagraph(stripInlineMarkdown(trimmed[3:]), 14, "B", 40, 40, 40)
		case strings.HasPrefix(trimmed, "# "):
			writeParagraph(stripInlineMarkdown(trimmed[2:]), 18, "B", 20, 20, 20)
			pdf.Ln(2)
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			pdf.SetFont("Arial", "", 11)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(textWidth, 6, translator("  • "+stripInlineMarkdown(trimmed[2:])), "", "L", false)
		case strings.HasPrefix(trimmed, "---"):
			pdf.Ln(2)
			pdf.SetDrawColor(180, 180, 180)
			x, y := pdf.GetXY()
			pdf.Line(x, y, x+textWidth, y)
			pdf.Ln(4)
		default:
			writeParagraph(stripInlineMarkdown(trimmed), 11, "", 0, 0, 0)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// stripInlineMarkdown drops emphasis and link markers, keeping link text
func stripInlineMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")

	// [text](url) -> text (url)
	for {
		open := strings.Index(s, "[")
		if open < 0 {
			break
		}
		closeIdx := strings.Index(s[open:], "](")
		if closeIdx < 0 {
			break
		}
		closeIdx += open
		end := strings.Index(s[closeIdx:], ")")
		if end < 0 {
			break
		}
		end += closeIdx
		text := s[open+1 : closeIdx]
		url := s[closeIdx+2 : end]
		s = s[:open] + text + " (" + url + ")" + s[end+1:]
	}
	return s
}
