package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// DocxService renders report markdown into a Word document
type DocxService struct{}

// NewDocxService creates a new DOCX service
func NewDocxService() *DocxService {
	return &DocxService{}
}

// Render converts the report markdown into DOCX bytes. Same line-oriented
// markdown handling as the PDF renderer.
func (s *DocxService) Render(markdown string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "### "):
			doc.AddParagraph().AddText(stripInlineMarkdown(trimmed[4:])).Size("26").Bold()
		case strings.HasPrefix(trimmed, "## "):
			doc.AddParagraph().AddText(stripInlineMarkdown(trimmed[3:])).Size("30").Bold()
		case strings.HasPrefix(trimmed, "# "):
			doc.AddParagraph().AddText(stripInlineMarkdown(trimmed[2:])).Size("40").Bold()
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			doc.AddParagraph().AddText("• " + stripInlineMarkdown(trimmed[2:])).Size("22")
		case strings.HasPrefix(trimmed, "---"):
			doc.AddParagraph().AddText("")
		default:
			doc.AddParagraph().AddText(stripInlineMarkdown(trimmed)).Size("22")
		}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render DOCX: %w", err)
	}
	return buf.Bytes(), nil
}
