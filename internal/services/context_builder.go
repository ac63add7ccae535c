package services

import (
	"fmt"
	"strings"

	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"
)

// ContextBuilder assembles the bounded context string one synthesis call
// consumes. Excerpts are labeled with their source identity so the model can
// cite; a source seen twice contributes once.
type ContextBuilder struct {
	maxChars int
}

// NewContextBuilder creates a builder with the given character budget
func NewContextBuilder(maxChars int) *ContextBuilder {
	if maxChars <= 0 {
		maxChars = 40000
	}
	return &ContextBuilder{maxChars: maxChars}
}

// Build concatenates web and document excerpts for one subtopic, deduplicated
// by source identity and truncated at the budget. Search snippets are used as
// a fallback for URLs the scraper could not extract.
func (b *ContextBuilder) Build(subtopicQuery string, searchResults []models.SearchResult, scrapedDocs []models.ScrapedDocument, docExcerpts []string) string {
	var sb strings.Builder
	seen := make(map[string]bool)

	// Cap each web excerpt so a single long page cannot consume the whole
	// budget before other sources contribute.
	perDocBudget := b.maxChars / 4

	for _, doc := range scrapedDocs {
		if doc.URL == "" || seen[doc.URL] {
			continue
		}
		seen[doc.URL] = true
		excerpt := fmt.Sprintf("Source: %s\nTitle: %s\n%s\n\n", doc.URL, doc.Title, utils.TruncateChars(doc.Text, perDocBudget))
		if !b.append(&sb, excerpt) {
			return sb.String()
		}
	}

	for _, result := range searchResults {
		if result.URL == "" || seen[result.URL] || result.Snippet == "" {
			continue
		}
		seen[result.URL] = true
		excerpt := fmt.Sprintf("Source: %s\nTitle: %s\n%s\n\n", result.URL, result.Title, result.Snippet)
		if !b.append(&sb, excerpt) {
			return sb.String()
		}
	}

	for _, excerpt := range docExcerpts {
		if excerpt == "" || seen[excerpt] {
			continue
		}
		seen[excerpt] = true
		if !b.append(&sb, excerpt+"\n\n") {
			return sb.String()
		}
	}

	return strings.TrimSpace(sb.String())
}

// append writes the excerpt, truncating the tail at the budget. Returns false
// once the budget is exhausted.
func (b *ContextBuilder) append(sb *strings.Builder, excerpt string) bool {
	remaining := b.maxChars - sb.Len()
	if remaining <= 0 {
		return false
	}
	if len(excerpt) > remaining {
		sb.WriteString(utils.TruncateChars(excerpt, remaining))
		return false
	}
	sb.WriteString(excerpt)
	return true
}
