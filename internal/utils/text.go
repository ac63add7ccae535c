package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TruncateChars cuts s to at most max bytes, preferring to break at the last
// whitespace inside the budget so excerpts do not end mid-word. The cut never
// splits a multi-byte rune.
func TruncateChars(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:truncationIndex(s, max)]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n")
}

// truncationIndex returns the largest byte offset <= max that falls on a rune
// boundary of s.
func truncationIndex(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}

// ChunkText splits text into chunks of at most maxChars, breaking on sentence
// boundaries where possible. Used to keep TTS segments under provider limits.
func ChunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxChars {
		window := text[:maxChars]
		split := -1
		for _, sep := range []string{". ", "! ", "? ", "\n"} {
			if idx := strings.LastIndex(window, sep); idx > split {
				split = idx + len(sep)
			}
		}
		if split <= 0 {
			// No sentence boundary in the window; fall back to whitespace
			if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
				split = idx + 1
			} else {
				split = truncationIndex(text, maxChars)
				if split == 0 {
					split = maxChars
				}
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:split]))
		text = strings.TrimSpace(text[split:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// OutputFolderName derives a stable, collision-avoided folder name for one
// run's artifacts from the task text, source and start time.
func OutputFolderName(task, source string, startedAt time.Time) string {
	keyData := fmt.Sprintf("%s:%s:%d", task, source, startedAt.UnixNano())
	hash := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(hash[:])[:16]
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupStrings returns values with duplicates removed, preserving first-seen
// order. Used to keep ReportRecord.URLs a set.
func DedupStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
