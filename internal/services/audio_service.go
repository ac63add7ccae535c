package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"kb-research-report/internal/config"
	"kb-research-report/internal/utils"
)

// AudioService produces the narration track for a report. The narration
// script is the report's introduction (everything before the first
// second-level heading); it is chunked to the TTS provider's input limit and
// the per-chunk WAV segments are concatenated into one file.
type AudioService struct {
	llm    LLMClient
	config config.OutputConfig
}

// NewAudioService creates a new audio narration service
func NewAudioService(llm LLMClient, cfg config.OutputConfig) *AudioService {
	return &AudioService{llm: llm, config: cfg}
}

// ExtractNarration returns the narration script for a report: the plain text
// preceding the first "## " heading, with markdown markers stripped.
func ExtractNarration(markdown string) string {
	var parts []string
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			break
		}
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "---"):
			continue
		case strings.HasPrefix(trimmed, "# "):
			parts = append(parts, stripInlineMarkdown(trimmed[2:])+".")
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			parts = append(parts, stripInlineMarkdown(trimmed[2:]))
		default:
			parts = append(parts, stripInlineMarkdown(trimmed))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Generate synthesizes the narration text as a single WAV file
func (s *AudioService) Generate(ctx context.Context, narration string) ([]byte, error) {
	narration = strings.TrimSpace(narration)
	if narration == "" {
		return nil, fmt.Errorf("empty narration text")
	}

	chunks := utils.ChunkText(narration, s.config.AudioChunkChars)
	segments := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		segment, err := s.llm.Speech(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("speech synthesis failed: %w", err)
		}
		segments = append(segments, segment)
	}
	return ConcatWAV(segments)
}

// ConcatWAV joins WAV segments into one file by appending their PCM data
// chunks under the first segment's header and fixing up the RIFF sizes.
// Segments must share a format, which holds for one synthesis run.
func ConcatWAV(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no audio segments")
	}
	if len(segments) == 1 {
		return segments[0], nil
	}

	first := segments[0]
	dataOffset, dataSize, err := findWAVDataChunk(first)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(first))
	out = append(out, first...)
	totalData := dataSize

	for _, segment := range segments[1:] {
		offset, size, err := findWAVDataChunk(segment)
		if err != nil {
			return nil, err
		}
		out = append(out, segment[offset:offset+size]...)
		totalData += size
	}

	// RIFF chunk size at offset 4, data chunk size preceding the data
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	binary.LittleEndian.PutUint32(out[dataOffset-4:dataOffset], uint32(totalData))
	return out, nil
}

// findWAVDataChunk locates the PCM payload inside a RIFF/WAVE file and
// returns its byte offset and size.
func findWAVDataChunk(b []byte) (int, int, error) {
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return 0, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	pos := 12
	for pos+8 <= len(b) {
		chunkID := string(b[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		if chunkID == "data" {
			if pos+8+chunkSize > len(b) {
				chunkSize = len(b) - pos - 8 // tolerate truncated size fields
			}
			return pos + 8, chunkSize, nil
		}
		pos += 8 + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	return 0, 0, fmt.Errorf("no data chunk in WAV file")
}
