package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
)

const subtopicSystemPrompt = `You are a research analyst writing one section of a larger report. Write well-structured markdown with "##" subsection headings. Ground every claim in the provided context and cite sources inline in the requested citation style. Do not invent sources. Do not add a conclusion for the overall report; cover only the assigned subtopic.`

const mergeSystemPrompt = `You are an editor assembling a final research report from drafted sections. Produce a single coherent markdown document: start with a "# " title and a short introduction, keep every section's substance and citations, remove duplicated passages, and end with a conclusion. Do not append a sources list; it is added separately.`

// Synthesizer turns per-subtopic context into prose and merges the drafts
// into one document. Word count and citation style are passed through to the
// model as instructions; compliance is best effort.
type Synthesizer struct {
	llm        LLMClient
	smartModel string
	config     config.PipelineConfig
}

// NewSynthesizer creates a synthesizer using the given LLM client
func NewSynthesizer(llm LLMClient, smartModel string, cfg config.PipelineConfig) *Synthesizer {
	return &Synthesizer{llm: llm, smartModel: smartModel, config: cfg}
}

// SynthesizeSubtopic drafts the markdown section for one subtopic from its
// context. An empty context yields an empty draft without a model call; a
// section with no source material would have nothing to cite.
func (s *Synthesizer) SynthesizeSubtopic(ctx context.Context, mainTask string, subtopic models.Subtopic, contextText string) (string, error) {
	if strings.TrimSpace(contextText) == "" {
		log.Printf("WARNING: no source material for subtopic %q", subtopic.Task)
		return "", nil
	}

	userPrompt := fmt.Sprintf(
		"Overall research task: %s\nAssigned subtopic: %s\nTarget length: about %d words\nCitation style: %s\n\nSource material:\n%s",
		mainTask, subtopic.Task, s.config.WordCount, s.config.CitationStyle, contextText,
	)

	draft, err := s.llm.Complete(ctx, subtopicSystemPrompt, userPrompt, CompletionOptions{})
	if err != nil {
		return "", fmt.Errorf("synthesis for subtopic %q failed: %w", subtopic.Task, err)
	}
	return strings.TrimSpace(draft), nil
}

// MergeSubtopics combines the non-empty subtopic drafts into the final
// document. With a single draft the model call is skipped. If the merge call
// fails, the drafts are concatenated instead; partial structure beats losing
// completed work.
func (s *Synthesizer) MergeSubtopics(ctx context.Context, mainTask string, drafts []string) string {
	var nonEmpty []string
	for _, d := range drafts {
		if strings.TrimSpace(d) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(d))
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0]
	}

	userPrompt := fmt.Sprintf(
		"Research task: %s\n\nDrafted sections:\n\n%s",
		mainTask, strings.Join(nonEmpty, "\n\n---\n\n"),
	)

	merged, err := s.llm.Complete(ctx, mergeSystemPrompt, userPrompt, CompletionOptions{Model: s.smartModel})
	if err != nil {
		log.Printf("WARNING: merge call failed, falling back to concatenation: %v", err)
		return fmt.Sprintf("# %s\n\n%s", mainTask, strings.Join(nonEmpty, "\n\n"))
	}
	return strings.TrimSpace(merged)
}

// BuildSourcesSection renders the deduplicated source list appended to every
// successful report
func BuildSourcesSection(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n## Sources\n\n")
	for _, u := range urls {
		sb.WriteString(fmt.Sprintf("- %s\n", u))
	}
	return sb.String()
}
