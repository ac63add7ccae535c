package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
	"kb-research-report/internal/validation"
)

const plannerSystemPrompt = `You are a research planner. Decompose the user's research task into focused subtopics that together cover the task. Respond with a JSON object of the form {"subtopics": [{"task": "..."}]}. Return JSON only, no prose, no code fences.`

// Planner decomposes a report task into subtopics. The "research" and
// "subtopic" report types are single-pass and never call the model; caller
// supplied subtopics also bypass it.
type Planner struct {
	llm    LLMClient
	config config.PipelineConfig
}

// NewPlanner creates a planner using the given LLM client
func NewPlanner(llm LLMClient, cfg config.PipelineConfig) *Planner {
	return &Planner{llm: llm, config: cfg}
}

// Plan returns the subtopics for one run. Malformed planner output is a hard
// failure for the run; there is no fallback decomposition.
func (p *Planner) Plan(ctx context.Context, task models.ReportTask) ([]models.Subtopic, error) {
	switch task.ReportType {
	case models.ReportTypeResearch, models.ReportTypeSubtopic:
		return []models.Subtopic{{Task: task.Task}}, nil
	}

	if len(task.Subtopics) > 0 {
		subtopics := make([]models.Subtopic, 0, len(task.Subtopics))
		for _, st := range task.Subtopics {
			if st = strings.TrimSpace(st); st != "" {
				subtopics = append(subtopics, models.Subtopic{Task: st})
			}
		}
		if len(subtopics) > 0 {
			return p.cap(subtopics), nil
		}
	}

	userPrompt := fmt.Sprintf("Research task: %s\n\nProduce at most %d subtopics.", task.Task, p.config.MaxSubtopics)
	raw, err := p.llm.Complete(ctx, plannerSystemPrompt, userPrompt, CompletionOptions{JSONMode: true})
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	subtopics, err := validation.ValidateAndParsePlan(StripCodeFences(raw))
	if err != nil {
		return nil, fmt.Errorf("planner returned invalid plan: %w", err)
	}

	log.Printf("Planned %d subtopic(s) for task %q", len(subtopics), task.Task)
	return p.cap(subtopics), nil
}

func (p *Planner) cap(subtopics []models.Subtopic) []models.Subtopic {
	if p.config.MaxSubtopics > 0 && len(subtopics) > p.config.MaxSubtopics {
		return subtopics[:p.config.MaxSubtopics]
	}
	return subtopics
}
