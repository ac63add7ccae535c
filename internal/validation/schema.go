package validation

import (
	"encoding/json"
	"fmt"

	"kb-research-report/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// planSchema describes the structured output the planner demands from the
// LLM: a non-empty list of subtopic objects.
const planSchema = `{
  "type": "object",
  "required": ["subtopics"],
  "properties": {
    "subtopics": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["task"],
        "properties": {
          "task": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

type planDocument struct {
	Subtopics []models.Subtopic `json:"subtopics"`
}

// ValidateAndParsePlan validates the planner's JSON output against the plan
// schema and unmarshals it. Malformed output is a hard failure for the run;
// there is no fallback decomposition.
func ValidateAndParsePlan(planJSON string) ([]models.Subtopic, error) {
	schemaLoader := gojsonschema.NewStringLoader(planSchema)
	documentLoader := gojsonschema.NewStringLoader(planJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate plan: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, fmt.Errorf("plan validation failed: %v", errs)
	}

	var doc planDocument
	if err := json.Unmarshal([]byte(planJSON), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return doc.Subtopics, nil
}
