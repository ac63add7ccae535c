package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndParsePlan(t *testing.T) {
	subtopics, err := ValidateAndParsePlan(`{"subtopics": [{"task": "history"}, {"task": "economics"}]}`)
	require.NoError(t, err)
	require.Len(t, subtopics, 2)
	assert.Equal(t, "history", subtopics[0].Task)
	assert.Equal(t, "economics", subtopics[1].Task)
}

func TestValidateAndParsePlanRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `subtopics: [a, b]`,
		"empty list":        `{"subtopics": []}`,
		"missing key":       `{"topics": [{"task": "x"}]}`,
		"empty task":        `{"subtopics": [{"task": ""}]}`,
		"wrong item shape":  `{"subtopics": ["history"]}`,
		"top-level array":   `[{"task": "x"}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateAndParsePlan(input)
			assert.Error(t, err)
		})
	}
}
