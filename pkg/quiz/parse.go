package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseExercises parses the model's raw text into validated exercises.
// Models often wrap JSON in markdown fences despite being told not to,
// so those are stripped first.
func ParseExercises(raw string) ([]Exercise, error) {
	text := stripFences(raw)

	var exercises []Exercise
	if err := json.Unmarshal([]byte(text), &exercises); err != nil {
		return nil, fmt.Errorf("quiz: invalid JSON from model: %w", err)
	}

	for i := range exercises {
		if err := exercises[i].Validate(); err != nil {
			return nil, fmt.Errorf("quiz: exercise %d: %w", i, err)
		}
	}
	return exercises, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
