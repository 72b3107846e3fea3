// Package quiz turns scan findings into gamified training questions.
// An AI text model produces the question set; this package owns the
// prompt, the input sanitization and the strict validation of what
// comes back. Only question types with deterministic answers are
// allowed through.
package quiz

import "fmt"

// ExerciseType is the interaction style of a question.
type ExerciseType string

const (
	// MCQ is a multiple-choice question with exactly one correct choice.
	MCQ ExerciseType = "mcq"
	// FixConfig asks the player to pick the correct configuration fix.
	FixConfig ExerciseType = "fix_config"
	// Sandbox expects an exact free-form answer (a command, a header value).
	Sandbox ExerciseType = "sandbox"
)

// IsValid reports whether t is a known exercise type.
func (t ExerciseType) IsValid() bool {
	return t == MCQ || t == FixConfig || t == Sandbox
}

// Difficulty levels map to XP tiers in the UI.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	return d == Beginner || d == Intermediate || d == Advanced
}

// Choice is one selectable answer for mcq/fix_config questions.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Exercise is a single generated training question.
type Exercise struct {
	VulnType       string       `json:"vuln_type"`
	Title          string       `json:"title"`
	ShortExplain   string       `json:"short_explain"`
	ExerciseType   ExerciseType `json:"exercise_type"`
	ExercisePrompt string       `json:"exercise_prompt"`
	Choices        []Choice     `json:"choices"`
	AnswerKey      []string     `json:"answer_key"`
	Hints          []string     `json:"hints"`
	Difficulty     Difficulty   `json:"difficulty"`
	XP             int          `json:"xp"`
	Badge          string       `json:"badge"`
}

// Validate checks the fields the model is required to fill.
func (e *Exercise) Validate() error {
	switch {
	case e.VulnType == "":
		return fmt.Errorf("missing vuln_type")
	case e.Title == "":
		return fmt.Errorf("missing title")
	case e.ExercisePrompt == "":
		return fmt.Errorf("missing exercise_prompt")
	case e.Badge == "":
		return fmt.Errorf("missing badge")
	}
	if !e.ExerciseType.IsValid() {
		return fmt.Errorf("invalid exercise_type %q", e.ExerciseType)
	}
	if !e.Difficulty.IsValid() {
		return fmt.Errorf("invalid difficulty %q", e.Difficulty)
	}
	if len(e.AnswerKey) == 0 {
		return fmt.Errorf("missing answer_key")
	}
	if e.ExerciseType == MCQ || e.ExerciseType == FixConfig {
		if len(e.AnswerKey) != 1 {
			return fmt.Errorf("%s must have exactly one answer, got %d", e.ExerciseType, len(e.AnswerKey))
		}
		if len(e.Choices) == 0 {
			return fmt.Errorf("%s requires choices", e.ExerciseType)
		}
		if !choiceExists(e.Choices, e.AnswerKey[0]) {
			return fmt.Errorf("answer %q does not match any choice id", e.AnswerKey[0])
		}
	}
	return nil
}

func choiceExists(choices []Choice, id string) bool {
	for _, c := range choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Set is a generated question set as returned to the frontend.
type Set struct {
	Exercises      []Exercise `json:"exercises"`
	TotalQuestions int        `json:"total_questions"`
}
