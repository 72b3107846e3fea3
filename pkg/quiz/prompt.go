package quiz

import "fmt"

const (
	// DefaultQuestions is used when the caller does not ask for a count.
	DefaultQuestions = 25
	// MaxQuestions bounds a single generation request.
	MaxQuestions = 50
)

// BuildPrompt renders the generation prompt for sanitized scan data.
func BuildPrompt(scanData string, n int) string {
	return fmt.Sprintf(`You are an expert cybersecurity tutor. I will give you web vulnerability scan results and you need to create %d different cybersecurity training questions.

Here is the scan data:
%s

Create exactly %d questions based on these vulnerabilities. Only generate question types that have deterministic answers.

Each question should be a JSON object with these fields:
- vuln_type: short vulnerability identifier
- title: question title
- short_explain: 1-2 sentence explanation
- exercise_type: one of ["mcq", "fix_config", "sandbox"]
- exercise_prompt: the actual question
- choices: array of {id, text} for mcq/fix_config, empty array for sandbox
- answer_key: array of correct answers (must match choice ids for mcq/fix_config, or exact expected output for sandbox)
- hints: array of helpful hints
- difficulty: "beginner", "intermediate", or "advanced"
- xp: points awarded (50-300)
- badge: achievement badge name

Constraints:
- Ensure all answers are deterministic and unambiguous.
- For mcq and fix_config, only one correct answer.
- For sandbox, provide exact expected outputs (no subjective answers).
- Do not generate any free-text or open-ended questions.

Return ONLY a valid JSON array of %d question objects. No other text.`, n, scanData, n, n)
}
