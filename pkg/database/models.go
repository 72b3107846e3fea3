package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeclinic/codeclinic/pkg/quiz"
)

// StringList stores a []string as a JSONB column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// ChoiceList stores quiz choices as a JSONB column.
type ChoiceList []quiz.Choice

func (l ChoiceList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *ChoiceList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("database: cannot scan %T as JSON", src)
	}
}

// User mirrors the users table.
type User struct {
	ID             string         `db:"id" json:"id"`
	ExternalUserID string         `db:"external_user_id" json:"external_user_id"`
	Email          sql.NullString `db:"email" json:"-"`
	Username       sql.NullString `db:"username" json:"-"`
	FullName       sql.NullString `db:"full_name" json:"-"`
	AvatarURL      sql.NullString `db:"avatar_url" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// UserProfile carries the optional profile fields forwarded by the
// frontend. Empty fields are left untouched on update.
type UserProfile struct {
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// WebsiteScan mirrors the website_scans table.
type WebsiteScan struct {
	ID         string         `db:"id" json:"id"`
	WebsiteURL string         `db:"website_url" json:"website_url"`
	ScanDate   time.Time      `db:"scan_date" json:"scan_date"`
	CreatedBy  sql.NullString `db:"created_by" json:"-"`
	IsPublic   bool           `db:"is_public" json:"is_public"`
}

// Question mirrors the questions table.
type Question struct {
	ID             string         `db:"id" json:"id"`
	WebsiteScanID  string         `db:"website_scan_id" json:"website_scan_id"`
	CreatedBy      sql.NullString `db:"created_by" json:"-"`
	VulnType       string         `db:"vuln_type" json:"vuln_type"`
	Title          string         `db:"title" json:"title"`
	ShortExplain   string         `db:"short_explain" json:"short_explain"`
	ExerciseType   string         `db:"exercise_type" json:"exercise_type"`
	ExercisePrompt string         `db:"exercise_prompt" json:"exercise_prompt"`
	Choices        ChoiceList     `db:"choices" json:"choices"`
	AnswerKey      StringList     `db:"answer_key" json:"answer_key"`
	Hints          StringList     `db:"hints" json:"hints"`
	Difficulty     string         `db:"difficulty" json:"difficulty"`
	XP             int            `db:"xp" json:"xp"`
	Badge          string         `db:"badge" json:"badge"`
}

// QuizAttempt mirrors the quiz_attempts table.
type QuizAttempt struct {
	ID            string         `db:"id" json:"id"`
	UserID        string         `db:"user_id" json:"user_id"`
	WebsiteScanID sql.NullString `db:"website_scan_id" json:"-"`
	StartedAt     time.Time      `db:"started_at" json:"started_at"`
	CompletedAt   sql.NullTime   `db:"completed_at" json:"-"`
	TotalXP       int            `db:"total_xp" json:"total_xp"`
}

// QuestionResponse mirrors the question_responses table.
type QuestionResponse struct {
	ID            string         `db:"id" json:"id"`
	QuizAttemptID string         `db:"quiz_attempt_id" json:"quiz_attempt_id"`
	QuestionID    sql.NullString `db:"question_id" json:"-"`
	UserID        string         `db:"user_id" json:"user_id"`
	UserAnswer    string         `db:"user_answer" json:"user_answer"`
	IsCorrect     bool           `db:"is_correct" json:"is_correct"`
	XPEarned      int            `db:"xp_earned" json:"xp_earned"`
	Badge         string         `db:"badge" json:"badge"`
	TimeTakenSecs sql.NullInt64  `db:"time_taken_secs" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	UserID         string     `db:"user_id" json:"user_id"`
	Username       string     `db:"username" json:"username"`
	FullName       string     `db:"full_name" json:"full_name"`
	AvatarURL      string     `db:"avatar_url" json:"avatar_url"`
	TotalXP        int        `db:"total_xp" json:"total_xp"`
	TotalQuestions int        `db:"total_questions_answered" json:"total_questions"`
	CorrectAnswers int        `db:"total_correct_answers" json:"correct_answers"`
	Accuracy       float64    `db:"accuracy_percentage" json:"accuracy"`
	BadgesEarned   StringList `db:"badges_earned" json:"badges_earned"`
}

// PublicScan is one row of the public scans catalogue.
type PublicScan struct {
	ScanID            string    `json:"scan_id"`
	WebsiteURL        string    `json:"website_url"`
	WebsiteTitle      string    `json:"website_title"`
	ScanDate          time.Time `json:"scan_date"`
	CreatedByUsername string    `json:"created_by_username"`
	CreatedByFullName string    `json:"created_by_full_name"`
	QuestionCount     int       `json:"question_count"`
	Difficulties      []string  `json:"difficulties"`
	ExerciseTypes     []string  `json:"exercise_types"`
}
