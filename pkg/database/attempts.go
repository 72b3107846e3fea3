package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AttemptInput is a finished quiz attempt as submitted by the frontend.
type AttemptInput struct {
	ExternalUserID string          `json:"user_id"`
	WebsiteScanID  string          `json:"website_scan_id,omitempty"`
	TotalXP        int             `json:"total_xp"`
	Responses      []ResponseInput `json:"responses"`
}

// ResponseInput is a single answered question within an attempt.
type ResponseInput struct {
	QuestionID    string `json:"question_id,omitempty"`
	UserAnswer    string `json:"user_answer"`
	IsCorrect     bool   `json:"is_correct"`
	XPEarned      int    `json:"xp_earned"`
	Badge         string `json:"badge,omitempty"`
	TimeTakenSecs int    `json:"time_taken,omitempty"`
}

// SaveAttempt stores a quiz attempt with its responses in one
// transaction and recomputes the user's aggregate stats. Returns the
// attempt id.
func (d *DB) SaveAttempt(ctx context.Context, userID string, in AttemptInput) (string, error) {
	attemptID := uuid.NewString()

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("database: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO quiz_attempts (id, user_id, website_scan_id, completed_at, total_xp)
		 VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5)`,
		attemptID, userID, in.WebsiteScanID, now, in.TotalXP)
	if err != nil {
		return "", fmt.Errorf("database: insert attempt: %w", err)
	}

	const q = `INSERT INTO question_responses
		(id, quiz_attempt_id, question_id, user_id, user_answer, is_correct,
		 xp_earned, badge, time_taken_secs)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, NULLIF($9, 0))`
	for _, r := range in.Responses {
		_, err := tx.ExecContext(ctx, q,
			uuid.NewString(), attemptID, r.QuestionID, userID,
			r.UserAnswer, r.IsCorrect, r.XPEarned, r.Badge, r.TimeTakenSecs)
		if err != nil {
			return "", fmt.Errorf("database: insert response: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("database: commit attempt: %w", err)
	}

	if err := d.RecomputeStats(ctx, userID); err != nil {
		return "", err
	}
	d.log.Info().Str("user_id", userID).Str("attempt_id", attemptID).
		Int("responses", len(in.Responses)).Msg("saved quiz attempt")
	return attemptID, nil
}
