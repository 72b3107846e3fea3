package database

import (
	"context"
	"fmt"
	"math"
)

// RecomputeStats rebuilds a user's aggregate stats from their recorded
// question responses and upserts the user_stats row.
func (d *DB) RecomputeStats(ctx context.Context, userID string) error {
	var agg struct {
		TotalXP int `db:"total_xp"`
		Total   int `db:"total"`
		Correct int `db:"correct"`
	}
	err := d.db.GetContext(ctx, &agg,
		`SELECT COALESCE(SUM(xp_earned), 0) AS total_xp,
		        COUNT(*) AS total,
		        COUNT(*) FILTER (WHERE is_correct) AS correct
		 FROM question_responses WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("database: aggregate responses: %w", err)
	}
	if agg.Total == 0 {
		return nil
	}

	var badges []string
	err = d.db.SelectContext(ctx, &badges,
		`SELECT DISTINCT badge FROM question_responses
		 WHERE user_id = $1 AND badge <> '' ORDER BY badge`, userID)
	if err != nil {
		return fmt.Errorf("database: collect badges: %w", err)
	}

	accuracy := math.Round(float64(agg.Correct)/float64(agg.Total)*10000) / 100

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO user_stats
		   (user_id, total_xp, total_questions_answered, total_correct_answers,
		    badges_earned, accuracy_percentage, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_xp = EXCLUDED.total_xp,
		   total_questions_answered = EXCLUDED.total_questions_answered,
		   total_correct_answers = EXCLUDED.total_correct_answers,
		   badges_earned = EXCLUDED.badges_earned,
		   accuracy_percentage = EXCLUDED.accuracy_percentage,
		   updated_at = now()`,
		userID, agg.TotalXP, agg.Total, agg.Correct, StringList(badges), accuracy)
	if err != nil {
		return fmt.Errorf("database: upsert stats: %w", err)
	}
	return nil
}

// Leaderboard returns the top users by total XP.
func (d *DB) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []LeaderboardEntry
	err := d.db.SelectContext(ctx, &out,
		`SELECT s.user_id,
		        COALESCE(u.username, 'Anonymous') AS username,
		        COALESCE(u.full_name, 'Anonymous') AS full_name,
		        COALESCE(u.avatar_url, '') AS avatar_url,
		        s.total_xp, s.total_questions_answered, s.total_correct_answers,
		        s.accuracy_percentage, s.badges_earned
		 FROM user_stats s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.total_xp DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("database: leaderboard: %w", err)
	}
	if out == nil {
		out = []LeaderboardEntry{}
	}
	return out, nil
}
