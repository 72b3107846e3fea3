package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codeclinic/codeclinic/pkg/quiz"
)

// SaveScan records a completed website scan and returns its id.
func (d *DB) SaveScan(ctx context.Context, websiteURL, createdBy string, isPublic bool) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO website_scans (id, website_url, created_by, is_public)
		 VALUES ($1, $2, NULLIF($3, '')::uuid, $4)`,
		id, websiteURL, createdBy, isPublic)
	if err != nil {
		return "", fmt.Errorf("database: save scan: %w", err)
	}
	return id, nil
}

// GetExistingScan returns the id of a previous scan of websiteURL by
// the same user, or "" when none exists.
func (d *DB) GetExistingScan(ctx context.Context, websiteURL, userID string) (string, error) {
	var id string
	err := d.db.GetContext(ctx, &id,
		`SELECT id FROM website_scans WHERE website_url = $1 AND created_by = $2
		 ORDER BY scan_date DESC LIMIT 1`,
		websiteURL, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("database: lookup scan: %w", err)
	}
	return id, nil
}

// SaveQuestions stores a generated question set for a scan in one
// transaction.
func (d *DB) SaveQuestions(ctx context.Context, scanID, createdBy string, exercises []quiz.Exercise) error {
	if len(exercises) == 0 {
		return nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: begin: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO questions
		(id, website_scan_id, created_by, vuln_type, title, short_explain,
		 exercise_type, exercise_prompt, choices, answer_key, hints,
		 difficulty, xp, badge)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for _, e := range exercises {
		_, err := tx.ExecContext(ctx, q,
			uuid.NewString(), scanID, createdBy,
			e.VulnType, e.Title, e.ShortExplain,
			string(e.ExerciseType), e.ExercisePrompt,
			ChoiceList(e.Choices), StringList(e.AnswerKey), StringList(e.Hints),
			string(e.Difficulty), e.XP, e.Badge)
		if err != nil {
			return fmt.Errorf("database: insert question: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: commit questions: %w", err)
	}
	d.log.Info().Str("scan_id", scanID).Int("count", len(exercises)).Msg("saved questions")
	return nil
}

// GetScanQuestions returns all questions generated for a scan.
func (d *DB) GetScanQuestions(ctx context.Context, scanID string) ([]Question, error) {
	var out []Question
	err := d.db.SelectContext(ctx, &out,
		`SELECT * FROM questions WHERE website_scan_id = $1`, scanID)
	if err != nil {
		return nil, fmt.Errorf("database: scan questions: %w", err)
	}
	return out, nil
}

// PublicScansFilter narrows the public scan catalogue.
type PublicScansFilter struct {
	Difficulty   string
	ExerciseType string
	Limit        int
	Offset       int
}

// PublicScans lists public scans newest first, annotated with question
// statistics. Difficulty and exercise-type filters match scans that
// contain at least one matching question.
func (d *DB) PublicScans(ctx context.Context, f PublicScansFilter) ([]PublicScan, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	type scanRow struct {
		ID         string         `db:"id"`
		WebsiteURL string         `db:"website_url"`
		ScanDate   sql.NullTime   `db:"scan_date"`
		Username   sql.NullString `db:"username"`
		FullName   sql.NullString `db:"full_name"`
	}
	var rows []scanRow
	err := d.db.SelectContext(ctx, &rows,
		`SELECT ws.id, ws.website_url, ws.scan_date, u.username, u.full_name
		 FROM website_scans ws
		 LEFT JOIN users u ON u.id = ws.created_by
		 WHERE ws.is_public
		 ORDER BY ws.scan_date DESC
		 LIMIT $1 OFFSET $2`,
		f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("database: public scans: %w", err)
	}
	if len(rows) == 0 {
		return []PublicScan{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	type qRow struct {
		ScanID       string `db:"website_scan_id"`
		Difficulty   string `db:"difficulty"`
		ExerciseType string `db:"exercise_type"`
	}
	query, args, err := sqlx.In(
		`SELECT website_scan_id, difficulty, exercise_type FROM questions
		 WHERE website_scan_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("database: build question query: %w", err)
	}
	var qRows []qRow
	if err := d.db.SelectContext(ctx, &qRows, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("database: scan questions: %w", err)
	}

	byScan := make(map[string][]qRow, len(rows))
	for _, q := range qRows {
		byScan[q.ScanID] = append(byScan[q.ScanID], q)
	}

	out := make([]PublicScan, 0, len(rows))
	for _, r := range rows {
		qs := byScan[r.ID]
		ps := PublicScan{
			ScanID:            r.ID,
			WebsiteURL:        r.WebsiteURL,
			WebsiteTitle:      WebsiteTitle(r.WebsiteURL),
			ScanDate:          r.ScanDate.Time,
			CreatedByUsername: orDefault(r.Username, "Anonymous"),
			CreatedByFullName: orDefault(r.FullName, "Anonymous User"),
			QuestionCount:     len(qs),
			Difficulties:      distinct(qs, func(q qRow) string { return q.Difficulty }),
			ExerciseTypes:     distinct(qs, func(q qRow) string { return q.ExerciseType }),
		}
		if f.Difficulty != "" && !slices.Contains(ps.Difficulties, f.Difficulty) {
			continue
		}
		if f.ExerciseType != "" && !slices.Contains(ps.ExerciseTypes, f.ExerciseType) {
			continue
		}
		out = append(out, ps)
	}
	return out, nil
}

func orDefault(s sql.NullString, def string) string {
	if s.Valid && strings.TrimSpace(s.String) != "" {
		return s.String
	}
	return def
}

func distinct[T any](items []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
