package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GetOrCreateUser resolves an external auth id to the internal user id,
// creating the user on first sight. Non-empty profile fields overwrite
// the stored ones so profile changes upstream propagate on next login.
func (d *DB) GetOrCreateUser(ctx context.Context, externalID string, profile UserProfile) (string, error) {
	if externalID == "" {
		return "", fmt.Errorf("database: empty external user id")
	}

	var id string
	err := d.db.GetContext(ctx, &id,
		`SELECT id FROM users WHERE external_user_id = $1`, externalID)
	switch {
	case err == nil:
		if err := d.updateProfile(ctx, id, profile); err != nil {
			return "", err
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return "", fmt.Errorf("database: lookup user: %w", err)
	}

	id = uuid.NewString()
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO users (id, external_user_id, email, username, full_name, avatar_url)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))`,
		id, externalID, profile.Email, profile.Username, profile.FullName, profile.AvatarURL)
	if err != nil {
		return "", fmt.Errorf("database: create user: %w", err)
	}
	d.log.Info().Str("user_id", id).Msg("created user")
	return id, nil
}

func (d *DB) updateProfile(ctx context.Context, id string, p UserProfile) error {
	sets := make([]string, 0, 4)
	args := []any{id}
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("email", p.Email)
	add("username", p.Username)
	add("full_name", p.FullName)
	add("avatar_url", p.AvatarURL)
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1`, strings.Join(sets, ", "))
	if _, err := d.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("database: update profile: %w", err)
	}
	return nil
}

// GetUser returns a user by internal id.
func (d *DB) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := d.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("database: user %s not found", id)
		}
		return nil, fmt.Errorf("database: get user: %w", err)
	}
	return &u, nil
}
