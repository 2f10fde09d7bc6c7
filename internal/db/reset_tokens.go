package db

import (
	"context"

	"github.com/taskdeck/backend/internal/model"
)

func (db *Postgres) EnsureResetTokenSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS password_reset_tokens (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL
		)
	`
	_, err := db.Pool.Exec(ctx, query)
	return err
}

// ReplaceResetToken drops any outstanding token for the email before
// inserting the new one, so at most one reset token is live per account.
func (db *Postgres) ReplaceResetToken(ctx context.Context, t *model.PasswordResetToken) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE email = $1`, t.Email); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, email, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.Email, t.Token, t.ExpiresAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *Postgres) GetResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	query := `
		SELECT id, email, token, expires_at
		FROM password_reset_tokens
		WHERE token = $1
	`
	var t model.PasswordResetToken
	err := db.Pool.QueryRow(ctx, query, token).Scan(
		&t.ID,
		&t.Email,
		&t.Token,
		&t.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *Postgres) DeleteResetToken(ctx context.Context, id string) error {
	query := `DELETE FROM password_reset_tokens WHERE id = $1`
	_, err := db.Pool.Exec(ctx, query, id)
	return err
}
