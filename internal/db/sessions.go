package db

import (
	"context"
	"time"

	"github.com/taskdeck/backend/internal/model"
)

func (db *Postgres) EnsureSessionSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL
		)
		`,
		`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) InsertSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	query := `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`
	_, err := db.Pool.Exec(ctx, query, token, userID, expiresAt)
	return err
}

// GetSession is a point lookup. It does not filter by time; the caller
// decides liveness (exists AND expires_at strictly in the future).
func (db *Postgres) GetSession(ctx context.Context, token string) (*model.Session, error) {
	query := `
		SELECT token, user_id, expires_at
		FROM sessions
		WHERE token = $1
	`
	var session model.Session
	err := db.Pool.QueryRow(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession is idempotent; deleting a missing session is not an error.
func (db *Postgres) DeleteSession(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE token = $1`
	_, err := db.Pool.Exec(ctx, query, token)
	return err
}

// DeleteUserSessions revokes every login of a principal, used by
// password-reset invalidation.
func (db *Postgres) DeleteUserSessions(ctx context.Context, userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

// DeleteExpiredSessions is optional hygiene. Expired rows are never treated
// as live, so correctness does not depend on running this.
func (db *Postgres) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= NOW()`
	tag, err := db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
