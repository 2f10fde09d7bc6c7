package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskdeck/backend/internal/model"
)

func (db *Postgres) EnsureUserSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			image TEXT,
			email_verified TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := db.Pool.Exec(ctx, query)
	return err
}

// CreateUser inserts a principal. passwordHash and image may be nil for
// delegated-login accounts.
func (db *Postgres) CreateUser(ctx context.Context, name *string, email string, passwordHash, image *string) (*model.User, error) {
	query := `
		INSERT INTO users (id, name, email, password_hash, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, name, email, password_hash, image, email_verified, created_at, updated_at
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, uuid.NewString(), name, email, passwordHash, image).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Image,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, name, email, password_hash, image, email_verified, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Image,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, name, email, password_hash, image, email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Image,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Postgres) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := db.Pool.Exec(ctx, query, passwordHash, id)
	return err
}

func (db *Postgres) UpdateUserProfile(ctx context.Context, id string, name, image *string) error {
	query := `
		UPDATE users
		SET name = COALESCE($1, name), image = COALESCE($2, image), updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.Pool.Exec(ctx, query, name, image, id)
	return err
}
