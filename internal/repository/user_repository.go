package repository

import (
	"context"
	"errors"
	"fmt"

	"PricePortal/internal/domain/models"
	domrepo "PricePortal/internal/domain/repository"
	"PricePortal/pkg/postgres"

	"github.com/jackc/pgx/v5"
)

// UserMigrations create the accounts table.
var UserMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		date_joined   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const (
	insertUserSQL = `INSERT INTO users (id, username, password_hash, date_joined) VALUES ($1, $2, $3, $4)`
	selectUserSQL = `SELECT id, username, password_hash, date_joined FROM users WHERE username = $1`
)

// PostgresUserRepository stores accounts in Postgres.
type PostgresUserRepository struct {
	db postgres.Querier
}

func NewPostgresUserRepository(db postgres.Querier) domrepo.UserRepository {
	return &PostgresUserRepository{db: db}
}

// Init applies the table migrations.
func (r *PostgresUserRepository) Init(ctx context.Context) error {
	return postgres.Migrate(ctx, r.db, UserMigrations)
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.Exec(ctx, insertUserSQL, u.ID, u.Username, u.PasswordHash, u.DateJoined)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return models.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, selectUserSQL, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DateJoined)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepository) Health(ctx context.Context) error {
	return r.db.Ping(ctx)
}
