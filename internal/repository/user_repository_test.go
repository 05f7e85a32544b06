package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"PricePortal/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		DateJoined:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := newUser()
	mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.DateJoined).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresUserRepository(mock)
	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := newUser()
	mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.DateJoined).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err = NewPostgresUserRepository(mock).Create(context.Background(), u)
	assert.ErrorIs(t, err, models.ErrUserExists)
}

func TestUserRepository_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := newUser()
	rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "date_joined"}).
		AddRow(u.ID, u.Username, u.PasswordHash, u.DateJoined)
	mock.ExpectQuery(regexp.QuoteMeta(selectUserSQL)).WithArgs("alice").WillReturnRows(rows)

	got, err := NewPostgresUserRepository(mock).GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, u.DateJoined.Equal(got.DateJoined))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsernameMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectUserSQL)).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresUserRepository(mock).GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestUserRepository_GetByUsernameDBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectUserSQL)).WithArgs("bob").WillReturnError(errors.New("conn reset"))

	_, err = NewPostgresUserRepository(mock).GetByUsername(context.Background(), "bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrUserNotFound)
}

func TestUserRepository_Init(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	repo := &PostgresUserRepository{db: mock}
	require.NoError(t, repo.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
