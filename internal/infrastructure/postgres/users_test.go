package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-user-registration/internal/domain"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db), mock
}

func TestUserRepo_GetByEmail(t *testing.T) {
	repo, mock := setupRepo(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, hashed_password, is_active, created_at, updated_at FROM users WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "is_active", "created_at", "updated_at"}).
			AddRow("2f1c7a5e-9d43-4b7e-8c1e-3f0a6d2b9c11", "alice@example.com", "hash", false, now, now))

	u, err := repo.GetByEmail(context.Background(), " Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "2f1c7a5e-9d43-4b7e-8c1e-3f0a6d2b9c11", u.UserID)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.False(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.ExpectQuery("SELECT id, email").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "alice@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_Put_Upserts(t *testing.T) {
	repo, mock := setupRepo(t)
	now := time.Now().UTC()
	u := &domain.User{UserID: "u-1", Email: "alice@example.com", PasswordHash: "hash", IsActive: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO users .* ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("u-1", "alice@example.com", "hash", true, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Put(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Put_DuplicateEmailIsConflict(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Put(context.Background(), &domain.User{UserID: "u-2", Email: "alice@example.com"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestUserRepo_Delete(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Bootstrap(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
