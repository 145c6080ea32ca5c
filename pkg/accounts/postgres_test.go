package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{"id", "name", "email", "age", "created_at"}

func setupPostgres(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresEnsureSchema(t *testing.T) {
	repo, mock := setupPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestPostgresCreate(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (name, email, age) VALUES ($1, $2, $3) RETURNING id, created_at")).
			WithArgs("Alice", "alice@example.com", sql.NullInt64{Int64: 30, Valid: true}).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

		a, err := repo.Create(context.Background(), Account{Name: "Alice", Email: "alice@example.com", Age: intPtr(30)})
		require.NoError(t, err)
		assert.Equal(t, int64(7), a.ID)
		assert.Equal(t, created, a.CreatedAt)
	})

	t.Run("unique violation", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

		_, err := repo.Create(context.Background(), Account{Name: "Alice", Email: "alice@example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("other error", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(context.Background(), Account{Name: "Alice", Email: "alice@example.com"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmailTaken)
		assert.Contains(t, err.Error(), "failed to create account")
	})
}

func TestPostgresFind(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("by id with null age", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, age, created_at FROM users WHERE id = $1")).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(3, "Bob", "bob@example.com", nil, created))

		a, err := repo.FindByID(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, Account{ID: 3, Name: "Bob", Email: "bob@example.com", CreatedAt: created}, a)
	})

	t.Run("by id not found", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(accountColumns))

		_, err := repo.FindByID(context.Background(), 9)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("by email", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(1, "Alice", "alice@example.com", 30, created))

		a, err := repo.FindByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, a.Age)
		assert.Equal(t, 30, *a.Age)
	})

	t.Run("exists by email", func(t *testing.T) {
		repo, mock := setupPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)")).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.ExistsByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestPostgresListAndCount(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo, mock := setupPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(1, "Alice", "alice@example.com", 30, created).
			AddRow(2, "Bob", "bob@example.com", nil, created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Nil(t, list[1].Age)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPostgresUpdate(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	query := regexp.QuoteMeta("UPDATE users SET name = $2, email = $3, age = $4 WHERE id = $1 RETURNING created_at")

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "success",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs(int64(1), "Alice", "alice@example.com", sql.NullInt64{}).
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
			},
		},
		{
			name: "not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
			},
			wantErr: ErrNotFound,
		},
		{
			name: "email taken",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			wantErr: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupPostgres(t)
			tt.setup(mock)

			a, err := repo.Update(context.Background(), Account{ID: 1, Name: "Alice", Email: "alice@example.com"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created, a.CreatedAt)
		})
	}
}

func TestPostgresDelete(t *testing.T) {
	repo, mock := setupPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrNotFound)
}
