package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock
}

func TestTransact(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO auth_accounts").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := Transact(context.Background(), db, func(tx *sqlx.Tx) error {
			_, err := tx.Exec("INSERT INTO auth_accounts (email) VALUES ($1)", "a@x.com")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on step failure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO auth_accounts").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO auth_users").WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		err := Transact(context.Background(), db, func(tx *sqlx.Tx) error {
			if _, err := tx.Exec("INSERT INTO auth_accounts (email) VALUES ($1)", "a@x.com"); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO auth_users (account_id) VALUES ($1)", 1)
			return err
		})
		require.Error(t, err)

		var rb *RollbackError
		require.True(t, errors.As(err, &rb))
		assert.EqualError(t, rb.Cause, "boom")
		assert.NoError(t, rb.RollbackErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("no conn"))

		called := false
		err := Transact(context.Background(), db, func(tx *sqlx.Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)

		var rb *RollbackError
		assert.False(t, errors.As(err, &rb))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
