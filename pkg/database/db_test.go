package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/auth?sslmode=disable")
	t.Setenv("DATABASE_MAX_CONNS", "0")
	t.Setenv("DATABASE_TIMEZONE", "UTC")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/auth?sslmode=disable", cfg.DSN)
	assert.Equal(t, 10, cfg.MaxConns)
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.NotZero(t, cfg.Timeout)
}

func TestApplySession(t *testing.T) {
	t.Run("quotes values", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec(`SET TIME ZONE 'Europe/O''Hare'`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`SET client_encoding = 'UTF8'`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := ApplySession(context.Background(), db, Config{TimeZone: "Europe/O'Hare", ClientEncoding: "UTF8"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing configured", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		require.NoError(t, ApplySession(context.Background(), db, Config{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error is wrapped", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec(`SET TIME ZONE`).WillReturnError(errors.New("bad zone"))

		err := ApplySession(context.Background(), db, Config{TimeZone: "Mars/Olympus"})
		assert.ErrorContains(t, err, "set time zone")
	})
}
