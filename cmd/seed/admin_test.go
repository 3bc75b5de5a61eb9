package main

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slava-lu/auth-app-backend/internal/password"
	"github.com/slava-lu/auth-app-backend/internal/role"
)

func setup(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, *password.Hasher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h, err := password.NewHasher(1000, 32, "sha256")
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, h
}

func TestSeedAdminCreatesAccountWithRoles(t *testing.T) {
	db, mock, h := setup(t)

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("root@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO auth_accounts`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO auth_users`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`INSERT INTO user_profile`).WithArgs(int64(11)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_to_role`).WithArgs(int64(11), role.SuperAdminID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_to_role`).WithArgs(int64(11), role.AdminID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := SeedAdmin(context.Background(), db, h, AdminConfig{
		Email:    " Root@Example.com",
		Password: "secret123",
		Roles:    []string{"superadmin", "admin"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedAdminSkipsExisting(t *testing.T) {
	db, mock, h := setup(t)

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	created, err := SeedAdmin(context.Background(), db, h, AdminConfig{Email: "root@example.com", Password: "secret123", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedAdminRejectsInput(t *testing.T) {
	db, _, h := setup(t)

	_, err := SeedAdmin(context.Background(), db, h, AdminConfig{Email: "root@example.com", Password: "short", Roles: []string{"admin"}})
	assert.Error(t, err)

	_, err = SeedAdmin(context.Background(), db, h, AdminConfig{Email: "root@example.com", Password: "secret123", Roles: []string{"owner"}})
	assert.ErrorContains(t, err, `unknown role "owner"`)
}
