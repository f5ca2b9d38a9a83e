package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser_NullableColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	mock.ExpectQuery(`FROM users WHERE`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "access_level_id", "active"}).
			AddRow("user-1", nil, "user", nil, true))

	u, err := repo.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user", u.Role)
	assert.Empty(t, u.Name)
	assert.Empty(t, u.AccessLevelID)
	assert.False(t, u.IsAdmin())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	mock.ExpectQuery(`FROM users WHERE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUser(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGrantsByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresAccessGrantsRepository(db)

	mock.ExpectQuery(`FROM access_grants WHERE`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "locality_id"}).
			AddRow("user-1", "loc-1").
			AddRow("user-1", "loc-2"))

	grants, err := repo.ListGrantsByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "loc-2", grants[1].LocalityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantAccess_Idempotent(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresAccessGrantsRepository(db)

	// 第二次插入冲突，影响 0 行，仍视为成功
	mock.ExpectExec(`INSERT INTO access_grants`).WithArgs("user-1", "loc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO access_grants`).WithArgs("user-1", "loc-1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.GrantAccess(context.Background(), "user-1", "loc-1"))
	require.NoError(t, repo.GrantAccess(context.Background(), "user-1", "loc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAccess_Missing(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresAccessGrantsRepository(db)

	mock.ExpectExec(`DELETE FROM access_grants`).WithArgs("user-1", "loc-9").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RevokeAccess(context.Background(), "user-1", "loc-9")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccessLevel_Permissions(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresAccessLevelsRepository(db)

	mock.ExpectQuery(`FROM access_levels WHERE`).
		WithArgs("lvl-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "permissions"}).
			AddRow("lvl-1", "Agente", "", "{dashboard,form}"))

	l, err := repo.GetAccessLevel(context.Background(), "lvl-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard", "form"}, l.Permissions)
	assert.True(t, l.Has("form"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureLocality_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresLocalitiesRepository(db)

	mock.ExpectQuery(`INSERT INTO localities`).
		WithArgs("Centro").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow("loc-1", "Centro", true))

	l, err := repo.EnsureLocality(context.Background(), "  Centro ")
	require.NoError(t, err)
	assert.Equal(t, "loc-1", l.ID)

	_, err = repo.EnsureLocality(context.Background(), "  ")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalityNameMap(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresLocalitiesRepository(db)

	mock.ExpectQuery(`FROM localities ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).
			AddRow("loc-1", "Centro", true).
			AddRow("loc-2", "Mangabinha", false))

	names, err := LocalityNameMap(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"loc-1": "Centro", "loc-2": "Mangabinha"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}
