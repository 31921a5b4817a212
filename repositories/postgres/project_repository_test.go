package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewDBFromConn(sqlDB, zap.NewNop()), mock
}

var projectRowColumns = []string{"id", "projectname", "projectinfo", "public", "created_at", "last_updated"}

func TestProjectRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	project := models.NewProject("Río Medellín", json.RawMessage(`{"area":"north"}`), true)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WithArgs(project.ID, "Río Medellín", `{"area":"north"}`, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), project))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_CreateWithoutInfo(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	project := models.NewProject("Empty", nil, false)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WithArgs(project.ID, "Empty", nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), project))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	id := uuid.New()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(projectRowColumns).
				AddRow(id.String(), "Mapping", []byte(`{"k":1}`), false, now, now))

		project, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, project.ID)
		assert.Equal(t, "Mapping", project.Name)
		assert.JSONEq(t, `{"k":1}`, string(project.Info))
		assert.False(t, project.Public)
	})

	t.Run("null info", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(projectRowColumns).
				AddRow(id.String(), "Mapping", nil, true, now, now))

		project, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, project.Info)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(projectRowColumns))

		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_ListPublic(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE public = true")).
		WithArgs(20, 40).
		WillReturnRows(sqlmock.NewRows(projectRowColumns).
			AddRow(uuid.NewString(), "A", nil, true, now, now).
			AddRow(uuid.NewString(), "B", nil, true, now, now))

	projects, err := repo.ListPublic(context.Background(), 20, 40)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "A", projects[0].Name)
	assert.Equal(t, "B", projects[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_ListByMemberEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN projects_users pu")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(projectRowColumns))

	projects, err := repo.ListByMember(context.Background(), userID)
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestProjectRepository_UpdateNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	project := models.NewProject("Gone", nil, false)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects")).
		WithArgs(project.ID, "Gone", nil, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), project)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestProjectRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).
		WithArgs(id).
		WillReturnError(errors.New("connection reset"))

	err := repo.Delete(context.Background(), id)
	assert.ErrorContains(t, err, "failed to delete project")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_RemoveMemberCallsRPC(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	projectID, userID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("SELECT remove_user_from_project($1, $2)")).
		WithArgs(userID, projectID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RemoveMember(context.Background(), projectID, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_JoinsTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProjectRepository(db, zap.NewNop())
	txm := NewTransactionManager(db, zap.NewNop())
	projectID, userID := uuid.New(), uuid.New()
	project := models.NewProject("Tx", nil, false)
	project.ID = projectID

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects_users")).
		WithArgs(sqlmock.AnyArg(), projectID, userID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := txm.InTransaction(context.Background(), func(ctx context.Context, _ repositories.Transaction) error {
		if err := repo.Create(ctx, project); err != nil {
			return err
		}
		return repo.AddMember(ctx, models.NewProjectMember(projectID, userID))
	})
	assert.ErrorContains(t, err, "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}
