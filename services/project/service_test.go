package project

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"github.com/upb/commons-portal/services"
	"github.com/upb/commons-portal/supabase"
	"go.uber.org/zap"
)

// MockProjectRepository is a mock implementation of repositories.ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectRepository) ListPublic(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
}

func (m *MockProjectRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
}

func (m *MockProjectRepository) Update(ctx context.Context, project *models.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	return m.Called(ctx, member).Error(0)
}

func (m *MockProjectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return m.Called(ctx, projectID, userID).Error(0)
}

func (m *MockProjectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProjectMember), args.Error(1)
}

// MockRoleRepository is a mock implementation of repositories.UserRoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) Create(ctx context.Context, role *models.UserRole) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserRole, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserRole), args.Error(1)
}

func (m *MockRoleRepository) DeleteForEntity(ctx context.Context, userID uuid.UUID, roleType models.RoleType, entityID string) error {
	return m.Called(ctx, userID, roleType, entityID).Error(0)
}

// MockCommentRepository is a mock implementation of repositories.CommentRepository
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	comment.ID = 42
	return args.Error(0)
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*models.Comment, error) {
	args := m.Called(ctx, projectID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type txKey struct{}

// fakeTxManager runs transactions in a marked context and records the outcome
type fakeTxManager struct {
	committed  bool
	rolledBack bool
}

type fakeTx struct {
	mgr *fakeTxManager
	ctx context.Context
}

func (t *fakeTx) Commit() error {
	t.mgr.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.mgr.rolledBack = true
	return nil
}

func (t *fakeTx) Context() context.Context { return t.ctx }

func (f *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &fakeTx{mgr: f, ctx: context.WithValue(ctx, txKey{}, true)}, nil
}

func (f *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return services.WithTransaction(ctx, f, fn)
}

var inTx = mock.MatchedBy(func(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
})

type fixture struct {
	projects *MockProjectRepository
	roles    *MockRoleRepository
	comments *MockCommentRepository
	tx       *fakeTxManager
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		projects: new(MockProjectRepository),
		roles:    new(MockRoleRepository),
		comments: new(MockCommentRepository),
		tx:       new(fakeTxManager),
	}
	f.svc = NewService(f.projects, f.roles, f.comments, f.tx, zap.NewNop())
	return f
}

func caller(id uuid.UUID, claims ...models.RoleClaim) *auth.AuthorizationContext {
	if claims == nil {
		claims = []models.RoleClaim{}
	}
	return &auth.AuthorizationContext{
		Session: &supabase.Session{AccessToken: "token"},
		User:    &supabase.User{ID: id.String()},
		Roles:   claims,
	}
}

func projectRole(projectID uuid.UUID, name models.RoleName) models.RoleClaim {
	id := projectID.String()
	return models.RoleClaim{EntityID: &id, RoleName: name, RoleType: models.RoleTypeProject}
}

var systemAdmin = models.RoleClaim{RoleName: models.RoleSystemAdmin, RoleType: models.RoleTypeGlobal}

func TestPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultPageSize, 0},
		{-5, -1, DefaultPageSize, 0},
		{10, 20, 10, 20},
		{MaxPageSize + 1, 0, MaxPageSize, 0},
	}
	for _, tt := range tests {
		limit, offset := Page(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}

func TestListPublic(t *testing.T) {
	f := newFixture()
	want := []*models.Project{models.NewProject("Páramo", nil, true)}
	f.projects.On("ListPublic", mock.Anything, DefaultPageSize, 0).Return(want, nil)

	got, err := f.svc.ListPublic(context.Background(), 0, 0)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGet_Visibility(t *testing.T) {
	private := models.NewProject("Cuencas", nil, false)
	public := models.NewProject("Humedales", nil, true)
	userID := uuid.New()

	tests := []struct {
		name    string
		project *models.Project
		ac      *auth.AuthorizationContext
		visible bool
	}{
		{"public to anonymous", public, auth.Anonymous(), true},
		{"private to anonymous", private, auth.Anonymous(), false},
		{"private to stranger", private, caller(userID), false},
		{"private to viewer", private, caller(userID, projectRole(private.ID, models.RoleViewer)), true},
		{"private to viewer of another project", private, caller(userID, projectRole(public.ID, models.RoleOwner)), false},
		{"private to system admin", private, caller(userID, systemAdmin), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.projects.On("GetByID", mock.Anything, tt.project.ID).Return(tt.project, nil)

			got, err := f.svc.Get(context.Background(), tt.ac, tt.project.ID)

			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, tt.project, got)
			} else {
				assert.True(t, services.IsNotFoundError(err))
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.projects.On("GetByID", mock.Anything, id).Return(nil, repositories.ErrNotFound)

	_, err := f.svc.Get(context.Background(), auth.Anonymous(), id)
	assert.True(t, services.IsNotFoundError(err))
}

func TestCreate(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	info := json.RawMessage(`{"region":"Antioquia"}`)

	f.projects.On("Create", inTx, mock.MatchedBy(func(p *models.Project) bool {
		return p.Name == "Río Medellín" && !p.Public
	})).Return(nil)
	f.projects.On("AddMember", inTx, mock.MatchedBy(func(m *models.ProjectMember) bool {
		return m.UserID == userID
	})).Return(nil)
	f.roles.On("Create", inTx, mock.MatchedBy(func(r *models.UserRole) bool {
		return r.UserID == userID && r.RoleName == models.RoleOwner && r.RoleType == models.RoleTypeProject && r.EntityID != nil
	})).Return(nil)

	project, err := f.svc.Create(context.Background(), caller(userID), CreateProjectRequest{
		Name: "  Río Medellín ", Info: info,
	})

	require.NoError(t, err)
	assert.Equal(t, "Río Medellín", project.Name)
	assert.True(t, f.tx.committed)
	f.projects.AssertExpectations(t)
	f.roles.AssertExpectations(t)
}

func TestCreate_RollsBackWhenRoleFails(t *testing.T) {
	f := newFixture()
	f.projects.On("Create", inTx, mock.Anything).Return(nil)
	f.projects.On("AddMember", inTx, mock.Anything).Return(nil)
	f.roles.On("Create", inTx, mock.Anything).Return(errors.New("connection reset"))

	_, err := f.svc.Create(context.Background(), caller(uuid.New()), CreateProjectRequest{Name: "Bosque"})

	assert.True(t, services.IsInternalError(err))
	assert.True(t, f.tx.rolledBack)
	assert.False(t, f.tx.committed)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), auth.Anonymous(), CreateProjectRequest{Name: "Bosque"})
	assert.True(t, services.IsUnauthorizedError(err))

	_, err = f.svc.Create(context.Background(), caller(uuid.New()), CreateProjectRequest{Name: "   "})
	require.True(t, services.IsValidationError(err))
	assert.Contains(t, services.GetErrorDetails(err), "projectname")

	f.projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdate_Permissions(t *testing.T) {
	project := models.NewProject("Cuencas", nil, false)
	userID := uuid.New()
	name := "Cuencas del Norte"
	public := true

	tests := []struct {
		name    string
		ac      *auth.AuthorizationContext
		allowed bool
	}{
		{"owner", caller(userID, projectRole(project.ID, models.RoleOwner)), true},
		{"editor", caller(userID, projectRole(project.ID, models.RoleEditor)), true},
		{"system admin", caller(userID, systemAdmin), true},
		{"viewer", caller(userID, projectRole(project.ID, models.RoleViewer)), false},
		{"gis", caller(userID, projectRole(project.ID, models.RoleGIS)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			current := *project
			f.projects.On("GetByID", mock.Anything, project.ID).Return(&current, nil)
			f.projects.On("Update", mock.Anything, mock.Anything).Return(nil)

			got, err := f.svc.Update(context.Background(), tt.ac, project.ID, UpdateProjectRequest{Name: &name, Public: &public})

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, name, got.Name)
				assert.True(t, got.Public)
			} else {
				assert.True(t, services.IsForbiddenError(err))
				f.projects.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	f := newFixture()
	project := uuid.New()
	userID := uuid.New()

	err := f.svc.Delete(context.Background(), caller(userID, projectRole(project, models.RoleAdmin)), project)
	assert.True(t, services.IsForbiddenError(err))

	f.projects.On("Delete", mock.Anything, project).Return(nil)
	require.NoError(t, f.svc.Delete(context.Background(), caller(userID, projectRole(project, models.RoleOwner)), project))

	err = f.svc.Delete(context.Background(), auth.Anonymous(), project)
	assert.True(t, services.IsUnauthorizedError(err))
}

func TestMembers(t *testing.T) {
	f := newFixture()
	project := uuid.New()
	userID := uuid.New()
	members := []*models.ProjectMember{models.NewProjectMember(project, userID)}
	f.projects.On("ListMembers", mock.Anything, project).Return(members, nil)

	got, err := f.svc.Members(context.Background(), caller(userID, projectRole(project, models.RoleViewer)), project)
	require.NoError(t, err)
	assert.Equal(t, members, got)

	_, err = f.svc.Members(context.Background(), caller(uuid.New()), project)
	assert.True(t, services.IsForbiddenError(err))
}

func TestRemoveMember(t *testing.T) {
	f := newFixture()
	project := uuid.New()
	member := uuid.New()
	f.projects.On("RemoveMember", mock.Anything, project, member).Return(nil)

	err := f.svc.RemoveMember(context.Background(), caller(uuid.New(), projectRole(project, models.RoleEditor)), project, member)
	assert.True(t, services.IsForbiddenError(err))

	require.NoError(t, f.svc.RemoveMember(context.Background(), caller(uuid.New(), projectRole(project, models.RoleAdmin)), project, member))
	f.projects.AssertNumberOfCalls(t, "RemoveMember", 1)
}

func TestComments(t *testing.T) {
	project := models.NewProject("Humedales", nil, true)
	userID := uuid.New()

	t.Run("list requires a session", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ListComments(context.Background(), auth.Anonymous(), project.ID, 10, 0)
		assert.True(t, services.IsUnauthorizedError(err))
	})

	t.Run("list visible project", func(t *testing.T) {
		f := newFixture()
		f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		f.comments.On("ListByProject", mock.Anything, project.ID, 10, 0).Return([]*models.Comment{}, nil)

		got, err := f.svc.ListComments(context.Background(), caller(userID), project.ID, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture()
		f.projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		f.comments.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Comment) bool {
			return c.Body == "Buen trabajo" && c.UserID == userID && c.ProjectID == project.ID
		})).Return(nil)

		comment, err := f.svc.CreateComment(context.Background(), caller(userID), project.ID, CreateCommentRequest{Body: " Buen trabajo "})
		require.NoError(t, err)
		assert.Equal(t, int64(42), comment.ID)
	})

	t.Run("create on hidden project", func(t *testing.T) {
		f := newFixture()
		hidden := models.NewProject("Privado", nil, false)
		f.projects.On("GetByID", mock.Anything, hidden.ID).Return(hidden, nil)

		_, err := f.svc.CreateComment(context.Background(), caller(userID), hidden.ID, CreateCommentRequest{Body: "hola"})
		assert.True(t, services.IsNotFoundError(err))
		f.comments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestDeleteComment(t *testing.T) {
	project := uuid.New()
	author := uuid.New()
	comment := &models.Comment{ID: 7, ProjectID: project, UserID: author, Body: "hola"}

	tests := []struct {
		name    string
		ac      *auth.AuthorizationContext
		allowed bool
	}{
		{"author", caller(author), true},
		{"project admin", caller(uuid.New(), projectRole(project, models.RoleAdmin)), true},
		{"project editor", caller(uuid.New(), projectRole(project, models.RoleEditor)), false},
		{"stranger", caller(uuid.New()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.comments.On("GetByID", mock.Anything, int64(7)).Return(comment, nil)
			f.comments.On("Delete", mock.Anything, int64(7)).Return(nil)

			err := f.svc.DeleteComment(context.Background(), tt.ac, project, 7)

			if tt.allowed {
				require.NoError(t, err)
				f.comments.AssertCalled(t, "Delete", mock.Anything, int64(7))
			} else {
				assert.True(t, services.IsForbiddenError(err))
				f.comments.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			}
		})
	}

	t.Run("comment of another project", func(t *testing.T) {
		f := newFixture()
		f.comments.On("GetByID", mock.Anything, int64(7)).Return(comment, nil)

		err := f.svc.DeleteComment(context.Background(), caller(author), uuid.New(), 7)
		assert.True(t, services.IsNotFoundError(err))
	})
}
