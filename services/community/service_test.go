package community

import (
	"context"
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

// MockCommunityRepository is a mock implementation of repositories.CommunityRepository
type MockCommunityRepository struct {
	mock.Mock
}

func (m *MockCommunityRepository) Create(ctx context.Context, community *models.Community, extentWKT string) error {
	return m.Called(ctx, community, extentWKT).Error(0)
}

func (m *MockCommunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Community), args.Error(1)
}

func (m *MockCommunityRepository) List(ctx context.Context, limit, offset int) ([]*models.Community, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Community), args.Error(1)
}

func (m *MockCommunityRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Community, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Community), args.Error(1)
}

func (m *MockCommunityRepository) AddMember(ctx context.Context, communityID, userID uuid.UUID) error {
	return m.Called(ctx, communityID, userID).Error(0)
}

func (m *MockCommunityRepository) RemoveMember(ctx context.Context, communityID, userID uuid.UUID) error {
	return m.Called(ctx, communityID, userID).Error(0)
}

func (m *MockCommunityRepository) LinkProject(ctx context.Context, link *models.CommunityProject) error {
	return m.Called(ctx, link).Error(0)
}

func (m *MockCommunityRepository) ListProjects(ctx context.Context, communityID uuid.UUID) ([]*models.Project, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
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

// immediateTx runs fn without a database and records whether it committed
type immediateTx struct {
	ctx       context.Context
	committed bool
}

func (t *immediateTx) Commit() error {
	t.committed = true
	return nil
}

func (t *immediateTx) Rollback() error { return nil }
func (t *immediateTx) Context() context.Context { return t.ctx }

type immediateTxManager struct {
	last *immediateTx
}

func (m *immediateTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	m.last = &immediateTx{ctx: ctx}
	return m.last, nil
}

func (m *immediateTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return services.WithTransaction(ctx, m, fn)
}

func newTestService() (*Service, *MockCommunityRepository, *MockRoleRepository, *immediateTxManager) {
	communities := new(MockCommunityRepository)
	roles := new(MockRoleRepository)
	txMgr := new(immediateTxManager)
	return NewService(communities, roles, txMgr, zap.NewNop()), communities, roles, txMgr
}

func caller(claims ...models.RoleClaim) *auth.AuthorizationContext {
	if claims == nil {
		claims = []models.RoleClaim{}
	}
	return &auth.AuthorizationContext{
		Session: &supabase.Session{AccessToken: "token"},
		User:    &supabase.User{ID: uuid.NewString()},
		Roles:   claims,
	}
}

func communityRole(communityID uuid.UUID, name models.RoleName) models.RoleClaim {
	id := communityID.String()
	return models.RoleClaim{EntityID: &id, RoleName: name, RoleType: models.RoleTypeCommunity}
}

var systemAdmin = models.RoleClaim{RoleName: models.RoleSystemAdmin, RoleType: models.RoleTypeGlobal}

func TestList(t *testing.T) {
	open := models.NewCommunity("Comuna 13", true)
	open.ExtentCenter = []float64{-75.6, 6.25}
	private := models.NewCommunity("Vereda El Placer", false)

	tests := []struct {
		name string
		ac   *auth.AuthorizationContext
		want []*models.Community
	}{
		{"anonymous sees public only", auth.Anonymous(), []*models.Community{open}},
		{"member sees own private community", caller(communityRole(private.ID, models.RoleMember)), []*models.Community{open, private}},
		{"system admin sees all", caller(systemAdmin), []*models.Community{open, private}},
		{"role elsewhere", caller(communityRole(uuid.New(), models.RoleOwner)), []*models.Community{open}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, communities, _, _ := newTestService()
			communities.On("List", mock.Anything, 20, 40).Return([]*models.Community{open, private}, nil)

			got, err := svc.List(context.Background(), tt.ac, 20, 40)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGet(t *testing.T) {
	private := models.NewCommunity("Vereda El Placer", false)

	tests := []struct {
		name    string
		ac      *auth.AuthorizationContext
		visible bool
	}{
		{"anonymous", auth.Anonymous(), false},
		{"member", caller(communityRole(private.ID, models.RoleMember)), true},
		{"system admin", caller(systemAdmin), true},
		{"other community", caller(communityRole(uuid.New(), models.RoleOwner)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, communities, _, _ := newTestService()
			communities.On("GetByID", mock.Anything, private.ID).Return(private, nil)

			_, err := svc.Get(context.Background(), tt.ac, private.ID)
			if tt.visible {
				assert.NoError(t, err)
			} else {
				assert.True(t, services.IsNotFoundError(err))
			}
		})
	}
}

func TestCreate(t *testing.T) {
	svc, communities, roles, txMgr := newTestService()
	ac := caller(systemAdmin)
	extent := "POLYGON((-75.7 6.1, -75.5 6.1, -75.5 6.3, -75.7 6.3, -75.7 6.1))"

	communities.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Community) bool {
		return c.Name == "Comuna 13" && c.Public
	}), extent).Return(nil)
	communities.On("AddMember", mock.Anything, mock.Anything, uuid.MustParse(ac.UserID())).Return(nil)
	roles.On("Create", mock.Anything, mock.MatchedBy(func(r *models.UserRole) bool {
		return r.RoleName == models.RoleOwner && r.RoleType == models.RoleTypeCommunity
	})).Return(nil)

	community, err := svc.Create(context.Background(), ac, CreateCommunityRequest{
		Name: "Comuna 13", Extent: " " + extent + " ", Public: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "Comuna 13", community.Name)
	assert.True(t, txMgr.last.committed)
	communities.AssertExpectations(t)
	roles.AssertExpectations(t)
}

func TestCreate_Rejections(t *testing.T) {
	svc, communities, _, _ := newTestService()

	_, err := svc.Create(context.Background(), auth.Anonymous(), CreateCommunityRequest{Name: "X"})
	assert.True(t, services.IsUnauthorizedError(err))

	_, err = svc.Create(context.Background(), caller(communityRole(uuid.New(), models.RoleOwner)), CreateCommunityRequest{Name: "X"})
	assert.True(t, services.IsForbiddenError(err))

	_, err = svc.Create(context.Background(), caller(systemAdmin), CreateCommunityRequest{Name: "X", Extent: "LINESTRING(0 0, 1 1)"})
	require.True(t, services.IsValidationError(err))
	assert.Contains(t, services.GetErrorDetails(err), "extent")

	communities.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsExtent(t *testing.T) {
	assert.True(t, isExtent("POINT(-75.56 6.25)"))
	assert.True(t, isExtent("multipolygon (((0 0, 1 0, 1 1, 0 0)))"))
	assert.False(t, isExtent("POINT"))
	assert.False(t, isExtent("GEOMETRYCOLLECTION(POINT(0 0))"))
}

func TestRemoveMember(t *testing.T) {
	community := uuid.New()
	member := uuid.New()

	tests := []struct {
		name    string
		role    models.RoleName
		allowed bool
	}{
		{"owner", models.RoleOwner, true},
		{"moderator", models.RoleModerator, true},
		{"member", models.RoleMember, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, communities, _, _ := newTestService()
			communities.On("RemoveMember", mock.Anything, community, member).Return(nil)

			err := svc.RemoveMember(context.Background(), caller(communityRole(community, tt.role)), community, member)
			if tt.allowed {
				require.NoError(t, err)
				communities.AssertExpectations(t)
			} else {
				assert.True(t, services.IsForbiddenError(err))
				communities.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestLinkProject(t *testing.T) {
	community := uuid.New()
	projectID := uuid.New()

	svc, communities, _, _ := newTestService()
	communities.On("LinkProject", mock.Anything, mock.MatchedBy(func(l *models.CommunityProject) bool {
		return l.CommunityID == community && l.ProjectID == projectID
	})).Return(nil)

	link, err := svc.LinkProject(context.Background(), caller(communityRole(community, models.RoleAdmin)), community,
		LinkProjectRequest{ProjectID: projectID.String()})
	require.NoError(t, err)
	assert.Equal(t, projectID, link.ProjectID)

	_, err = svc.LinkProject(context.Background(), caller(communityRole(community, models.RoleModerator)), community,
		LinkProjectRequest{ProjectID: projectID.String()})
	assert.True(t, services.IsForbiddenError(err))

	_, err = svc.LinkProject(context.Background(), caller(systemAdmin), community, LinkProjectRequest{ProjectID: "nope"})
	assert.True(t, services.IsValidationError(err))
}

func TestProjects_FiltersHidden(t *testing.T) {
	svc, communities, _, _ := newTestService()
	c := models.NewCommunity("Comuna 13", true)
	public := models.NewProject("Huertas", nil, true)
	hidden := models.NewProject("Censo", nil, false)
	communities.On("GetByID", mock.Anything, c.ID).Return(c, nil)
	communities.On("ListProjects", mock.Anything, c.ID).Return([]*models.Project{public, hidden}, nil)

	got, err := svc.Projects(context.Background(), auth.Anonymous(), c.ID)

	require.NoError(t, err)
	assert.Equal(t, []*models.Project{public}, got)
}
