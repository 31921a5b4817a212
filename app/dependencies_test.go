package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/commons-portal/config"
	"github.com/upb/commons-portal/repositories/postgres"
	"go.uber.org/zap/zaptest"
)

func TestNewDependenciesFromFactory(t *testing.T) {
	t.Run("secret validator when a jwt secret is set", func(t *testing.T) {
		cfg := testConfig("http://127.0.0.1:54321")
		cfg.Supabase.JWTSecret = "super-secret-jwt-token-with-at-least-32-characters"
		factory, mock := testFactory(t)

		deps, err := NewDependenciesFromFactory(context.Background(), cfg, factory, zaptest.NewLogger(t))
		require.NoError(t, err)

		// Verify infrastructure
		assert.NotNil(t, deps.DB)
		assert.NotNil(t, deps.Repositories.Projects)
		assert.NotNil(t, deps.Repositories.Communities)
		assert.NotNil(t, deps.Repositories.UserProfiles)
		assert.NotNil(t, deps.Repositories.UserRoles)
		assert.NotNil(t, deps.Repositories.Comments)
		assert.NotNil(t, deps.TxManager)

		// Verify auth and services
		assert.NotNil(t, deps.Supabase)
		assert.NotNil(t, deps.TokenValidator)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.AuthHandler)
		assert.NotNil(t, deps.Projects)
		assert.NotNil(t, deps.Communities)
		assert.NotNil(t, deps.Users)
		assert.NotNil(t, deps.Profiles)
		assert.Equal(t, AuthModeSecret, deps.AuthMode())

		mock.ExpectClose()
		assert.NoError(t, deps.Close(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("auth disabled without supabase", func(t *testing.T) {
		factory, _ := testFactory(t)

		deps, err := NewDependenciesFromFactory(context.Background(), testConfig(""), factory, zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.Nil(t, deps.Supabase)
		assert.Nil(t, deps.AuthHandler)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.Equal(t, AuthModeDisabled, deps.AuthMode())
	})

	t.Run("session only when the key set is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)
		factory, _ := testFactory(t)

		deps, err := NewDependenciesFromFactory(context.Background(), testConfig(srv.URL), factory, zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.Nil(t, deps.TokenValidator)
		assert.NotNil(t, deps.AuthHandler)
		assert.Equal(t, AuthModeSession, deps.AuthMode())
	})

	t.Run("invalid supabase url", func(t *testing.T) {
		factory, _ := testFactory(t)

		_, err := NewDependenciesFromFactory(context.Background(), testConfig("not a url"), factory, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize supabase")
	})
}

func TestNewDependencies_DatabaseFailure(t *testing.T) {
	cfg := testConfig("")
	cfg.Database.ConnectionString = "postgres://portal@127.0.0.1:1/portal?sslmode=disable&connect_timeout=1"

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to initialize database")
}

// Test helpers

func testConfig(supabaseURL string) *config.Config {
	cfg := &config.Config{Environment: "test"}
	cfg.Supabase.URL = supabaseURL
	if supabaseURL != "" {
		cfg.Supabase.AnonKey = "anon"
	}
	cfg.Supabase.AvatarBucket = "avatars"
	cfg.Server.PublicURL = "http://localhost:5173"
	return cfg
}

func testFactory(t *testing.T) (*postgres.RepositoryFactory, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	return postgres.NewRepositoryFactoryFromDB(postgres.NewDBFromConn(conn, logger), logger), mock
}
