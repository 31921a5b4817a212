package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/commons-portal/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return NewDBFromConn(db, logger), nil
}

// NewDBFromConn wraps an already opened pool
func NewDBFromConn(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck pings the database and calls the health_check() function, which
// stamps health_status and proves the schema is reachable
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result []byte
	if err := db.QueryRowContext(ctx, "SELECT health_check()").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema creates the portal tables and functions for local development.
// Hosted projects manage the same schema through Supabase migrations.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS postgis;

	DO $$ BEGIN
		CREATE TYPE role_name AS ENUM ('owner', 'admin', 'editor', 'gis', 'viewer',
			'moderator', 'member', 'system_admin', 'system_moderator');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$;

	DO $$ BEGIN
		CREATE TYPE role_type AS ENUM ('project', 'community', 'global');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$;

	CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		projectname TEXT NOT NULL,
		projectinfo JSONB,
		public BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS community (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		extent geometry(Polygon, 4326),
		contactinfo JSONB,
		communityinfo JSONB,
		public BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS userprofile (
		id UUID PRIMARY KEY,
		firstname TEXT NOT NULL,
		lastname TEXT NOT NULL,
		bio TEXT,
		avatar_path TEXT,
		profile_picture TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		entity_id TEXT,
		role_name role_name NOT NULL,
		role_type role_type NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (role_type = 'global' OR entity_id IS NOT NULL)
	);

	CREATE TABLE IF NOT EXISTS projects_users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (project_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS communities_users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		community_id UUID NOT NULL REFERENCES community(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (community_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS communities_projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		community_id UUID NOT NULL REFERENCES community(id) ON DELETE CASCADE,
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (community_id, project_id)
	);

	CREATE TABLE IF NOT EXISTS comments (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		comment TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS projects_tables (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		schema_name TEXT NOT NULL DEFAULT 'public',
		table_name TEXT NOT NULL,
		tableid BIGINT GENERATED ALWAYS AS IDENTITY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS health_status (
		id INTEGER PRIMARY KEY,
		last_check TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_user_roles_user_id ON user_roles(user_id);
	CREATE INDEX IF NOT EXISTS idx_user_roles_entity ON user_roles(role_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_projects_users_user_id ON projects_users(user_id);
	CREATE INDEX IF NOT EXISTS idx_communities_users_user_id ON communities_users(user_id);
	CREATE INDEX IF NOT EXISTS idx_comments_project_id ON comments(project_id);

	CREATE OR REPLACE FUNCTION health_check() RETURNS JSONB AS $$
		INSERT INTO health_status (id, last_check) VALUES (1, now())
		ON CONFLICT (id) DO UPDATE SET last_check = EXCLUDED.last_check
		RETURNING jsonb_build_object('status', 'ok', 'last_check', last_check);
	$$ LANGUAGE sql;

	CREATE OR REPLACE FUNCTION get_user_roles(user_id UUID) RETURNS JSONB AS $$
		SELECT COALESCE(jsonb_agg(jsonb_build_object(
			'entity_id', r.entity_id,
			'role_name', r.role_name,
			'role_type', r.role_type)), '[]'::jsonb)
		FROM user_roles r WHERE r.user_id = get_user_roles.user_id;
	$$ LANGUAGE sql STABLE;

	CREATE OR REPLACE FUNCTION get_communities_with_transformed_extent()
	RETURNS TABLE (
		id UUID, name TEXT, extent_center FLOAT8[], extent_bounds FLOAT8[],
		contactinfo JSONB, communityinfo JSONB, public BOOLEAN,
		created_at TIMESTAMPTZ, last_updated TIMESTAMPTZ
	) AS $$
		SELECT c.id, c.name,
			CASE WHEN c.extent IS NULL THEN NULL
				ELSE ARRAY[ST_X(ST_Centroid(c.extent)), ST_Y(ST_Centroid(c.extent))] END,
			CASE WHEN c.extent IS NULL THEN NULL
				ELSE ARRAY[ST_XMin(c.extent), ST_YMin(c.extent), ST_XMax(c.extent), ST_YMax(c.extent)] END,
			c.contactinfo, c.communityinfo, c.public, c.created_at, c.last_updated
		FROM community c;
	$$ LANGUAGE sql STABLE;

	CREATE OR REPLACE FUNCTION remove_user_from_project(p_userid UUID, p_projectid UUID) RETURNS VOID AS $$
		DELETE FROM projects_users WHERE user_id = p_userid AND project_id = p_projectid;
		DELETE FROM user_roles WHERE user_id = p_userid AND role_type = 'project' AND entity_id = p_projectid::text;
	$$ LANGUAGE sql;

	CREATE OR REPLACE FUNCTION remove_user_from_community(p_userid UUID, p_communityid UUID) RETURNS VOID AS $$
		DELETE FROM communities_users WHERE user_id = p_userid AND community_id = p_communityid;
		DELETE FROM user_roles WHERE user_id = p_userid AND role_type = 'community' AND entity_id = p_communityid::text;
	$$ LANGUAGE sql;
`
