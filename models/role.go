package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleName is a role a user can hold on a project, a community or globally
type RoleName string

const (
	RoleOwner           RoleName = "owner"
	RoleAdmin           RoleName = "admin"
	RoleEditor          RoleName = "editor"
	RoleGIS             RoleName = "gis"
	RoleViewer          RoleName = "viewer"
	RoleModerator       RoleName = "moderator"
	RoleMember          RoleName = "member"
	RoleSystemAdmin     RoleName = "system_admin"
	RoleSystemModerator RoleName = "system_moderator"
)

// RoleType is the kind of entity a role is scoped to
type RoleType string

const (
	RoleTypeProject   RoleType = "project"
	RoleTypeCommunity RoleType = "community"
	RoleTypeGlobal    RoleType = "global"
)

var knownRoleNames = map[RoleName]struct{}{
	RoleOwner: {}, RoleAdmin: {}, RoleEditor: {}, RoleGIS: {}, RoleViewer: {},
	RoleModerator: {}, RoleMember: {}, RoleSystemAdmin: {}, RoleSystemModerator: {},
}

// IsValid reports whether the role name is one of the known role names
func (n RoleName) IsValid() bool {
	_, ok := knownRoleNames[n]
	return ok
}

// IsValid reports whether the role type is project, community or global
func (t RoleType) IsValid() bool {
	switch t {
	case RoleTypeProject, RoleTypeCommunity, RoleTypeGlobal:
		return true
	}
	return false
}

// RoleClaim is a single role assignment carried in the access token's user_roles claim.
// EntityID is nil only for global roles.
type RoleClaim struct {
	EntityID *string  `json:"entity_id"`
	RoleName RoleName `json:"role_name"`
	RoleType RoleType `json:"role_type"`
}

// Valid reports whether the claim uses a known name and type and carries an entity id
// unless it is global.
func (c RoleClaim) Valid() bool {
	if !c.RoleName.IsValid() || !c.RoleType.IsValid() {
		return false
	}
	if c.RoleType != RoleTypeGlobal && (c.EntityID == nil || *c.EntityID == "") {
		return false
	}
	return true
}

// Matches reports whether the claim is scoped to the given type and entity
func (c RoleClaim) Matches(roleType RoleType, entityID string) bool {
	if c.RoleType != roleType {
		return false
	}
	if roleType == RoleTypeGlobal {
		return true
	}
	return c.EntityID != nil && *c.EntityID == entityID
}

// UserRole is a row of the user_roles table
type UserRole struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	EntityID    *string   `json:"entity_id,omitempty" db:"entity_id"`
	RoleName    RoleName  `json:"role_name" db:"role_name"`
	RoleType    RoleType  `json:"role_type" db:"role_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// TableName returns the table name for the UserRole model
func (UserRole) TableName() string {
	return "user_roles"
}

// NewUserRole creates a role assignment; entityID is ignored for global roles
func NewUserRole(userID uuid.UUID, name RoleName, roleType RoleType, entityID string) *UserRole {
	now := time.Now()
	role := &UserRole{
		ID:          uuid.New(),
		UserID:      userID,
		RoleName:    name,
		RoleType:    roleType,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if roleType != RoleTypeGlobal {
		role.EntityID = &entityID
	}
	return role
}

// Claim converts the stored role into its token claim form
func (r *UserRole) Claim() RoleClaim {
	return RoleClaim{EntityID: r.EntityID, RoleName: r.RoleName, RoleType: r.RoleType}
}
