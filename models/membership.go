package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectMember is a row of projects_users
type ProjectMember struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProjectID   uuid.UUID `json:"project_id" db:"project_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// CommunityMember is a row of communities_users
type CommunityMember struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CommunityID uuid.UUID `json:"community_id" db:"community_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// CommunityProject is a row of communities_projects
type CommunityProject struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CommunityID uuid.UUID `json:"community_id" db:"community_id"`
	ProjectID   uuid.UUID `json:"project_id" db:"project_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// NewProjectMember creates a projects_users row
func NewProjectMember(projectID, userID uuid.UUID) *ProjectMember {
	now := time.Now()
	return &ProjectMember{ID: uuid.New(), ProjectID: projectID, UserID: userID, CreatedAt: now, LastUpdated: now}
}

// NewCommunityProject creates a communities_projects row
func NewCommunityProject(communityID, projectID uuid.UUID) *CommunityProject {
	now := time.Now()
	return &CommunityProject{ID: uuid.New(), CommunityID: communityID, ProjectID: projectID, CreatedAt: now, LastUpdated: now}
}
