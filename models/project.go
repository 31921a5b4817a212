package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Project represents a row of the projects table
type Project struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"projectname" db:"projectname"`
	Info        json.RawMessage `json:"projectinfo,omitempty" db:"projectinfo"`
	Public      bool            `json:"public" db:"public"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	LastUpdated time.Time       `json:"last_updated" db:"last_updated"`
}

// TableName returns the table name for the Project model
func (Project) TableName() string {
	return "projects"
}

// NewProject creates a new Project instance
func NewProject(name string, info json.RawMessage, public bool) *Project {
	now := time.Now()
	return &Project{
		ID:          uuid.New(),
		Name:        name,
		Info:        info,
		Public:      public,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// ProjectTable is a row of projects_tables, a data table attached to a project
type ProjectTable struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProjectID   uuid.UUID `json:"project_id" db:"project_id"`
	SchemaName  string    `json:"schema_name" db:"schema_name"`
	TableName   string    `json:"table_name" db:"table_name"`
	TableID     int64     `json:"tableid" db:"tableid"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}
