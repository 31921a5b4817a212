package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment represents a row of the comments table
type Comment struct {
	ID          int64     `json:"id" db:"id"`
	ProjectID   uuid.UUID `json:"project_id" db:"project_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Body        string    `json:"comment" db:"comment"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// TableName returns the table name for the Comment model
func (Comment) TableName() string {
	return "comments"
}
