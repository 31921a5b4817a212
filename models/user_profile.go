package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile represents a row of the userprofile table. ID is the auth user id.
type UserProfile struct {
	ID             uuid.UUID `json:"id" db:"id"`
	FirstName      string    `json:"firstname" db:"firstname"`
	LastName       string    `json:"lastname" db:"lastname"`
	Bio            *string   `json:"bio,omitempty" db:"bio"`
	AvatarPath     *string   `json:"avatar_path,omitempty" db:"avatar_path"`
	ProfilePicture *string   `json:"profile_picture,omitempty" db:"profile_picture"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	LastUpdated    time.Time `json:"last_updated" db:"last_updated"`
}

// TableName returns the table name for the UserProfile model
func (UserProfile) TableName() string {
	return "userprofile"
}

// FullName joins first and last name
func (p *UserProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
