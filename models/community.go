package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Community represents a row of the community table. The PostGIS extent is exposed
// as its center point and bounding box, [lon, lat] and [minLon, minLat, maxLon, maxLat].
type Community struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	ExtentCenter []float64       `json:"extent_center,omitempty" db:"extent_center"`
	ExtentBounds []float64       `json:"extent_bounds,omitempty" db:"extent_bounds"`
	ContactInfo  json.RawMessage `json:"contactinfo,omitempty" db:"contactinfo"`
	Info         json.RawMessage `json:"communityinfo,omitempty" db:"communityinfo"`
	Public       bool            `json:"public" db:"public"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	LastUpdated  time.Time       `json:"last_updated" db:"last_updated"`
}

// TableName returns the table name for the Community model
func (Community) TableName() string {
	return "community"
}

// NewCommunity creates a new Community instance
func NewCommunity(name string, public bool) *Community {
	now := time.Now()
	return &Community{
		ID:          uuid.New(),
		Name:        name,
		Public:      public,
		CreatedAt:   now,
		LastUpdated: now,
	}
}
