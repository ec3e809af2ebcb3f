package models

import (
	"time"
)

// Tag is a catalog label applied to recipes (breakfast, dinner, ...)
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:200;uniqueIndex;not null" json:"name"`
	Color     string    `gorm:"size:7;uniqueIndex;not null" json:"color"`
	Slug      string    `gorm:"size:200;uniqueIndex;not null" json:"slug"`

	// Relationships
	Recipes []Recipe `gorm:"many2many:recipe_tags;" json:"recipes,omitempty"`
}
