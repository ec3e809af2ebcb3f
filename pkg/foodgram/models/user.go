package models

import (
	"time"
)

// SystemRole represents a user's system-wide role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// User is an account that can author recipes and follow other authors
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Email        string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Username     string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName    string     `gorm:"size:150;not null" json:"first_name"`
	LastName     string     `gorm:"size:150;not null" json:"last_name"`
	PasswordHash string     `gorm:"not null" json:"-"`
	SystemRole   SystemRole `gorm:"type:varchar(20);default:'user'" json:"system_role"`

	// Relationships
	Recipes []Recipe `gorm:"foreignKey:AuthorID" json:"recipes,omitempty"`
}
