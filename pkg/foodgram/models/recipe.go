package models

import (
	"time"
)

const (
	RecipeNameMaxLength = 200
	MinCookingTime      = 1
	MaxCookingTime      = 1440
	MinAmount           = 1
	MaxAmount           = 5000
)

// Recipe is the aggregate root owning its ingredient amounts and tags
type Recipe struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Text        string    `gorm:"not null" json:"text"`
	Image       string    `gorm:"not null" json:"image"`
	ImageKey    string    `json:"-"`
	CookingTime int       `gorm:"not null" json:"cooking_time"`
	PubDate     time.Time `gorm:"not null;index" json:"pub_date"`

	// Relationships
	Author      User               `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags        []Tag              `gorm:"many2many:recipe_tags;" json:"tags,omitempty"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`
}

// RecipeIngredient is the amount of one ingredient in one recipe
type RecipeIngredient struct {
	ID           uint `gorm:"primarykey" json:"id"`
	RecipeID     uint `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"recipe_id"`
	IngredientID uint `gorm:"not null;uniqueIndex:idx_recipe_ingredient;index" json:"ingredient_id"`
	Amount       int  `gorm:"not null" json:"amount"`

	Ingredient Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
}
