package models

import (
	"time"
)

// Favorite marks a recipe as a user's favorite
type Favorite struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe" json:"user_id"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe;index" json:"recipe_id"`
}

// ShoppingCartItem puts a recipe in a user's shopping cart
type ShoppingCartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe" json:"user_id"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe;index" json:"recipe_id"`
}

// Subscription makes a user follow an author
type Subscription struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_subscription_user_author" json:"user_id"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_subscription_user_author;index" json:"author_id"`

	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
