// Package testutil holds fixtures shared by handler and service tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

// SetupTestDB opens a migrated in-memory SQLite database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", "error")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupTestRouter returns a bare gin engine in test mode.
func SetupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// CreateTestUser inserts a user with password "password123".
func CreateTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    "First " + username,
		LastName:     "Last " + username,
		PasswordHash: hash,
		SystemRole:   models.SystemRoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestAdmin inserts an admin user.
func CreateTestAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := CreateTestUser(t, db, username)
	if err := db.Model(user).Update("system_role", models.SystemRoleAdmin).Error; err != nil {
		t.Fatalf("Failed to promote admin: %v", err)
	}
	user.SystemRole = models.SystemRoleAdmin
	return user
}

// CreateTestTag inserts a tag; color is derived from the slug.
func CreateTestTag(t *testing.T, db *gorm.DB, slug string) *models.Tag {
	t.Helper()
	var sum int
	for _, r := range slug {
		sum = sum*31 + int(r)
	}
	tag := &models.Tag{
		Name:  "Tag " + slug,
		Color: fmt.Sprintf("#%06X", sum&0xFFFFFF),
		Slug:  slug,
	}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("Failed to create test tag: %v", err)
	}
	return tag
}

// CreateTestIngredient inserts an ingredient.
func CreateTestIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("Failed to create test ingredient: %v", err)
	}
	return ing
}

// Amount pairs an ingredient with a quantity for CreateTestRecipe.
type Amount struct {
	Ingredient *models.Ingredient
	Amount     int
}

// CreateTestRecipe inserts a recipe with its associations directly.
func CreateTestRecipe(t *testing.T, db *gorm.DB, author *models.User, name string, tags []*models.Tag, amounts ...Amount) *models.Recipe {
	t.Helper()
	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        name,
		Text:        "Cook " + name,
		Image:       "http://localhost:8080/media/recipes/images/" + name + ".png",
		CookingTime: 30,
		PubDate:     time.Now(),
	}
	for _, tag := range tags {
		recipe.Tags = append(recipe.Tags, *tag)
	}
	for _, a := range amounts {
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
			IngredientID: a.Ingredient.ID,
			Amount:       a.Amount,
		})
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("Failed to create test recipe: %v", err)
	}
	return recipe
}

// GetAuthHeader returns an Authorization header value for user.
func GetAuthHeader(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return "Bearer " + token
}
