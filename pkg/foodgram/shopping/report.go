// Package shopping builds the downloadable shopping list for a user's cart.
package shopping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

// Header opens every report
const Header = "Shopping list:"

// Line is one aggregated ingredient
type Line struct {
	Name            string
	MeasurementUnit string
	Total           int64
}

// Builder aggregates cart ingredients
type Builder struct {
	db *gorm.DB
}

// NewBuilder creates a report builder
func NewBuilder(db *gorm.DB) *Builder {
	return &Builder{db: db}
}

// Lines sums the ingredient amounts of every recipe in userID's cart,
// grouped by ingredient name and unit, sorted by name then unit.
func (b *Builder) Lines(ctx context.Context, userID uint) ([]Line, error) {
	var lines []Line
	err := b.db.WithContext(ctx).
		Model(&models.RecipeIngredient{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS total").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Joins("JOIN shopping_cart_items ON shopping_cart_items.recipe_id = recipe_ingredients.recipe_id").
		Where("shopping_cart_items.user_id = ?", userID).
		Group("ingredients.name, ingredients.measurement_unit").
		Scan(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate shopping cart: %w", err)
	}

	// collation differs between drivers
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Name != lines[j].Name {
			return lines[i].Name < lines[j].Name
		}
		return lines[i].MeasurementUnit < lines[j].MeasurementUnit
	})
	return lines, nil
}

// BuildReport renders userID's shopping list.
func (b *Builder) BuildReport(ctx context.Context, userID uint) (string, error) {
	lines, err := b.Lines(ctx, userID)
	if err != nil {
		return "", err
	}
	return Render(lines), nil
}

// Render formats lines as the plain-text report.
func Render(lines []Line) string {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString("\n\n")
	for _, l := range lines {
		fmt.Fprintf(&sb, "%s (%s) - %d\n", l.Name, l.MeasurementUnit, l.Total)
	}
	return sb.String()
}
