// Package recipes owns the recipe aggregate: a recipe with its ingredient
// amounts and tags, always written together in one transaction.
package recipes

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IngredientAmount is one requested (ingredient, amount) pair
type IngredientAmount struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeInput is the full desired state of a recipe
type RecipeInput struct {
	Ingredients []IngredientAmount `json:"ingredients"`
	Tags        []uint             `json:"tags"`
	Image       string             `json:"image"`
	Name        string             `json:"name"`
	Text        string             `json:"text"`
	CookingTime int                `json:"cooking_time"`
}

// ListFilter narrows the recipe list. ViewerID 0 is anonymous.
type ListFilter struct {
	ViewerID       uint
	AuthorID       uint
	TagSlugs       []string
	Favorited      bool
	InShoppingCart bool
	Offset         int
	Limit          int
}

// Service implements recipe reads and writes
type Service struct {
	db            *gorm.DB
	storage       media.Storage
	maxImageBytes int64
	favorites     *relations.Store[models.Favorite]
	cart          *relations.Store[models.ShoppingCartItem]
}

// NewService creates a recipe service
func NewService(db *gorm.DB, storage media.Storage, maxImageBytes int64,
	favorites *relations.Store[models.Favorite], cart *relations.Store[models.ShoppingCartItem]) *Service {
	return &Service{
		db:            db,
		storage:       storage,
		maxImageBytes: maxImageBytes,
		favorites:     favorites,
		cart:          cart,
	}
}

// Create validates in and stores a new recipe by authorID.
func (s *Service) Create(ctx context.Context, authorID uint, in RecipeInput) (*models.Recipe, error) {
	img, err := s.validate(in, true)
	if err != nil {
		return nil, err
	}
	tags, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	url, key, err := s.saveImage(ctx, img)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        strings.TrimSpace(in.Name),
		Text:        in.Text,
		Image:       url,
		ImageKey:    key,
		CookingTime: in.CookingTime,
		PubDate:     time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return err
		}
		return writeAssociations(tx, &recipe, tags, in.Ingredients)
	})
	if err != nil {
		s.discardImage(ctx, key)
		return nil, fmt.Errorf("create recipe: %w", err)
	}

	metrics.RecipesWritten.WithLabelValues("create").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipe.ID).Uint("author_id", authorID).Msg("Recipe created")
	return s.Get(ctx, recipe.ID)
}

// Replace overwrites every field and association of recipeID. Only the
// author may replace a recipe. Omitting the image keeps the current one.
func (s *Service) Replace(ctx context.Context, actorID, recipeID uint, in RecipeInput) (*models.Recipe, error) {
	recipe, err := s.loadOwned(ctx, actorID, recipeID)
	if err != nil {
		return nil, err
	}
	img, err := s.validate(in, false)
	if err != nil {
		return nil, err
	}
	tags, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":         strings.TrimSpace(in.Name),
		"text":         in.Text,
		"cooking_time": in.CookingTime,
	}
	oldKey := recipe.ImageKey
	var newKey string
	if img != nil {
		url, key, err := s.saveImage(ctx, img)
		if err != nil {
			return nil, err
		}
		updates["image"] = url
		updates["image_key"] = key
		newKey = key
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(recipe).Updates(updates).Error; err != nil {
			return err
		}
		return writeAssociations(tx, recipe, tags, in.Ingredients)
	})
	if err != nil {
		s.discardImage(ctx, newKey)
		return nil, fmt.Errorf("replace recipe %d: %w", recipeID, err)
	}
	if newKey != "" {
		s.discardImage(ctx, oldKey)
	}

	metrics.RecipesWritten.WithLabelValues("replace").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipeID).Msg("Recipe replaced")
	return s.Get(ctx, recipeID)
}

// Delete removes recipeID with its associations and relation rows.
func (s *Service) Delete(ctx context.Context, actorID, recipeID uint) error {
	recipe, err := s.loadOwned(ctx, actorID, recipeID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return DeleteTx(tx, recipe, s.favorites, s.cart)
	})
	if err != nil {
		return fmt.Errorf("delete recipe %d: %w", recipeID, err)
	}
	s.discardImage(ctx, recipe.ImageKey)

	metrics.RecipesWritten.WithLabelValues("delete").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipeID).Msg("Recipe deleted")
	return nil
}

// DeleteTx removes a recipe and everything that references it using tx.
// Stored images are left to the caller.
func DeleteTx(tx *gorm.DB, recipe *models.Recipe,
	favorites *relations.Store[models.Favorite], cart *relations.Store[models.ShoppingCartItem]) error {
	if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
		return err
	}
	if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return err
	}
	if err := favorites.DeleteTarget(tx, recipe.ID); err != nil {
		return err
	}
	if err := cart.DeleteTarget(tx, recipe.ID); err != nil {
		return err
	}
	return tx.Delete(recipe).Error
}

// Exists reports whether recipeID exists, as a NotFound error when it does not.
func (s *Service) Exists(ctx context.Context, recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		return nil, apierr.OrNotFound(err, "Recipe not found")
	}
	return &recipe, nil
}

// Get loads a recipe with author, tags and ingredients.
func (s *Service) Get(ctx context.Context, recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.preload(s.db.WithContext(ctx)).First(&recipe, recipeID).Error; err != nil {
		return nil, apierr.OrNotFound(err, "Recipe not found")
	}
	return &recipe, nil
}

// List returns one page of recipes matching f, newest first, and the total count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Recipe, int64, error) {
	if (f.Favorited || f.InShoppingCart) && f.ViewerID == 0 {
		return []models.Recipe{}, 0, nil
	}

	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Recipe{})
		if f.AuthorID != 0 {
			q = q.Where("recipes.author_id = ?", f.AuthorID)
		}
		if len(f.TagSlugs) > 0 {
			tagged := s.db.Table("recipe_tags").
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", f.TagSlugs)
			q = q.Where("recipes.id IN (?)", tagged)
		}
		if f.Favorited {
			q = q.Where("recipes.id IN (?)", s.favorites.TargetIDs(ctx, f.ViewerID))
		}
		if f.InShoppingCart {
			q = q.Where("recipes.id IN (?)", s.cart.TargetIDs(ctx, f.ViewerID))
		}
		return q
	}

	var count int64
	if err := filtered().Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	var recipes []models.Recipe
	q := s.preload(filtered()).Order("recipes.pub_date DESC, recipes.id DESC")
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	if err := q.Find(&recipes).Error; err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, count, nil
}

func (s *Service) preload(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id ASC") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id ASC") }).
		Preload("Ingredients.Ingredient")
}

func (s *Service) loadOwned(ctx context.Context, actorID, recipeID uint) (*models.Recipe, error) {
	recipe, err := s.Exists(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != actorID {
		return nil, apierr.PermissionDenied("Only the author can modify this recipe")
	}
	return recipe, nil
}

// validate checks in without touching the database. Checks run in a fixed
// order and the first failure is returned.
func (s *Service) validate(in RecipeInput, creating bool) (*media.Image, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, apierr.Validation("name", "this field is required")
	case strings.TrimSpace(in.Text) == "":
		return nil, apierr.Validation("text", "this field is required")
	case in.CookingTime == 0:
		return nil, apierr.Validation("cooking_time", "this field is required")
	case creating && in.Image == "":
		return nil, apierr.Validation("image", "this field is required")
	case len(in.Ingredients) == 0:
		return nil, apierr.Validation("ingredients", "at least one ingredient is required")
	case len(in.Tags) == 0:
		return nil, apierr.Validation("tags", "at least one tag is required")
	}

	seenIngredients := make(map[uint]bool, len(in.Ingredients))
	for _, item := range in.Ingredients {
		if seenIngredients[item.ID] {
			return nil, apierr.Validation("ingredients", fmt.Sprintf("ingredient %d is listed more than once", item.ID))
		}
		seenIngredients[item.ID] = true
	}
	seenTags := make(map[uint]bool, len(in.Tags))
	for _, id := range in.Tags {
		if seenTags[id] {
			return nil, apierr.Validation("tags", fmt.Sprintf("tag %d is listed more than once", id))
		}
		seenTags[id] = true
	}

	if in.CookingTime < models.MinCookingTime || in.CookingTime > models.MaxCookingTime {
		return nil, apierr.Validation("cooking_time",
			fmt.Sprintf("must be between %d and %d minutes", models.MinCookingTime, models.MaxCookingTime))
	}
	for _, item := range in.Ingredients {
		if item.Amount < models.MinAmount || item.Amount > models.MaxAmount {
			return nil, apierr.Validation("ingredients",
				fmt.Sprintf("amount must be between %d and %d", models.MinAmount, models.MaxAmount))
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Name)) > models.RecipeNameMaxLength {
		return nil, apierr.Validation("name",
			fmt.Sprintf("must be at most %d characters", models.RecipeNameMaxLength))
	}

	if in.Image == "" {
		return nil, nil
	}
	return media.DecodeDataURI(in.Image, s.maxImageBytes)
}

// resolve checks that every referenced ingredient and tag exists and
// returns the tags in request order.
func (s *Service) resolve(ctx context.Context, in RecipeInput) ([]models.Tag, error) {
	ingredientIDs := make([]uint, len(in.Ingredients))
	for i, item := range in.Ingredients {
		ingredientIDs[i] = item.ID
	}
	var found []uint
	if err := s.db.WithContext(ctx).Model(&models.Ingredient{}).
		Where("id IN ?", ingredientIDs).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("resolve ingredients: %w", err)
	}
	if missing, ok := firstMissing(ingredientIDs, found); ok {
		return nil, apierr.Validation("ingredients", fmt.Sprintf("ingredient %d does not exist", missing))
	}

	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("id IN ?", in.Tags).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}
	tagIDs := make([]uint, len(tags))
	byID := make(map[uint]models.Tag, len(tags))
	for i, t := range tags {
		tagIDs[i] = t.ID
		byID[t.ID] = t
	}
	if missing, ok := firstMissing(in.Tags, tagIDs); ok {
		return nil, apierr.Validation("tags", fmt.Sprintf("tag %d does not exist", missing))
	}

	ordered := make([]models.Tag, len(in.Tags))
	for i, id := range in.Tags {
		ordered[i] = byID[id]
	}
	return ordered, nil
}

func firstMissing(want, have []uint) (uint, bool) {
	present := make(map[uint]bool, len(have))
	for _, id := range have {
		present[id] = true
	}
	for _, id := range want {
		if !present[id] {
			return id, true
		}
	}
	return 0, false
}

// writeAssociations replaces the tag set and the ingredient rows of recipe.
func writeAssociations(tx *gorm.DB, recipe *models.Recipe, tags []models.Tag, items []IngredientAmount) error {
	if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
		return err
	}
	if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return err
	}
	rows := make([]models.RecipeIngredient, len(items))
	for i, item := range items {
		rows[i] = models.RecipeIngredient{
			RecipeID:     recipe.ID,
			IngredientID: item.ID,
			Amount:       item.Amount,
		}
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func (s *Service) saveImage(ctx context.Context, img *media.Image) (string, string, error) {
	key := media.RecipeImageKey(img.Ext)
	url, err := s.storage.Save(ctx, key, img.ContentType, img.Reader())
	if err != nil {
		return "", "", fmt.Errorf("store recipe image: %w", err)
	}
	return url, key, nil
}

func (s *Service) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to delete recipe image")
	}
}
