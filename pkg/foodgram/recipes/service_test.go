package recipes

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	storage   *media.LocalStorage
	service   *Service
	favorites *relations.Store[models.Favorite]
	cart      *relations.Store[models.ShoppingCartItem]
	author    *models.User
	other     *models.User
	breakfast *models.Tag
	lunch     *models.Tag
	flour     *models.Ingredient
	sugar     *models.Ingredient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	storage, err := media.NewLocalStorage(t.TempDir(), "http://localhost:8080/media")
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		storage:   storage,
		favorites: relations.Favorites(db),
		cart:      relations.ShoppingCart(db),
		author:    testutil.CreateTestUser(t, db, "chef"),
		other:     testutil.CreateTestUser(t, db, "guest"),
		breakfast: testutil.CreateTestTag(t, db, "breakfast"),
		lunch:     testutil.CreateTestTag(t, db, "lunch"),
		flour:     testutil.CreateTestIngredient(t, db, "flour", "g"),
		sugar:     testutil.CreateTestIngredient(t, db, "sugar", "g"),
	}
	f.service = NewService(db, storage, 5<<20, f.favorites, f.cart)
	return f
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (f *fixture) input(t *testing.T) RecipeInput {
	return RecipeInput{
		Ingredients: []IngredientAmount{{ID: f.sugar.ID, Amount: 50}, {ID: f.flour.ID, Amount: 200}},
		Tags:        []uint{f.lunch.ID, f.breakfast.ID},
		Image:       pngDataURI(t),
		Name:        "Pancakes",
		Text:        "Mix and fry",
		CookingTime: 20,
	}
}

func (f *fixture) imagePath(t *testing.T, url string) string {
	t.Helper()
	key := strings.TrimPrefix(url, "http://localhost:8080/media/")
	require.NotEqual(t, url, key, "image url should live under the media base url")
	return filepath.Join(f.storage.Dir(), filepath.FromSlash(key))
}

func requireKind(t *testing.T, err error, kind error, field string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
	if field != "" {
		var apiErr *apierr.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, field, apiErr.Field)
	}
}

func TestCreateRecipe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recipe, err := f.service.Create(ctx, f.author.ID, f.input(t))
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", recipe.Name)
	assert.Equal(t, f.author.ID, recipe.AuthorID)
	assert.Equal(t, "chef", recipe.Author.Username)
	assert.WithinDuration(t, time.Now(), recipe.PubDate, time.Minute)

	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, "sugar", recipe.Ingredients[0].Ingredient.Name)
	assert.Equal(t, 50, recipe.Ingredients[0].Amount)
	assert.Equal(t, "flour", recipe.Ingredients[1].Ingredient.Name)
	assert.Equal(t, 200, recipe.Ingredients[1].Amount)

	require.Len(t, recipe.Tags, 2)
	slugs := []string{recipe.Tags[0].Slug, recipe.Tags[1].Slug}
	assert.ElementsMatch(t, []string{"breakfast", "lunch"}, slugs)

	assert.True(t, strings.HasSuffix(recipe.Image, ".png"))
	_, err = os.Stat(f.imagePath(t, recipe.Image))
	assert.NoError(t, err, "image should be stored")
}

func TestCreateValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *RecipeInput)
		field  string
	}{
		{"missing name", func(in *RecipeInput) { in.Name = "  " }, "name"},
		{"missing text", func(in *RecipeInput) { in.Text = "" }, "text"},
		{"missing cooking time", func(in *RecipeInput) { in.CookingTime = 0 }, "cooking_time"},
		{"missing image", func(in *RecipeInput) { in.Image = "" }, "image"},
		{"ingredients checked before tags", func(in *RecipeInput) {
			in.Ingredients = nil
			in.Tags = nil
		}, "ingredients"},
		{"empty tags", func(in *RecipeInput) { in.Tags = nil }, "tags"},
		{"duplicate ingredient", func(in *RecipeInput) {
			in.Ingredients = append(in.Ingredients, IngredientAmount{ID: f.flour.ID, Amount: 1})
		}, "ingredients"},
		{"duplicate tag", func(in *RecipeInput) { in.Tags = append(in.Tags, f.lunch.ID) }, "tags"},
		{"cooking time too long", func(in *RecipeInput) { in.CookingTime = models.MaxCookingTime + 1 }, "cooking_time"},
		{"negative cooking time", func(in *RecipeInput) { in.CookingTime = -5 }, "cooking_time"},
		{"amount too small", func(in *RecipeInput) { in.Ingredients[0].Amount = 0 }, "ingredients"},
		{"amount too large", func(in *RecipeInput) { in.Ingredients[0].Amount = models.MaxAmount + 1 }, "ingredients"},
		{"name too long", func(in *RecipeInput) { in.Name = strings.Repeat("a", models.RecipeNameMaxLength+1) }, "name"},
		{"bad image", func(in *RecipeInput) { in.Image = "data:image/png;base64,%%%" }, "image"},
		{"bounds checked before image", func(in *RecipeInput) {
			in.Image = "garbage"
			in.CookingTime = 0
		}, "cooking_time"},
		{"unknown ingredient", func(in *RecipeInput) { in.Ingredients[0].ID = 9999 }, "ingredients"},
		{"unknown tag", func(in *RecipeInput) { in.Tags[0] = 9999 }, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(t)
			tt.mutate(&in)
			_, err := f.service.Create(ctx, f.author.ID, in)
			requireKind(t, err, apierr.ErrValidation, tt.field)
		})
	}

	var count int64
	f.db.Model(&models.Recipe{}).Count(&count)
	assert.Zero(t, count, "failed creates must not write recipes")
	f.db.Model(&models.RecipeIngredient{}).Count(&count)
	assert.Zero(t, count)

	entries, err := os.ReadDir(f.storage.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "failed creates must not store images")
}

func TestCreateAcceptsBoundaryValues(t *testing.T) {
	f := newFixture(t)
	in := f.input(t)
	in.CookingTime = models.MinCookingTime
	in.Ingredients[0].Amount = models.MinAmount
	in.Ingredients[1].Amount = models.MaxAmount
	in.Name = strings.Repeat("a", models.RecipeNameMaxLength)

	_, err := f.service.Create(context.Background(), f.author.ID, in)
	require.NoError(t, err)

	in = f.input(t)
	in.CookingTime = models.MaxCookingTime
	_, err = f.service.Create(context.Background(), f.author.ID, in)
	require.NoError(t, err)
}

func TestReplaceRecipe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.author.ID, f.input(t))
	require.NoError(t, err)

	butter := testutil.CreateTestIngredient(t, f.db, "butter", "g")
	in := RecipeInput{
		Ingredients: []IngredientAmount{{ID: butter.ID, Amount: 10}},
		Tags:        []uint{f.breakfast.ID},
		Name:        "Buttered toast",
		Text:        "Toast, then butter",
		CookingTime: 5,
	}
	updated, err := f.service.Replace(ctx, f.author.ID, created.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Buttered toast", updated.Name)
	assert.Equal(t, 5, updated.CookingTime)
	assert.Equal(t, created.Image, updated.Image, "omitted image keeps the current one")
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "butter", updated.Ingredients[0].Ingredient.Name)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "breakfast", updated.Tags[0].Slug)

	var rows int64
	f.db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&rows)
	assert.Equal(t, int64(1), rows, "old ingredient rows are replaced")
}

func TestReplaceSwapsImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.author.ID, f.input(t))
	require.NoError(t, err)
	oldPath := f.imagePath(t, created.Image)

	updated, err := f.service.Replace(ctx, f.author.ID, created.ID, f.input(t))
	require.NoError(t, err)
	assert.NotEqual(t, created.Image, updated.Image)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err), "old image should be removed")
	_, err = os.Stat(f.imagePath(t, updated.Image))
	assert.NoError(t, err)
}

func TestReplacePermissionsBeforeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.author.ID, f.input(t))
	require.NoError(t, err)

	_, err = f.service.Replace(ctx, f.author.ID, 9999, RecipeInput{})
	requireKind(t, err, apierr.ErrNotFound, "")

	_, err = f.service.Replace(ctx, f.other.ID, created.ID, RecipeInput{})
	requireKind(t, err, apierr.ErrPermissionDenied, "")

	_, err = f.service.Replace(ctx, f.author.ID, created.ID, RecipeInput{Name: "x"})
	requireKind(t, err, apierr.ErrValidation, "text")

	in := f.input(t)
	in.Tags = nil
	_, err = f.service.Replace(ctx, f.author.ID, created.ID, in)
	requireKind(t, err, apierr.ErrValidation, "tags")

	unchanged, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", unchanged.Name)
	assert.Len(t, unchanged.Tags, 2)
}

func TestDeleteRecipe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.author.ID, f.input(t))
	require.NoError(t, err)
	require.NoError(t, f.favorites.Add(ctx, f.other.ID, created.ID))
	require.NoError(t, f.cart.Add(ctx, f.other.ID, created.ID))

	err = f.service.Delete(ctx, f.other.ID, created.ID)
	requireKind(t, err, apierr.ErrPermissionDenied, "")

	require.NoError(t, f.service.Delete(ctx, f.author.ID, created.ID))

	_, err = f.service.Get(ctx, created.ID)
	requireKind(t, err, apierr.ErrNotFound, "")

	for _, model := range []interface{}{&models.RecipeIngredient{}, &models.Favorite{}, &models.ShoppingCartItem{}} {
		var count int64
		f.db.Model(model).Count(&count)
		assert.Zero(t, count, "%T rows should be gone", model)
	}
	var links int64
	f.db.Table("recipe_tags").Count(&links)
	assert.Zero(t, links)

	_, err = os.Stat(f.imagePath(t, created.Image))
	assert.True(t, os.IsNotExist(err))

	err = f.service.Delete(ctx, f.author.ID, created.ID)
	requireKind(t, err, apierr.ErrNotFound, "")
}

func TestListRecipes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dinner := testutil.CreateTestTag(t, f.db, "dinner")
	pancakes := testutil.CreateTestRecipe(t, f.db, f.author, "pancakes", []*models.Tag{f.breakfast})
	salad := testutil.CreateTestRecipe(t, f.db, f.author, "salad", []*models.Tag{f.lunch, dinner})
	stew := testutil.CreateTestRecipe(t, f.db, f.other, "stew", []*models.Tag{dinner})

	// distinct publication dates, oldest first
	base := time.Now().Add(-time.Hour)
	for i, r := range []*models.Recipe{pancakes, salad, stew} {
		require.NoError(t, f.db.Model(r).Update("pub_date", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	names := func(list []models.Recipe) []string {
		out := make([]string, len(list))
		for i, r := range list {
			out[i] = r.Name
		}
		return out
	}

	list, count, err := f.service.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, []string{"stew", "salad", "pancakes"}, names(list))

	list, _, err = f.service.List(ctx, ListFilter{AuthorID: f.author.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"salad", "pancakes"}, names(list))

	list, count, err = f.service.List(ctx, ListFilter{TagSlugs: []string{"breakfast", "dinner"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "tags match any")
	assert.Len(t, list, 3, "recipes matching several tags appear once")

	list, _, err = f.service.List(ctx, ListFilter{TagSlugs: []string{"lunch"}, AuthorID: f.other.ID})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.favorites.Add(ctx, f.other.ID, pancakes.ID))
	require.NoError(t, f.cart.Add(ctx, f.other.ID, salad.ID))

	list, _, err = f.service.List(ctx, ListFilter{ViewerID: f.other.ID, Favorited: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"pancakes"}, names(list))

	list, _, err = f.service.List(ctx, ListFilter{ViewerID: f.other.ID, InShoppingCart: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"salad"}, names(list))

	list, count, err = f.service.List(ctx, ListFilter{Favorited: true})
	require.NoError(t, err)
	assert.Zero(t, count, "anonymous relation filter is empty")
	assert.Empty(t, list)

	list, count, err = f.service.List(ctx, ListFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, []string{"salad"}, names(list))
}

// failIngredientInserts makes every insert into recipe_ingredients fail.
func failIngredientInserts(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_recipe_ingredients", func(tx *gorm.DB) {
		if tx.Statement.Table == "recipe_ingredients" {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)
}

func (f *fixture) storedImages(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(f.storage.Dir(), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestCreateRollsBackWhenIngredientsFail(t *testing.T) {
	f := newFixture(t)
	failIngredientInserts(t, f.db)

	_, err := f.service.Create(context.Background(), f.author.ID, f.input(t))
	require.Error(t, err)

	var count int64
	f.db.Model(&models.Recipe{}).Count(&count)
	assert.Zero(t, count)
	f.db.Table("recipe_tags").Count(&count)
	assert.Zero(t, count)
	assert.Zero(t, f.storedImages(t), "image saved before the failed insert is removed")
}

func TestReplaceRollsBackWhenIngredientsFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, f.author.ID, f.input(t))
	require.NoError(t, err)
	failIngredientInserts(t, f.db)

	butter := testutil.CreateTestIngredient(t, f.db, "butter", "g")
	in := f.input(t)
	in.Name = "Buttered toast"
	in.Tags = []uint{f.breakfast.ID}
	in.Ingredients = []IngredientAmount{{ID: butter.ID, Amount: 10}}
	_, err = f.service.Replace(ctx, f.author.ID, created.ID, in)
	require.Error(t, err)

	got, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", got.Name)
	assert.Equal(t, created.Image, got.Image)
	assert.Len(t, got.Tags, 2)
	require.Len(t, got.Ingredients, 2)
	assert.Equal(t, "sugar", got.Ingredients[0].Ingredient.Name)
	assert.Equal(t, "flour", got.Ingredients[1].Ingredient.Name)

	assert.Equal(t, 1, f.storedImages(t), "only the original image remains")
	_, err = os.Stat(f.imagePath(t, created.Image))
	assert.NoError(t, err)
}
