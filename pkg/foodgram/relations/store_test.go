package relations

import (
	"context"
	"testing"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemoveFavorite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db, "alice")
	recipe := testutil.CreateTestRecipe(t, db, user, "soup", nil)
	store := Favorites(db)

	require.NoError(t, store.Add(ctx, user.ID, recipe.ID))

	err := store.Add(ctx, user.ID, recipe.ID)
	assert.ErrorIs(t, err, apierr.ErrConflict)

	exists, err := store.Exists(ctx, user.ID, recipe.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Remove(ctx, user.ID, recipe.ID))

	err = store.Remove(ctx, user.ID, recipe.ID)
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	var count int64
	db.Model(&models.Favorite{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestFavoriteAndCartAreIndependent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db, "alice")
	recipe := testutil.CreateTestRecipe(t, db, user, "soup", nil)

	require.NoError(t, Favorites(db).Add(ctx, user.ID, recipe.ID))
	require.NoError(t, ShoppingCart(db).Add(ctx, user.ID, recipe.ID))

	inCart, err := ShoppingCart(db).Exists(ctx, user.ID, recipe.ID)
	require.NoError(t, err)
	assert.True(t, inCart)

	require.NoError(t, ShoppingCart(db).Remove(ctx, user.ID, recipe.ID))
	fav, _ := Favorites(db).Exists(ctx, user.ID, recipe.ID)
	assert.True(t, fav)
}

func TestMarked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db, "alice")
	r1 := testutil.CreateTestRecipe(t, db, user, "one", nil)
	r2 := testutil.CreateTestRecipe(t, db, user, "two", nil)
	r3 := testutil.CreateTestRecipe(t, db, user, "three", nil)
	store := Favorites(db)

	require.NoError(t, store.Add(ctx, user.ID, r1.ID))
	require.NoError(t, store.Add(ctx, user.ID, r3.ID))

	marked, err := store.Marked(ctx, user.ID, []uint{r1.ID, r2.ID, r3.ID})
	require.NoError(t, err)
	assert.True(t, marked[r1.ID])
	assert.False(t, marked[r2.ID])
	assert.True(t, marked[r3.ID])

	anon, err := store.Marked(ctx, 0, []uint{r1.ID})
	require.NoError(t, err)
	assert.Empty(t, anon)
}

func TestTargetIDsSubquery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db, "alice")
	r1 := testutil.CreateTestRecipe(t, db, user, "one", nil)
	testutil.CreateTestRecipe(t, db, user, "two", nil)
	store := ShoppingCart(db)
	require.NoError(t, store.Add(ctx, user.ID, r1.ID))

	var recipes []models.Recipe
	require.NoError(t, db.Where("id IN (?)", store.TargetIDs(ctx, user.ID)).Find(&recipes).Error)
	require.Len(t, recipes, 1)
	assert.Equal(t, r1.ID, recipes[0].ID)
}

func TestSubscriptions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	alice := testutil.CreateTestUser(t, db, "alice")
	bob := testutil.CreateTestUser(t, db, "bob")
	store := Subscriptions(db)

	require.NoError(t, store.Add(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, store.Add(ctx, alice.ID, bob.ID), apierr.ErrConflict)

	count, err := store.CountByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.DeleteOwner(db, alice.ID))
	exists, _ := store.Exists(ctx, alice.ID, bob.ID)
	assert.False(t, exists)
}

func TestDeleteTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	alice := testutil.CreateTestUser(t, db, "alice")
	bob := testutil.CreateTestUser(t, db, "bob")
	recipe := testutil.CreateTestRecipe(t, db, alice, "soup", nil)
	store := Favorites(db)

	require.NoError(t, store.Add(ctx, alice.ID, recipe.ID))
	require.NoError(t, store.Add(ctx, bob.ID, recipe.ID))
	require.NoError(t, store.DeleteTarget(db, recipe.ID))

	var count int64
	db.Model(&models.Favorite{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
