package shopping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type cartFixture struct {
	db    *gorm.DB
	buyer *models.User
	r1    *models.Recipe
	r2    *models.Recipe
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	chef := testutil.CreateTestUser(t, db, "chef")
	buyer := testutil.CreateTestUser(t, db, "buyer")
	tag := testutil.CreateTestTag(t, db, "baking")
	flour := testutil.CreateTestIngredient(t, db, "flour", "g")
	sugar := testutil.CreateTestIngredient(t, db, "sugar", "g")

	r1 := testutil.CreateTestRecipe(t, db, chef, "bread", []*models.Tag{tag},
		testutil.Amount{Ingredient: flour, Amount: 200})
	r2 := testutil.CreateTestRecipe(t, db, chef, "cake", []*models.Tag{tag},
		testutil.Amount{Ingredient: sugar, Amount: 50},
		testutil.Amount{Ingredient: flour, Amount: 300})
	return &cartFixture{db: db, buyer: buyer, r1: r1, r2: r2}
}

func TestBuildReportSumsAcrossRecipes(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	cart := relations.ShoppingCart(f.db)
	require.NoError(t, cart.Add(ctx, f.buyer.ID, f.r1.ID))
	require.NoError(t, cart.Add(ctx, f.buyer.ID, f.r2.ID))

	report, err := NewBuilder(f.db).BuildReport(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping list:\n\nflour (g) - 500\nsugar (g) - 50\n", report)
}

func TestBuildReportEmptyCart(t *testing.T) {
	f := newCartFixture(t)

	report, err := NewBuilder(f.db).BuildReport(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping list:\n\n", report)
}

func TestBuildReportOnlyOwnCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	other := testutil.CreateTestUser(t, f.db, "other")
	require.NoError(t, relations.ShoppingCart(f.db).Add(ctx, other.ID, f.r2.ID))

	lines, err := NewBuilder(f.db).Lines(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestLinesKeepUnitsApart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	kg := testutil.CreateTestIngredient(t, f.db, "flour", "kg")
	tag := testutil.CreateTestTag(t, f.db, "bulk")
	bulk := testutil.CreateTestRecipe(t, f.db, f.buyer, "bulk", []*models.Tag{tag},
		testutil.Amount{Ingredient: kg, Amount: 2})
	cart := relations.ShoppingCart(f.db)
	require.NoError(t, cart.Add(ctx, f.buyer.ID, bulk.ID))
	require.NoError(t, cart.Add(ctx, f.buyer.ID, f.r1.ID))

	lines, err := NewBuilder(f.db).Lines(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Name: "flour", MeasurementUnit: "g", Total: 200},
		{Name: "flour", MeasurementUnit: "kg", Total: 2},
	}, lines)
}

func TestRender(t *testing.T) {
	got := Render([]Line{{Name: "salt", MeasurementUnit: "pinch", Total: 1}})
	assert.Equal(t, "Shopping list:\n\nsalt (pinch) - 1\n", got)
}

func TestDownloadHandler(t *testing.T) {
	f := newCartFixture(t)
	require.NoError(t, relations.ShoppingCart(f.db).Add(context.Background(), f.buyer.ID, f.r1.ID))

	r := testutil.SetupTestRouter()
	api := r.Group("/api", auth.OptionalAuth())
	NewHandler(NewBuilder(f.db)).RegisterRoutes(api)

	before := promtestutil.ToFloat64(metrics.ShoppingListDownloads)

	req := httptest.NewRequest("GET", "/api/recipes/download_shopping_cart", nil)
	req.Header.Set("Authorization", testutil.GetAuthHeader(t, f.buyer))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="shopping_list.txt"` {
		t.Errorf("Unexpected content disposition %q", cd)
	}
	if w.Body.String() != "Shopping list:\n\nflour (g) - 200\n" {
		t.Errorf("Unexpected report %q", w.Body.String())
	}
	if after := promtestutil.ToFloat64(metrics.ShoppingListDownloads); after != before+1 {
		t.Errorf("Expected download counter to grow by 1, got %v -> %v", before, after)
	}

	req = httptest.NewRequest("GET", "/api/recipes/download_shopping_cart", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

