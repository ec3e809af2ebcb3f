package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/tags"
	"github.com/mikepea/foodgram/pkg/foodgram/testutil"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
)

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	if err := validation.RegisterGin(); err != nil {
		t.Fatalf("Failed to register validation rules: %v", err)
	}
	storage, err := media.NewLocalStorage(t.TempDir(), "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	r := testutil.SetupTestRouter()
	group := r.Group("/api/admin", auth.AuthMiddleware(), auth.RequireAdmin())
	NewHandler(db, storage).RegisterRoutes(group)
	return r
}

func doJSON(r *gin.Engine, method, path, authHeader string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	user := testutil.CreateTestUser(t, db, "cook")

	w := doJSON(r, "GET", "/api/admin/stats", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	w = doJSON(r, "GET", "/api/admin/stats", testutil.GetAuthHeader(t, user), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
}

func TestListUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	admin := testutil.CreateTestAdmin(t, db, "root")
	testutil.CreateTestUser(t, db, "john")
	testutil.CreateTestUser(t, db, "jane")

	w := doJSON(r, "GET", "/api/admin/users", testutil.GetAuthHeader(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var users []UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("Expected 3 users, got %d", len(users))
	}

	w = doJSON(r, "GET", "/api/admin/users?q=JA", testutil.GetAuthHeader(t, admin), nil)
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 || users[0].Username != "jane" {
		t.Errorf("Expected only jane, got %+v", users)
	}

	w = doJSON(r, "GET", "/api/admin/users?role=admin", testutil.GetAuthHeader(t, admin), nil)
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 || users[0].ID != admin.ID {
		t.Errorf("Expected only the admin, got %+v", users)
	}
}

func TestGetUserCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	admin := testutil.CreateTestAdmin(t, db, "root")
	chef := testutil.CreateTestUser(t, db, "chef")
	tag := testutil.CreateTestTag(t, db, "lunch")
	testutil.CreateTestRecipe(t, db, chef, "soup", []*models.Tag{tag})
	relations.Subscriptions(db).Add(context.Background(), admin.ID, chef.ID)

	w := doJSON(r, "GET", fmt.Sprintf("/api/admin/users/%d", chef.ID), testutil.GetAuthHeader(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp UserResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RecipeCount != 1 || resp.SubscriberCount != 1 {
		t.Errorf("Expected 1 recipe and 1 subscriber, got %+v", resp)
	}

	w = doJSON(r, "GET", "/api/admin/users/9999", testutil.GetAuthHeader(t, admin), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestUpdateUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	admin := testutil.CreateTestAdmin(t, db, "root")
	user := testutil.CreateTestUser(t, db, "cook")
	header := testutil.GetAuthHeader(t, admin)

	w := doJSON(r, "PATCH", fmt.Sprintf("/api/admin/users/%d", user.ID), header,
		gin.H{"first_name": "Julia", "system_role": "admin"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp UserResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.FirstName != "Julia" || resp.SystemRole != "admin" {
		t.Errorf("Unexpected user %+v", resp)
	}

	w = doJSON(r, "PATCH", fmt.Sprintf("/api/admin/users/%d", user.ID), header, gin.H{"system_role": "chef"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid role, got %d", w.Code)
	}

	w = doJSON(r, "PATCH", fmt.Sprintf("/api/admin/users/%d", admin.ID), header, gin.H{"system_role": "user"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for self-demotion, got %d", w.Code)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	ctx := context.Background()
	admin := testutil.CreateTestAdmin(t, db, "root")
	chef := testutil.CreateTestUser(t, db, "chef")
	fan := testutil.CreateTestUser(t, db, "fan")
	tag := testutil.CreateTestTag(t, db, "lunch")
	flour := testutil.CreateTestIngredient(t, db, "flour", "g")
	soup := testutil.CreateTestRecipe(t, db, chef, "soup", []*models.Tag{tag}, testutil.Amount{Ingredient: flour, Amount: 5})
	fanRecipe := testutil.CreateTestRecipe(t, db, fan, "salad", []*models.Tag{tag})

	relations.Favorites(db).Add(ctx, fan.ID, soup.ID)
	relations.ShoppingCart(db).Add(ctx, chef.ID, fanRecipe.ID)
	relations.Subscriptions(db).Add(ctx, fan.ID, chef.ID)
	relations.Subscriptions(db).Add(ctx, chef.ID, fan.ID)

	header := testutil.GetAuthHeader(t, admin)
	w := doJSON(r, "DELETE", fmt.Sprintf("/api/admin/users/%d", admin.ID), header, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for self-deletion, got %d", w.Code)
	}

	w = doJSON(r, "DELETE", fmt.Sprintf("/api/admin/users/%d", chef.ID), header, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&models.User{}).Where("id = ?", chef.ID).Count(&count)
	if count != 0 {
		t.Error("Expected user to be deleted")
	}
	db.Model(&models.Recipe{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected only the fan's recipe to remain, got %d", count)
	}
	for _, model := range []interface{}{&models.Favorite{}, &models.ShoppingCartItem{}, &models.Subscription{}, &models.RecipeIngredient{}} {
		db.Model(model).Count(&count)
		if count != 0 {
			t.Errorf("Expected no %T rows, got %d", model, count)
		}
	}
}

func TestGetStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	admin := testutil.CreateTestAdmin(t, db, "root")
	chef := testutil.CreateTestUser(t, db, "chef")
	tag := testutil.CreateTestTag(t, db, "lunch")
	testutil.CreateTestIngredient(t, db, "salt", "pinch")
	soup := testutil.CreateTestRecipe(t, db, chef, "soup", []*models.Tag{tag})
	relations.Favorites(db).Add(context.Background(), admin.ID, soup.ID)

	w := doJSON(r, "GET", "/api/admin/stats", testutil.GetAuthHeader(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var stats StatsResponse
	json.Unmarshal(w.Body.Bytes(), &stats)
	want := StatsResponse{
		TotalUsers: 2, AdminUsers: 1, TotalRecipes: 1, TotalTags: 1,
		TotalIngredients: 1, TotalFavorites: 1,
	}
	if stats != want {
		t.Errorf("Expected %+v, got %+v", want, stats)
	}
}

func TestTagAdministration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := setupTestRouter(t, db)
	admin := testutil.CreateTestAdmin(t, db, "root")
	header := testutil.GetAuthHeader(t, admin)

	w := doJSON(r, "POST", "/api/admin/tags", header, CreateTagRequest{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var tag tags.TagResponse
	json.Unmarshal(w.Body.Bytes(), &tag)
	if tag.ID == 0 || tag.Slug != "breakfast" {
		t.Errorf("Unexpected tag %+v", tag)
	}

	w = doJSON(r, "POST", "/api/admin/tags", header, CreateTagRequest{Name: "Other", Color: "#000000", Slug: "breakfast"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for duplicate slug, got %d", w.Code)
	}
	w = doJSON(r, "POST", "/api/admin/tags", header, CreateTagRequest{Name: "Bad", Color: "orange", Slug: "bad"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid color, got %d", w.Code)
	}

	path := fmt.Sprintf("/api/admin/tags/%d", tag.ID)
	w = doJSON(r, "PATCH", path, header, gin.H{"color": "#49B64E"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &tag)
	if tag.Color != "#49B64E" || tag.Name != "Breakfast" {
		t.Errorf("Unexpected tag after update %+v", tag)
	}

	chef := testutil.CreateTestUser(t, db, "chef")
	var model models.Tag
	db.First(&model, tag.ID)
	recipe := testutil.CreateTestRecipe(t, db, chef, "eggs", []*models.Tag{&model})

	w = doJSON(r, "DELETE", path, header, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for tag in use, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Tag is used by 1 recipes") {
		t.Errorf("Expected usage count in error, got %s", w.Body.String())
	}

	db.Model(recipe).Association("Tags").Clear()
	w = doJSON(r, "DELETE", path, header, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	w = doJSON(r, "DELETE", path, header, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
