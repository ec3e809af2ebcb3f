// Package admin serves the site administration API: catalog maintenance,
// user management and counters. Every route requires the admin role.
package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/recipes"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db        *gorm.DB
	storage   media.Storage
	favorites *relations.Store[models.Favorite]
	cart      *relations.Store[models.ShoppingCartItem]
	subs      *relations.Store[models.Subscription]
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, storage media.Storage) *Handler {
	return &Handler{
		db:        db,
		storage:   storage,
		favorites: relations.Favorites(db),
		cart:      relations.ShoppingCart(db),
		subs:      relations.Subscriptions(db),
	}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID              uint   `json:"id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	SystemRole      string `json:"system_role"`
	CreatedAt       string `json:"created_at"`
	RecipeCount     int64  `json:"recipe_count"`
	SubscriberCount int64  `json:"subscriber_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	FirstName  *string `json:"first_name" binding:"omitempty,max=150"`
	LastName   *string `json:"last_name" binding:"omitempty,max=150"`
	SystemRole *string `json:"system_role"`
}

// StatsResponse represents site-wide counters
type StatsResponse struct {
	TotalUsers         int64 `json:"total_users"`
	AdminUsers         int64 `json:"admin_users"`
	TotalRecipes       int64 `json:"total_recipes"`
	TotalTags          int64 `json:"total_tags"`
	TotalIngredients   int64 `json:"total_ingredients"`
	TotalFavorites     int64 `json:"total_favorites"`
	TotalCartItems     int64 `json:"total_cart_items"`
	TotalSubscriptions int64 `json:"total_subscriptions"`
}

func (h *Handler) toResponse(c *gin.Context, user models.User) UserResponse {
	db := h.db.WithContext(c.Request.Context())
	recipeCount := db.Model(&user).Association("Recipes").Count()
	var subscriberCount int64
	db.Model(&models.Subscription{}).Where("author_id = ?", user.ID).Count(&subscriberCount)

	return UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Username:        user.Username,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		SystemRole:      string(user.SystemRole),
		CreatedAt:       user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		RecipeCount:     recipeCount,
		SubscriberCount: subscriberCount,
	}
}

// ListUsers returns all users
// @Summary List users (admin)
// @Tags admin
// @Produce json
// @Param q query string false "Search by email or username"
// @Param role query string false "Filter by system role"
// @Success 200 {array} UserResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC, id DESC")

	if search := strings.ToLower(c.Query("q")); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ?", pattern, pattern)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.toResponse(c, user)
	}
	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID
// @Summary Get user (admin)
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(c, *user))
}

// UpdateUser updates a user's names or role
// @Summary Update user (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string "Invalid role or self-demotion"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [patch]
func (h *Handler) UpdateUser(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	if user.ID == currentUserID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		apierr.Respond(c, apierr.Validation("system_role", "Cannot demote yourself"))
		return
	}

	updates := make(map[string]interface{})
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.SystemRole != nil {
		role := models.SystemRole(*req.SystemRole)
		if role != models.SystemRoleAdmin && role != models.SystemRoleUser {
			apierr.Respond(c, apierr.Validation("system_role", "Invalid system role"))
			return
		}
		updates["system_role"] = role
	}

	ctx := c.Request.Context()
	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			apierr.Respond(c, err)
			return
		}
		logging.Ctx(ctx).Info().Uint("user_id", user.ID).Uint("admin_id", currentUserID).Msg("User updated by admin")
	}

	h.db.WithContext(ctx).First(user, user.ID)
	c.JSON(http.StatusOK, h.toResponse(c, *user))
}

// DeleteUser removes a user with their recipes and relations
// @Summary Delete user (admin)
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Cannot delete yourself"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	if user.ID == currentUserID {
		apierr.Respond(c, apierr.Validation("id", "Cannot delete yourself"))
		return
	}

	ctx := c.Request.Context()
	var imageKeys []string
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var authored []models.Recipe
		if err := tx.Where("author_id = ?", user.ID).Find(&authored).Error; err != nil {
			return err
		}
		for i := range authored {
			if err := recipes.DeleteTx(tx, &authored[i], h.favorites, h.cart); err != nil {
				return err
			}
			if authored[i].ImageKey != "" {
				imageKeys = append(imageKeys, authored[i].ImageKey)
			}
		}
		if err := h.favorites.DeleteOwner(tx, user.ID); err != nil {
			return err
		}
		if err := h.cart.DeleteOwner(tx, user.ID); err != nil {
			return err
		}
		if err := h.subs.DeleteOwner(tx, user.ID); err != nil {
			return err
		}
		if err := h.subs.DeleteTarget(tx, user.ID); err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	for _, key := range imageKeys {
		if err := h.storage.Delete(ctx, key); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to delete recipe image")
		}
	}
	logging.Ctx(ctx).Info().Uint("user_id", user.ID).Uint("admin_id", currentUserID).
		Int("recipes", len(imageKeys)).Msg("User deleted by admin")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *Handler) loadUser(c *gin.Context) (*models.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("User not found"))
		return nil, false
	}
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		apierr.Respond(c, apierr.OrNotFound(err, "User not found"))
		return nil, false
	}
	return &user, true
}

// GetStats returns site-wide counters
// @Summary Site statistics (admin)
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)
	db.Model(&models.Recipe{}).Count(&stats.TotalRecipes)
	db.Model(&models.Tag{}).Count(&stats.TotalTags)
	db.Model(&models.Ingredient{}).Count(&stats.TotalIngredients)
	db.Model(&models.Favorite{}).Count(&stats.TotalFavorites)
	db.Model(&models.ShoppingCartItem{}).Count(&stats.TotalCartItems)
	db.Model(&models.Subscription{}).Count(&stats.TotalSubscriptions)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes. The group must run
// auth.AuthMiddleware and auth.RequireAdmin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PATCH("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
	rg.POST("/tags", h.CreateTag)
	rg.PATCH("/tags/:id", h.UpdateTag)
	rg.DELETE("/tags/:id", h.DeleteTag)
}
