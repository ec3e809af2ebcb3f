package subscriptions

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/recipes"
	"github.com/mikepea/foodgram/pkg/foodgram/users"
)

// Handler handles subscription requests
type Handler struct {
	service *Service
	users   *users.Presenter
}

// NewHandler creates a new subscriptions handler
func NewHandler(service *Service, userPresenter *users.Presenter) *Handler {
	return &Handler{service: service, users: userPresenter}
}

// AuthorResponse is a followed author with a preview of their recipes
type AuthorResponse struct {
	users.UserResponse
	Recipes      []recipes.RecipeShortResponse `json:"recipes"`
	RecipesCount int64                         `json:"recipes_count"`
}

// List returns the authors the caller follows
// @Summary List subscriptions
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Maximum recipes shown per author"
// @Success 200 {object} pagination.Page[AuthorResponse]
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /users/subscriptions [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}
	ctx := c.Request.Context()
	params := pagination.FromContext(c)
	authors, count, err := h.service.Authors(ctx, userID, params.Offset(), params.Limit)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	resp, err := h.describe(c, authors, recipesLimit(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.NewPage(c, params, count, resp))
}

// Subscribe follows an author
// @Summary Subscribe
// @Tags users
// @Produce json
// @Param id path int true "Author ID"
// @Param recipes_limit query int false "Maximum recipes shown"
// @Success 201 {object} AuthorResponse
// @Failure 400 {object} map[string]string "Already subscribed or self-subscription"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /users/{id}/subscribe [post]
func (h *Handler) Subscribe(c *gin.Context) {
	userID, authorID, ok := h.target(c)
	if !ok {
		return
	}
	author, err := h.service.Subscribe(c.Request.Context(), userID, authorID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	resp, err := h.describe(c, []models.User{*author}, recipesLimit(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp[0])
}

// Unsubscribe stops following an author
// @Summary Unsubscribe
// @Tags users
// @Param id path int true "Author ID"
// @Success 204
// @Failure 404 {object} map[string]string "User not found or not subscribed"
// @Security BearerAuth
// @Router /users/{id}/subscribe [delete]
func (h *Handler) Unsubscribe(c *gin.Context) {
	userID, authorID, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.service.Unsubscribe(c.Request.Context(), userID, authorID); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) target(c *gin.Context) (uint, uint, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return 0, 0, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("User not found"))
		return 0, 0, false
	}
	return userID, uint(id), true
}

func (h *Handler) describe(c *gin.Context, authors []models.User, limit int) ([]AuthorResponse, error) {
	ctx := c.Request.Context()
	rendered, err := h.users.Many(ctx, auth.ViewerID(c), authors)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}
	byAuthor, counts, err := h.service.RecipesByAuthor(ctx, ids, limit)
	if err != nil {
		return nil, err
	}

	out := make([]AuthorResponse, len(authors))
	for i, a := range authors {
		short := make([]recipes.RecipeShortResponse, 0, len(byAuthor[a.ID]))
		for _, r := range byAuthor[a.ID] {
			short = append(short, recipes.Short(r))
		}
		out[i] = AuthorResponse{
			UserResponse: rendered[i],
			Recipes:      short,
			RecipesCount: counts[a.ID],
		}
	}
	return out, nil
}

// recipesLimit returns -1 (no limit) unless recipes_limit is a positive integer.
func recipesLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("recipes_limit"))
	if err != nil || n <= 0 {
		return -1
	}
	return n
}

// RegisterRoutes registers subscription routes. The group must run auth.OptionalAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/subscriptions", auth.AuthMiddleware(), h.List)
	rg.POST("/users/:id/subscribe", auth.AuthMiddleware(), h.Subscribe)
	rg.DELETE("/users/:id/subscribe", auth.AuthMiddleware(), h.Unsubscribe)
}
