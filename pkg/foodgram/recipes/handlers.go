package recipes

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
)

// Handler handles recipe requests
type Handler struct {
	service   *Service
	presenter *Presenter
	favorites *relations.Store[models.Favorite]
	cart      *relations.Store[models.ShoppingCartItem]
}

// NewHandler creates a new recipes handler
func NewHandler(service *Service, presenter *Presenter,
	favorites *relations.Store[models.Favorite], cart *relations.Store[models.ShoppingCartItem]) *Handler {
	return &Handler{service: service, presenter: presenter, favorites: favorites, cart: cart}
}

// List returns recipes, newest first
// @Summary List recipes
// @Tags recipes
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param author query int false "Author ID"
// @Param tags query []string false "Tag slugs (any match)" collectionFormat(multi)
// @Param is_favorited query int false "Only the caller's favorites (0 or 1)"
// @Param is_in_shopping_cart query int false "Only the caller's cart (0 or 1)"
// @Success 200 {object} pagination.Page[RecipeResponse]
// @Failure 400 {object} map[string]string "Malformed filter"
// @Router /recipes [get]
func (h *Handler) List(c *gin.Context) {
	params := pagination.FromContext(c)
	filter := ListFilter{
		ViewerID: auth.ViewerID(c),
		TagSlugs: c.QueryArray("tags"),
		Offset:   params.Offset(),
		Limit:    params.Limit,
	}

	if raw := c.Query("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			apierr.Respond(c, apierr.Validation("author", "must be a user id"))
			return
		}
		filter.AuthorID = uint(id)
	}
	var err error
	if filter.Favorited, err = boolParam(c, "is_favorited"); err != nil {
		apierr.Respond(c, err)
		return
	}
	if filter.InShoppingCart, err = boolParam(c, "is_in_shopping_cart"); err != nil {
		apierr.Respond(c, err)
		return
	}

	ctx := c.Request.Context()
	list, count, err := h.service.List(ctx, filter)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	resp, err := h.presenter.Many(ctx, filter.ViewerID, list)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.NewPage(c, params, count, resp))
}

func boolParam(c *gin.Context, name string) (bool, error) {
	switch c.Query(name) {
	case "", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	default:
		return false, apierr.Validation(name, "must be 0 or 1")
	}
}

// Get returns one recipe
// @Summary Get recipe
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} RecipeResponse
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipes/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}
	recipe, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.respond(c, http.StatusOK, recipe)
}

// Create publishes a recipe authored by the caller
// @Summary Create recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param request body RecipeInput true "Recipe"
// @Success 201 {object} RecipeResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /recipes [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}
	var in RecipeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	recipe, err := h.service.Create(c.Request.Context(), userID, in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.respond(c, http.StatusCreated, recipe)
}

// Update replaces a recipe owned by the caller
// @Summary Update recipe
// @Description Replaces every field, tag and ingredient. The image may be omitted to keep the current one.
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body RecipeInput true "Recipe"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}
	id, ok := recipeID(c)
	if !ok {
		return
	}
	var in RecipeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	recipe, err := h.service.Replace(c.Request.Context(), userID, id, in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.respond(c, http.StatusOK, recipe)
}

// Delete removes a recipe owned by the caller
// @Summary Delete recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}
	id, ok := recipeID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddFavorite marks a recipe as a favorite of the caller
// @Summary Add to favorites
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} RecipeShortResponse
// @Failure 400 {object} map[string]string "Already in favorites"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/favorite [post]
func (h *Handler) AddFavorite(c *gin.Context) {
	h.mark(c, h.favorites.Add)
}

// RemoveFavorite unmarks a favorite
// @Summary Remove from favorites
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} map[string]string "Recipe not found or not in favorites"
// @Security BearerAuth
// @Router /recipes/{id}/favorite [delete]
func (h *Handler) RemoveFavorite(c *gin.Context) {
	h.unmark(c, h.favorites.Remove)
}

// AddToCart puts a recipe into the caller's shopping cart
// @Summary Add to shopping cart
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} RecipeShortResponse
// @Failure 400 {object} map[string]string "Already in the cart"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/shopping_cart [post]
func (h *Handler) AddToCart(c *gin.Context) {
	h.mark(c, h.cart.Add)
}

// RemoveFromCart takes a recipe out of the caller's shopping cart
// @Summary Remove from shopping cart
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} map[string]string "Recipe not found or not in the cart"
// @Security BearerAuth
// @Router /recipes/{id}/shopping_cart [delete]
func (h *Handler) RemoveFromCart(c *gin.Context) {
	h.unmark(c, h.cart.Remove)
}

type relationOp func(ctx context.Context, ownerID, targetID uint) error

func (h *Handler) mark(c *gin.Context, add relationOp) {
	userID, recipe, ok := h.relationTarget(c)
	if !ok {
		return
	}
	if err := add(c.Request.Context(), userID, recipe.ID); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, Short(*recipe))
}

func (h *Handler) unmark(c *gin.Context, remove relationOp) {
	userID, recipe, ok := h.relationTarget(c)
	if !ok {
		return
	}
	if err := remove(c.Request.Context(), userID, recipe.ID); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) relationTarget(c *gin.Context) (uint, *models.Recipe, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return 0, nil, false
	}
	id, ok := recipeID(c)
	if !ok {
		return 0, nil, false
	}
	recipe, err := h.service.Exists(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return 0, nil, false
	}
	return userID, recipe, true
}

func (h *Handler) respond(c *gin.Context, status int, recipe *models.Recipe) {
	resp, err := h.presenter.One(c.Request.Context(), auth.ViewerID(c), *recipe)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(status, resp)
}

func recipeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("Recipe not found"))
		return 0, false
	}
	return uint(id), true
}

// RegisterRoutes registers recipe routes. The group must run auth.OptionalAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	recipes := rg.Group("/recipes", auth.ReadOnlyOrAuthenticated())
	{
		recipes.GET("", h.List)
		recipes.POST("", h.Create)
		recipes.GET("/:id", h.Get)
		recipes.PATCH("/:id", h.Update)
		recipes.DELETE("/:id", h.Delete)
		recipes.POST("/:id/favorite", h.AddFavorite)
		recipes.DELETE("/:id/favorite", h.RemoveFavorite)
		recipes.POST("/:id/shopping_cart", h.AddToCart)
		recipes.DELETE("/:id/shopping_cart", h.RemoveFromCart)
	}
}
