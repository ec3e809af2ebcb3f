package ingredients

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

// Handler serves the read-only ingredient catalog
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new ingredients handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// IngredientResponse represents an ingredient in API responses
type IngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

func ingredientToResponse(i models.Ingredient) IngredientResponse {
	return IngredientResponse{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns the catalog, optionally filtered by a case-insensitive name substring
// @Summary List ingredients
// @Tags ingredients
// @Produce json
// @Param name query string false "Name substring"
// @Success 200 {array} IngredientResponse
// @Router /ingredients [get]
func (h *Handler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("name ASC, measurement_unit ASC")

	name := strings.TrimSpace(c.Query("name"))
	if name != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(name)) + "%"
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern)
	}

	var items []models.Ingredient
	if err := query.Find(&items).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	items = Rank(name, items)

	resp := make([]IngredientResponse, len(items))
	for i, it := range items {
		resp[i] = ingredientToResponse(it)
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns a single ingredient
// @Summary Get ingredient
// @Tags ingredients
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} IngredientResponse
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Router /ingredients/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("Ingredient not found"))
		return
	}

	var item models.Ingredient
	if err := h.db.WithContext(c.Request.Context()).First(&item, id).Error; err != nil {
		apierr.Respond(c, apierr.OrNotFound(err, "Ingredient not found"))
		return
	}
	c.JSON(http.StatusOK, ingredientToResponse(item))
}

// RegisterRoutes registers ingredient routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ingredients", h.List)
	rg.GET("/ingredients/:id", h.Get)
}
