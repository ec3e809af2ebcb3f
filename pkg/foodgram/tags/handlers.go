package tags

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

// ToResponse maps a tag model to its API shape
func ToResponse(t models.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

// ToResponses maps a slice of tags
func ToResponses(tags []models.Tag) []TagResponse {
	out := make([]TagResponse, len(tags))
	for i, t := range tags {
		out[i] = ToResponse(t)
	}
	return out
}

// List returns every tag, unpaginated
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} TagResponse
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	var tags []models.Tag
	if err := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&tags).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ToResponses(tags))
}

// Get returns a single tag
// @Summary Get tag
// @Tags tags
// @Produce json
// @Param id path int true "Tag ID"
// @Success 200 {object} TagResponse
// @Failure 404 {object} map[string]string "Tag not found"
// @Router /tags/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("Tag not found"))
		return
	}

	var tag models.Tag
	if err := h.db.WithContext(c.Request.Context()).First(&tag, id).Error; err != nil {
		apierr.Respond(c, apierr.OrNotFound(err, "Tag not found"))
		return
	}

	c.JSON(http.StatusOK, ToResponse(tag))
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.GET("/tags/:id", h.Get)
}
