package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/tags"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
)

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Color string `json:"color" binding:"required,tagcolor"`
	Slug  string `json:"slug" binding:"required,max=200,slug"`
}

// UpdateTagRequest represents the request to change a tag
type UpdateTagRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=200"`
	Color *string `json:"color" binding:"omitempty,tagcolor"`
	Slug  *string `json:"slug" binding:"omitempty,max=200,slug"`
}

// CreateTag adds a tag to the catalog
// @Summary Create tag (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateTagRequest true "Tag"
// @Success 201 {object} tags.TagResponse
// @Failure 400 {object} map[string]string "Validation error or duplicate"
// @Security BearerAuth
// @Router /admin/tags [post]
func (h *Handler) CreateTag(c *gin.Context) {
	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	ctx := c.Request.Context()
	tag := models.Tag{Name: req.Name, Color: req.Color, Slug: req.Slug}
	if err := h.db.WithContext(ctx).Create(&tag).Error; err != nil {
		apierr.Respond(c, tagWriteError(err))
		return
	}

	logging.Ctx(ctx).Info().Uint("tag_id", tag.ID).Str("slug", tag.Slug).Msg("Tag created")
	c.JSON(http.StatusCreated, tags.ToResponse(tag))
}

// UpdateTag changes a tag
// @Summary Update tag (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Tag ID"
// @Param request body UpdateTagRequest true "Fields to change"
// @Success 200 {object} tags.TagResponse
// @Failure 400 {object} map[string]string "Validation error or duplicate"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /admin/tags/{id} [patch]
func (h *Handler) UpdateTag(c *gin.Context) {
	tag, ok := h.loadTag(c)
	if !ok {
		return
	}

	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.Slug != nil {
		updates["slug"] = *req.Slug
	}

	ctx := c.Request.Context()
	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(tag).Updates(updates).Error; err != nil {
			apierr.Respond(c, tagWriteError(err))
			return
		}
	}

	h.db.WithContext(ctx).First(tag, tag.ID)
	c.JSON(http.StatusOK, tags.ToResponse(*tag))
}

// DeleteTag removes a tag that no recipe uses
// @Summary Delete tag (admin)
// @Tags admin
// @Param id path int true "Tag ID"
// @Success 204
// @Failure 400 {object} map[string]string "Tag is in use"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /admin/tags/{id} [delete]
func (h *Handler) DeleteTag(c *gin.Context) {
	tag, ok := h.loadTag(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	recipes := h.db.WithContext(ctx).Model(tag).Association("Recipes")
	uses := recipes.Count()
	if recipes.Error != nil {
		apierr.Respond(c, recipes.Error)
		return
	}
	if uses > 0 {
		apierr.Respond(c, apierr.Conflict("Tag is used by "+strconv.FormatInt(uses, 10)+" recipes"))
		return
	}

	if err := h.db.WithContext(ctx).Delete(tag).Error; err != nil {
		apierr.Respond(c, tagWriteError(err))
		return
	}
	logging.Ctx(ctx).Info().Uint("tag_id", tag.ID).Msg("Tag deleted")
	c.Status(http.StatusNoContent)
}

func (h *Handler) loadTag(c *gin.Context) (*models.Tag, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("Tag not found"))
		return nil, false
	}
	var tag models.Tag
	if err := h.db.WithContext(c.Request.Context()).First(&tag, id).Error; err != nil {
		apierr.Respond(c, apierr.OrNotFound(err, "Tag not found"))
		return nil, false
	}
	return &tag, true
}

func tagWriteError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apierr.Conflict("A tag with that name, color or slug already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apierr.Conflict("Tag is in use")
	}
	return err
}
