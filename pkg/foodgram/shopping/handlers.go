package shopping

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
)

// Filename is the suggested download name
const Filename = "shopping_list.txt"

// Handler serves the shopping list download
type Handler struct {
	builder *Builder
}

// NewHandler creates a new shopping list handler
func NewHandler(builder *Builder) *Handler {
	return &Handler{builder: builder}
}

// Download returns the caller's aggregated shopping list
// @Summary Download shopping list
// @Tags recipes
// @Produce plain
// @Success 200 {string} string "Shopping list"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /recipes/download_shopping_cart [get]
func (h *Handler) Download(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}

	ctx := c.Request.Context()
	report, err := h.builder.BuildReport(ctx, userID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	metrics.ShoppingListDownloads.Inc()
	logging.Ctx(ctx).Debug().Uint("user_id", userID).Msg("Shopping list downloaded")
	c.Header("Content-Disposition", `attachment; filename="`+Filename+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report))
}

// RegisterRoutes registers the download route. The group must run auth.OptionalAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/recipes/download_shopping_cart", auth.AuthMiddleware(), h.Download)
}
