package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
)

// Handler handles token requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries the issued token
type TokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// Login exchanges email and password for a token
// @Summary Obtain a token
// @Description Authenticate with email and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string "Validation error or invalid credentials"
// @Router /auth/token/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).
		Where("LOWER(email) = ?", strings.ToLower(req.Email)).
		First(&user).Error; err != nil {
		apierr.Respond(c, apierr.Validation("non_field_errors", "Unable to log in with provided credentials"))
		return
	}

	if !CheckPassword(req.Password, user.PasswordHash) {
		apierr.Respond(c, apierr.Validation("non_field_errors", "Unable to log in with provided credentials"))
		return
	}

	token, err := GenerateToken(user.ID, user.Email, string(user.SystemRole))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	logging.Ctx(c.Request.Context()).Info().Uint("user_id", user.ID).Msg("Token issued")
	c.JSON(http.StatusOK, TokenResponse{AuthToken: token})
}

// Logout ends the session. Tokens are stateless, so the client discards it.
// @Summary Logout
// @Tags auth
// @Success 204
// @Security BearerAuth
// @Router /auth/token/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers token routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token/login", h.Login)
	rg.POST("/token/logout", AuthMiddleware(), h.Logout)
}
