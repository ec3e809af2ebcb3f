package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
)

// Handler handles user account requests
type Handler struct {
	db        *gorm.DB
	presenter *Presenter
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB, presenter *Presenter) *Handler {
	return &Handler{db: db, presenter: presenter}
}

// RegisterRequest represents the sign-up request body
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150,username"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
}

// CreatedUserResponse is returned after sign-up
type CreatedUserResponse struct {
	Email     string `json:"email"`
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SetPasswordRequest represents the password change body
type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// Register creates an account
// @Summary Register
// @Tags users
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account details"
// @Success 201 {object} CreatedUserResponse
// @Failure 400 {object} map[string]string "Validation error or duplicate email/username"
// @Router /users [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}
	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	if count > 0 {
		apierr.Respond(c, apierr.Conflict("A user with that email already exists"))
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	if count > 0 {
		apierr.Respond(c, apierr.Conflict("A user with that username already exists"))
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	user := models.User{
		Email:        email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleUser,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = apierr.Conflict("A user with that email or username already exists")
		}
		apierr.Respond(c, err)
		return
	}

	logging.Ctx(ctx).Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	c.JSON(http.StatusCreated, CreatedUserResponse{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// List returns users, paginated
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} pagination.Page[UserResponse]
// @Router /users [get]
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	params := pagination.FromContext(c)

	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	var users []models.User
	if err := params.Apply(h.db.WithContext(ctx).Order("id ASC")).Find(&users).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	resp, err := h.presenter.Many(ctx, auth.ViewerID(c), users)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.NewPage(c, params, count, resp))
}

// Get returns a user profile
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("User not found"))
		return
	}
	h.respondUser(c, uint(id))
}

// Me returns the caller's own profile
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /users/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}
	h.respondUser(c, userID)
}

func (h *Handler) respondUser(c *gin.Context, id uint) {
	ctx := c.Request.Context()
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, id).Error; err != nil {
		apierr.Respond(c, apierr.OrNotFound(err, "User not found"))
		return
	}
	resp, err := h.presenter.One(ctx, auth.ViewerID(c), user)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SetPassword changes the caller's password
// @Summary Change password
// @Tags users
// @Accept json
// @Param request body SetPasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} map[string]string "Wrong current password or unchanged password"
// @Security BearerAuth
// @Router /users/set_password [post]
func (h *Handler) SetPassword(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		apierr.Respond(c, apierr.Unauthenticated("Authentication required"))
		return
	}

	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Respond(c, validation.Translate(err))
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		apierr.Respond(c, apierr.OrNotFound(err, "User not found"))
		return
	}

	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		apierr.Respond(c, apierr.Validation("current_password", "Invalid password"))
		return
	}
	if req.NewPassword == req.CurrentPassword {
		apierr.Respond(c, apierr.Validation("new_password", "New password must differ from the current one"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	logging.Ctx(ctx).Info().Uint("user_id", user.ID).Msg("Password changed")
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers user routes. The group must run auth.OptionalAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.List)
	rg.POST("/users", h.Register)
	rg.GET("/users/me", auth.AuthMiddleware(), h.Me)
	rg.POST("/users/set_password", auth.AuthMiddleware(), h.SetPassword)
	rg.GET("/users/:id", h.Get)
}
