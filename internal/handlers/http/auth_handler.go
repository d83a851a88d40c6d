package http

import (
	"context"
	"net/http"
	"strings"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves registration, sessions and the caller's own account.
type AuthHandler struct {
	actors ports.ActorService
}

func NewAuthHandler(actors ports.ActorService) *AuthHandler {
	return &AuthHandler{
		actors: actors,
	}
}

func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	users := api.Group("/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)
		users.POST("/refresh-token", h.RefreshToken)

		secured := users.Group("", requireAuth)
		secured.POST("/logout", h.Logout)
		secured.POST("/change-password", h.ChangePassword)
		secured.GET("/current-user", h.CurrentUser)
		secured.PATCH("/update-account", h.UpdateAccount)
		secured.PATCH("/avatar", h.UpdateAvatar)
		secured.PATCH("/cover-image", h.UpdateCoverImage)
	}
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=72"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type UpdateAccountRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

// Register takes a multipart form: username, email, full_name, password,
// avatar (file, required) and cover_image (file, optional).
func (h *AuthHandler) Register(c *gin.Context) {
	const op = "register"

	avatar, err := saveUpload(c, op, "avatar", true)
	if err != nil {
		fail(c, err)
		return
	}
	defer avatar.Remove()

	cover, err := saveUpload(c, op, "cover_image", false)
	if err != nil {
		fail(c, err)
		return
	}
	defer cover.Remove()

	account, err := h.actors.Register(c.Request.Context(), ports.RegisterInput{
		Username:       strings.TrimSpace(c.PostForm("username")),
		Email:          strings.TrimSpace(c.PostForm("email")),
		FullName:       c.PostForm("full_name"),
		Password:       c.PostForm("password"),
		AvatarPath:     avatar.Path,
		CoverImagePath: uploadPath(cover),
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": newAccountView(account)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("login", "invalid request format"))
		return
	}

	account, tokens, err := h.actors.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          newAccountView(account),
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("refresh", "invalid request format"))
		return
	}

	tokens, err := h.actors.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.actors.Logout(c.Request.Context(), actor(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("change_password", "old_password and new_password are required"))
		return
	}

	if err := h.actors.ChangePassword(c.Request.Context(), actor(c), req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) CurrentUser(c *gin.Context) {
	account, err := h.actors.GetCurrent(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newAccountView(account)})
}

func (h *AuthHandler) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("update_account", "invalid request format"))
		return
	}

	account, err := h.actors.UpdateAccount(c.Request.Context(), actor(c), ports.UpdateAccountInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newAccountView(account)})
}

func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	h.replaceImage(c, "update_avatar", "avatar", h.actors.UpdateAvatar)
}

func (h *AuthHandler) UpdateCoverImage(c *gin.Context) {
	h.replaceImage(c, "update_cover_image", "cover_image", h.actors.UpdateCoverImage)
}

func (h *AuthHandler) replaceImage(
	c *gin.Context,
	op, field string,
	update func(ctx context.Context, actor domain.ActorID, localPath string) (*domain.Actor, error),
) {
	upload, err := saveUpload(c, op, field, true)
	if err != nil {
		fail(c, err)
		return
	}
	defer upload.Remove()

	account, err := update(c.Request.Context(), actor(c), upload.Path)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newAccountView(account)})
}
