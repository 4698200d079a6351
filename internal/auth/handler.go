package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streamhub/internal/httpx"
	"streamhub/internal/user"
	"streamhub/pkg/models"
)

type Handler struct {
	Users  *user.Repo
	Tokens TokenService
}

func NewHandler(users *user.Repo, tokens TokenService) *Handler {
	return &Handler{Users: users, Tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/change-password", AuthMiddleware(h.Tokens, h.Users), h.changePassword)
	rg.POST("/logout", AuthMiddleware(h.Tokens, h.Users), h.logout)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, u *models.User) {
	token, exp, err := h.Tokens.Sign(u)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"user":      u,
		"token":     token,
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) register(c *gin.Context) {
	var req user.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := h.Users.Create(c.Request.Context(), req)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}

	// auto-login
	h.respondWithToken(c, http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, u)
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old and new password required"})
		return
	}

	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if _, err := h.Users.Authenticate(c.Request.Context(), claims.Email, req.OldPassword); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if _, err := h.Users.Update(c.Request.Context(), claims.UserID, user.Patch{Password: &req.NewPassword}); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if err := h.Users.BumpTokenVersion(c.Request.Context(), claims.UserID); err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
