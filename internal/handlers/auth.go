package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/auth"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/dto"
	"github.com/LucasSckenal/nexo-sub000/internal/service"
)

// AuthHandler handles login, register and logout.
type AuthHandler struct {
	sessions *auth.Store
	userSvc  *service.UserService
	onLogin  func(ctx context.Context, id domain.Identity)
	log      *slog.Logger
}

// NewAuthHandler returns a new AuthHandler. onLogin, if set, runs after
// every successful sign-in with a context detached from the request.
func NewAuthHandler(sessions *auth.Store, userSvc *service.UserService, onLogin func(context.Context, domain.Identity), log *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, userSvc: userSvc, onLogin: onLogin, log: orDefault(log)}
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userSvc.ValidateCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		respondError(c, h.log, err)
		return
	}
	h.startSession(c, user, http.StatusOK)
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterRequest  true  "Credentials"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}
		respondError(c, h.log, err)
		return
	}
	h.startSession(c, user, http.StatusCreated)
}

func (h *AuthHandler) startSession(c *gin.Context, user domain.User, status int) {
	id := user.Identity()
	sessionID, err := h.sessions.Create(c.Request.Context(), id)
	if err != nil {
		h.log.Error("session not created", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.SetCookie(auth.CookieName, sessionID, int(h.sessions.TTL().Seconds()), "/", "", false, true)
	if h.onLogin != nil {
		go h.onLogin(context.WithoutCancel(c.Request.Context()), id)
	}
	c.JSON(status, gin.H{"ok": true, "user": dto.UserResponse{ID: user.ID, Username: user.Username, DisplayName: id.DisplayName}})
}

// Logout godoc
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(auth.CookieName)
	if err == nil && sessionID != "" {
		_ = h.sessions.Delete(c.Request.Context(), sessionID)
	}
	c.SetCookie(auth.CookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  domain.Identity
// @Router       /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, actor(c))
}
