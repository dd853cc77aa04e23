package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/middleware"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
	logger      *zap.Logger
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func NewAuthHandler(authService *app.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Please enter a username and a password of at least 6 characters.")
		return
	}

	_, err := h.authService.Register(app.RegisterInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Message(c, http.StatusBadRequest, "Please enter a username and a password of at least 6 characters.")
		case errors.Is(err, app.ErrUsernameExists):
			response.Message(c, http.StatusBadRequest, "User with this username already exists.")
		default:
			h.logger.Error("registration failed", zap.Error(err))
			response.Message(c, http.StatusInternalServerError, "Server error during registration.")
		}
		return
	}

	response.Message(c, http.StatusCreated, "User registered successfully!")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Message(c, http.StatusBadRequest, "Invalid credentials.")
		return
	}

	result, err := h.authService.Login(app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidCredential):
			response.Message(c, http.StatusBadRequest, "Invalid credentials.")
		default:
			h.logger.Error("login failed", zap.Error(err))
			response.Message(c, http.StatusInternalServerError, "Server error during login.")
		}
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.SessionCookieName,
		result.Token,
		int(h.authService.SessionTTL().Seconds()),
		"/",
		"",
		false,
		true,
	)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully!",
		"user": gin.H{
			"id":       result.User.ID,
			"username": result.User.Username,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
	response.Message(c, http.StatusOK, "Logged out successfully.")
}

// Status reports session validity without going through the auth
// middleware so the unauthenticated shape stays {isAuthenticated:false}.
func (h *AuthHandler) Status(c *gin.Context) {
	token, err := c.Cookie(middleware.SessionCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"isAuthenticated": false})
		return
	}

	user, err := h.authService.ResolveSession(token)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"isAuthenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isAuthenticated": true,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
	})
}
