package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required,max=128"`
	Password string `json:"password" form:"password" binding:"required,max=128"`
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Name     string `json:"name" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=128"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.authService.Login(c.Request.Context(), sess, app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	}); err != nil {
		writeError(c, err, "Login failed")
		return
	}
	response.OK(c, h.authService.Status(c.Request.Context(), sess))
}

func (h *AuthHandler) Signup(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.authService.Signup(c.Request.Context(), sess, app.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}); err != nil {
		writeError(c, err, "Signup failed")
		return
	}
	response.OK(c, gin.H{"signed_up": true})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), sess); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "logout failed")
		return
	}
	response.OK(c, gin.H{"redirect": "/login"})
}

func (h *AuthHandler) Status(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	response.OK(c, h.authService.Status(c.Request.Context(), sess))
}
