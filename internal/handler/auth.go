package handler

import (
	"net/http"

	"github.com/diticoms/service-desk/internal/middleware"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc    service.DeskServicer
	tokens *middleware.Tokens
}

func NewAuthHandler(svc service.DeskServicer, tokens *middleware.Tokens) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the credentials against the sheet and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	user, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	token, exp, err := h.tokens.Issue(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp,
		"user":       user,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.UserFrom(c))
}
