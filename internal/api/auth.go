package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"redstring/internal/apierr"
	"redstring/internal/auth"
	"redstring/internal/user"
)

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}

	u, err := user.VerifyLogin(c.Request.Context(), s.db, req.Username, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) || errors.Is(err, user.ErrUserNotFound) {
		apierr.Write(c, apierr.Unauthorized("Invalid username or password"))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	token, err := auth.SignJWT(s.secret, u.ID, u.Username, u.Role, s.tokenTTL)
	if err != nil {
		apierr.Write(c, apierr.Internal("Sign token failed", err))
		return
	}
	s.log.Info("user logged in", "user_id", u.ID, "username", u.Username)

	c.JSON(http.StatusOK, gin.H{"id": u.ID, "username": u.Username, "role": u.Role, "token": token})
}

// validate tells a client whether its stored user still exists.
func (s *Server) validate(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		apierr.Write(c, apierr.InvalidSession(sessionExpiredMsg))
		return
	}
	u, err := user.GetByID(c.Request.Context(), s.db, req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": u})
}
