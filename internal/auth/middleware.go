package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"redstring/internal/apierr"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUsernameKey = "username"
	CtxRoleKey     = "role"
	ctxClaimsKey   = "claims"
)

func RequireJWT(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			apierr.Write(c, apierr.Unauthorized("missing bearer token"))
			return
		}
		claims, err := ParseJWT(secret, tokenStr)
		if err != nil {
			apierr.Write(c, apierr.Unauthorized("invalid token"))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT records the caller when a valid bearer token is sent and lets
// anonymous requests through. A malformed token is still rejected.
func OptionalJWT(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.Next()
			return
		}
		claims, err := ParseJWT(secret, tokenStr)
		if err != nil {
			apierr.Write(c, apierr.Unauthorized("invalid token"))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// RequireRole must run after RequireJWT.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRoleKey) != role {
			apierr.Write(c, apierr.Forbidden(role+" role required"))
			return
		}
		c.Next()
	}
}

// CheckUser rejects requests whose token belongs to someone other than
// userID. Anonymous requests pass.
func CheckUser(c *gin.Context, userID string) error {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil
	}
	if claims := v.(*Claims); claims.UserID != userID && !claims.IsAdmin() {
		return apierr.Forbidden("userId does not match the signed-in user")
	}
	return nil
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(CtxUserIDKey, claims.UserID)
	c.Set(CtxUsernameKey, claims.Username)
	c.Set(CtxRoleKey, claims.Role)
	c.Set(ctxClaimsKey, claims)
}
