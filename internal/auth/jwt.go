package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"redstring/pkg/models"
)

const tokenIssuer = "redstring"

// ErrTokenIdentity means the token is signed but names no usable reader.
var ErrTokenIdentity = errors.New("token does not identify a user")

// Claims identify the reader behind a request. Subject always equals UserID.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Valid runs the expiry checks, then the identity checks.
func (c Claims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if !c.VerifyIssuer(tokenIssuer, true) {
		return jwt.ErrTokenInvalidIssuer
	}
	if c.UserID == "" || c.Subject != c.UserID {
		return ErrTokenIdentity
	}
	if c.Role != models.RoleReader && c.Role != models.RoleAdmin {
		return ErrTokenIdentity
	}
	return nil
}

func (c Claims) IsAdmin() bool { return c.Role == models.RoleAdmin }

// SignJWT issues an HS256 login token. An empty role signs a reader.
func SignJWT(secret []byte, userID, username, role string, ttl time.Duration) (string, error) {
	if role == "" {
		role = models.RoleReader
	}
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseJWT accepts only HS256 tokens signed with secret whose claims pass
// Claims.Valid.
func ParseJWT(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
