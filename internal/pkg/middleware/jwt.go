package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/civicpay/civicpay/internal/pkg/env"
	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

const accessTokenTTL = 15 * time.Minute

// AccessClaims is the payload of an access token issued by the auth service
type AccessClaims struct {
	UserID       string `json:"userId"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	FullName     string `json:"fullName,omitempty"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// LoadJWTSecret returns JWT_ACCESS_SECRET or an error when it is unset
func LoadJWTSecret() ([]byte, error) {
	secret := strings.TrimSpace(env.GetEnv("JWT_ACCESS_SECRET", ""))
	if secret == "" {
		return nil, errors.New("missing required secret: JWT_ACCESS_SECRET")
	}
	return []byte(secret), nil
}

// NewAccessToken signs a short-lived HS256 access token
func NewAccessToken(secret []byte, userID, role string, now time.Time) (string, error) {
	claims := &AccessClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAccessToken validates the signature and expiry of token
func ParseAccessToken(token string, secret []byte) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

// UserContextMiddleware reads the bearer token, when present, and sets the
// user context. Requests without a valid token continue as anonymous;
// RequireAuth rejects them on protected routes.
func UserContextMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Next()
		}
		claims, err := ParseAccessToken(token, secret)
		if err != nil {
			c.Locals(keyTokenError, true)
			return c.Next()
		}
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:       claims.UserID,
			FullName:     claims.FullName,
			MobileNumber: claims.MobileNumber,
			Role:         claims.Role,
			IsLoggedIn:   true,
		})
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
