package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"talktime/internal/domain"
)

const (
	UserIDContextKey   = "user_id"
	UserRoleContextKey = "user_role"
)

// Claims are the subset of the externally-issued access token this service
// cares about: who the caller is and which role they act under.
type Claims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired validates bearer tokens locally. Token issuance lives in the
// auth service; this middleware only verifies the shared-secret signature
// and exposes (id, role) to handlers.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return Unauthorized("Missing authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return Unauthorized("Invalid authorization header format")
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return Unauthorized("Invalid or expired token")
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return Unauthorized("Invalid token subject")
		}

		role := domain.Role(claims.Role)
		if !role.IsValid() {
			return Unauthorized("Invalid token role")
		}

		c.Locals(UserIDContextKey, userID)
		c.Locals(UserRoleContextKey, role)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals(UserIDContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, Unauthorized("Not authenticated")
	}
	return userID, nil
}

func GetUserRole(c *fiber.Ctx) (domain.Role, error) {
	role, ok := c.Locals(UserRoleContextKey).(domain.Role)
	if !ok {
		return "", Unauthorized("Not authenticated")
	}
	return role, nil
}
