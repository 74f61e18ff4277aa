package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	apperrors "github.com/alejandroruanova/review-insights-service/internal/pkg/errors"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "user_id"
	emailKey  = "email"

	// ServiceKeyHeader may carry the service key instead of the Authorization header
	ServiceKeyHeader = "X-Service-Key"
)

// UserClaims are the claims read from user bearer tokens. The subject is the user id.
type UserClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth validates an HS256 bearer token and stores the caller's user id
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c.Request().Context())

			tokenString, ok := bearerToken(c)
			if !ok {
				log.Warn("missing or malformed authorization header")
				return apperrors.Unauthorized("missing bearer token")
			}

			claims := &UserClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				log.Warn("invalid bearer token", slog.Any("error", err))
				return apperrors.Unauthorized("invalid or expired token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				log.Warn("token subject is not a user id", slog.String("sub", claims.Subject))
				return apperrors.Unauthorized("invalid token subject")
			}

			c.Set(userIDKey, userID)
			c.Set(emailKey, claims.Email)

			return next(c)
		}
	}
}

// ServiceKeyAuth only admits callers presenting the service's own key
func ServiceKeyAuth(serviceKey string) echo.MiddlewareFunc {
	expected := []byte(serviceKey)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := c.Request().Header.Get(ServiceKeyHeader)
			if presented == "" {
				presented, _ = bearerToken(c)
			}

			if len(expected) == 0 || subtle.ConstantTimeCompare(expected, []byte(presented)) != 1 {
				logger.FromContext(c.Request().Context()).Warn("rejected internal call")
				return apperrors.Unauthorized("invalid service key")
			}
			return next(c)
		}
	}
}

// GetUserID returns the authenticated caller's user id
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get(userIDKey).(uuid.UUID)
	return userID, ok
}

func bearerToken(c echo.Context) (string, bool) {
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
