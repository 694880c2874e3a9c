package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/pinechat-backend/internal/config"
	"github.com/yungbote/pinechat-backend/internal/logger"
)

const userUUIDKey = "user_uuid"

type AuthMiddleware struct {
	log *logger.Logger
	cfg *config.Config
}

func NewAuthMiddleware(log *logger.Logger, cfg *config.Config) *AuthMiddleware {
	middlewareLog := log.With("middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLog, cfg: cfg}
}

// RequireUser resolves the caller's user uuid: a bearer token's sub claim,
// then the X-User-UUID header, then the configured test uuid when allowed.
// The resolved id must parse as a uuid; it names the storage partition.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userUUID := am.resolveUser(c)
		if userUUID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
			return
		}
		if _, err := uuid.Parse(userUUID); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user identity is not a valid uuid"})
			return
		}
		c.Set(userUUIDKey, userUUID)
		c.Next()
	}
}

func (am *AuthMiddleware) resolveUser(c *gin.Context) string {
	if token := extractBearerToken(c); token != "" {
		sub, err := am.subjectFromToken(token)
		if err != nil {
			am.log.Debug("Bearer token rejected", "error", err)
		} else if sub != "" {
			return sub
		}
	}
	if header := c.GetHeader("X-User-UUID"); header != "" {
		return header
	}
	if am.cfg.Auth.AllowTestUser {
		return am.cfg.Auth.TestUserUUID
	}
	return ""
}

func (am *AuthMiddleware) subjectFromToken(tokenString string) (string, error) {
	if am.cfg.Auth.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(am.cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

// UserUUID returns the identity resolved by RequireUser for this request.
func UserUUID(c *gin.Context) string {
	return c.GetString(userUUIDKey)
}
