package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/campusgate/admissions-api/internal/models"
)

// ContextActorKey is the gin context key storing the acting user's claims.
const ContextActorKey = "currentActor"

// Actor attaches the bearer token's claims to the context when a valid token
// is present. Tokens are issued by the platform's identity service; invalid or
// absent tokens simply leave the actor unset, enforcement happens upstream.
func Actor(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		claims := &models.ActorClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		c.Set(ContextActorKey, claims)
		c.Next()
	}
}

// ActorValue returns the acting user's claims from the context, if any.
func ActorValue(c *gin.Context) *models.ActorClaims {
	if v, exists := c.Get(ContextActorKey); exists {
		if claims, ok := v.(*models.ActorClaims); ok {
			return claims
		}
	}
	return nil
}
