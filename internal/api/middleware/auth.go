package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jstittsworth/bracket-optimizer/pkg/utils"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func parseBearer(c *gin.Context, jwtSecret string) (*Claims, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "Authorization header required"
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return nil, "Invalid authorization header format"
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, "Invalid or expired token"
	}
	return claims, ""
}

// AuthRequired rejects requests without a valid HS256 bearer token.
func AuthRequired(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, problem := parseBearer(c, jwtSecret)
		if claims == nil {
			utils.SendUnauthorized(c, problem)
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// OptionalAuth records the caller when a valid token is present.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _ := parseBearer(c, jwtSecret); claims != nil {
			c.Set("subject", claims.Subject)
			c.Set("role", claims.Role)
			c.Set("authenticated", true)
		}
		c.Next()
	}
}
