package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var authServiceHTTPClient = &http.Client{
	Timeout: 6 * time.Second,
}

// Validator resolves a bearer token to a user id.
type Validator func(ctx context.Context, token string) (string, error)

// NewValidator verifies tokens locally when a signing secret is set and asks
// the auth service otherwise.
func NewValidator(jwtSecret, authServiceURL string) Validator {
	if jwtSecret != "" {
		return LocalValidator([]byte(jwtSecret))
	}
	return RemoteValidator(authServiceURL)
}

// AuthMiddleware validates JWT tokens for protected routes
func AuthMiddleware(validate Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warnf("Missing authorization header from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing authorization header"})
			return
		}

		tokenString := extractToken(authHeader)
		if tokenString == "" {
			log.Warnf("Invalid authorization format from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid authorization format"})
			return
		}

		userID, err := validate(c.Request.Context(), tokenString)
		if err != nil || userID == "" {
			log.Warnf("Invalid token from %s: %v", c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
			return
		}

		log.Debugf("Token validated successfully for user %s from %s", userID, c.ClientIP())
		c.Set("user_id", userID)
		c.Next()
	}
}

func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// LocalValidator accepts HS256 access tokens carrying a user_id claim.
func LocalValidator(secret []byte) Validator {
	return func(ctx context.Context, tokenString string) (string, error) {
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return "", errors.New("invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return "", errors.New("invalid token claims")
		}
		if tokenType, _ := claims["type"].(string); tokenType == "refresh" {
			return "", errors.New("cannot use refresh token for authentication")
		}
		userID, ok := claims["user_id"].(string)
		if !ok {
			return "", errors.New("invalid user id in token")
		}
		return userID, nil
	}
}

// RemoteValidator calls the auth service's validate-token endpoint.
func RemoteValidator(authServiceURL string) Validator {
	url := strings.TrimRight(authServiceURL, "/") + "/api/v3/validate-token"
	return func(ctx context.Context, token string) (string, error) {
		body, _ := json.Marshal(map[string]string{"token": token})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
		if err != nil {
			return "", fmt.Errorf("failed to create auth-service request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := authServiceHTTPClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to call auth-service: %w", err)
		}
		defer resp.Body.Close()

		var result struct {
			Valid  bool   `json:"valid"`
			UserID string `json:"user_id"`
			Error  string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", fmt.Errorf("failed to decode auth-service response: %w", err)
		}
		if !result.Valid {
			return "", fmt.Errorf("auth-service rejected token: %s", result.Error)
		}
		return result.UserID, nil
	}
}
