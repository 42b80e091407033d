package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sykell/link-health/internal/logger"
)

const userContextKey = "user"

var errNoSubject = errors.New("token carries no user")

// UserContext represents user information in the request context
type UserContext struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the user, valid until expiresAt.
func IssueToken(secret string, userID uint, username string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken parses tokenString and returns its claims. Only HMAC-signed
// tokens naming a user are accepted.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, errNoSubject
	}
	return claims, nil
}

// JWTRequired rejects requests without a valid bearer token and stores the
// caller in the gin context.
func JWTRequired(secret string, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, problem := bearerToken(c.GetHeader("Authorization"))
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, err := ValidateToken(tokenStr, secret)
		if err != nil {
			log.Debug("JWT validation failed", logger.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(userContextKey, UserContext{
			UserID:   claims.UserID,
			Username: claims.Username,
		})
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. The second
// result is the client-facing reason when there is none.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Authorization header required"
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	if strings.TrimSpace(token) == "" {
		return "", "Token cannot be empty"
	}
	return token, ""
}

// GetUserFromContext returns the caller stored by JWTRequired.
func GetUserFromContext(c *gin.Context) (*UserContext, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(UserContext)
	if !ok {
		return nil, false
	}
	return &user, true
}

// CORS allows browser clients on any origin to call the API with a bearer token.
func CORS() gin.HandlerFunc {
	const (
		methods = "GET, POST, DELETE, OPTIONS"
		headers = "Origin, Content-Type, Accept, Authorization"
	)
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
