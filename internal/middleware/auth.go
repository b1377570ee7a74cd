package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"collab-service/internal/models"
)

const callerContextKey = "caller"

// Claims are the access token claims issued by the platform's auth service.
type Claims struct {
	UserID    int    `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// ParseToken validates an HS256 token and returns the caller it identifies.
func ParseToken(secret, issuer, tokenString string) (models.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return models.Caller{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 || !models.Role(claims.Role).Valid() {
		return models.Caller{}, ErrInvalidToken
	}

	sessionID := claims.SessionID
	if sessionID == "" && claims.IssuedAt != nil {
		sessionID = strconv.FormatInt(claims.IssuedAt.Unix(), 10)
	}
	return models.Caller{UserID: claims.UserID, Role: models.Role(claims.Role), SessionID: sessionID}, nil
}

// SignToken issues a token for caller. Used by tests and local tooling.
func SignToken(secret, issuer string, caller models.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    caller.UserID,
		Role:      string(caller.Role),
		SessionID: caller.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthMiddleware validates the bearer token and stores the caller in the context.
// Websocket clients that cannot set headers may pass the token as ?token=.
func AuthMiddleware(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		caller, err := ParseToken(secret, issuer, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		SetCaller(c, caller)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SetCaller stores the caller for CallerFrom.
func SetCaller(c *gin.Context, caller models.Caller) {
	c.Set(callerContextKey, caller)
}

// CallerFrom returns the authenticated caller.
func CallerFrom(c *gin.Context) (models.Caller, bool) {
	val, ok := c.Get(callerContextKey)
	if !ok {
		return models.Caller{}, false
	}
	caller, ok := val.(models.Caller)
	return caller, ok
}
