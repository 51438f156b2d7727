package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/rbac"
)

const roleContextKey = "auth.role"

var errBadCredentials = errors.New("invalid username or password")

// authenticator verifies static credentials and issues HS256 tokens
// carrying the user's role.
type authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]config.User
}

func newAuthenticator(cfg config.AuthConfig) *authenticator {
	users := make(map[string]config.User, len(cfg.Users))
	for _, u := range cfg.Users {
		users[strings.ToLower(u.Username)] = u
	}
	ttl := time.Duration(cfg.TokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &authenticator{secret: []byte(cfg.JWTSecret), ttl: ttl, users: users}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *authenticator) login(username, password string) (string, string, error) {
	u, ok := a.users[strings.ToLower(username)]
	// Compare even for unknown users so timing does not reveal which
	// usernames exist.
	stored := u.Password
	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 || !ok {
		return "", "", errBadCredentials
	}

	role := rbac.NormalizeRole(u.Role)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, role, nil
}

func (a *authenticator) verify(tokenString string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// authRequired extracts and validates the bearer token, storing the role in
// the request context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing bearer token"})
			return
		}
		cl, err := s.auth.verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid or expired token"})
			return
		}
		if !s.store.Known(cl.Role) {
			c.AbortWithStatusJSON(403, gin.H{"error": "unknown role"})
			return
		}
		c.Set(roleContextKey, cl.Role)
		c.Next()
	}
}

// requireRole gates a route to a single role.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleContextKey) != role {
			c.AbortWithStatusJSON(403, gin.H{"error": "insufficient privileges"})
			return
		}
		c.Next()
	}
}
