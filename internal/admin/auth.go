package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin verifies operator credentials and issues a bearer token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	if req.Username != s.cfg.Admin.Username ||
		bcrypt.CompareHashAndPassword([]byte(s.cfg.Admin.PasswordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ttl := time.Duration(s.cfg.Admin.TokenTTLMin) * time.Minute
	claims := jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.cfg.Admin.JWTSecret))
	if err != nil {
		fail(c, http.StatusInternalServerError, "token generation failed")
		return
	}

	ok(c, gin.H{"token": token, "expiresIn": int(ttl.Seconds())})
}

// authRequired validates the Authorization bearer token.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			fail(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, okAlg := t.Method.(*jwt.SigningMethodHMAC); !okAlg {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.cfg.Admin.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			fail(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		if claims, okClaims := token.Claims.(*jwt.RegisteredClaims); okClaims {
			c.Set("operator", claims.Subject)
		}
		c.Next()
	}
}

// operatorName returns the authenticated operator's name, if any.
func operatorName(c *gin.Context) string {
	if v, exists := c.Get("operator"); exists {
		if name, okStr := v.(string); okStr {
			return name
		}
	}
	return ""
}
