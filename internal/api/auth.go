package api

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SecretHeader carries the shared secret on requests.
const SecretHeader = "lens-secret"

// Authenticate accepts requests carrying the secret in SecretHeader, or an
// HS256 bearer token signed with it. An empty secret disables the check.
func Authenticate(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			req := c.Request()

			if given := req.Header.Get(SecretHeader); given != "" {
				if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
					return Unauthorized("the " + SecretHeader + " header does not match")
				}
				return next(c)
			}

			auth := req.Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				return Unauthorized("set the " + SecretHeader + " header or a bearer token")
			}
			if _, err := ParseToken(secret, token); err != nil {
				c.Logger().Debugf("rejected token: %v", err)
				return Unauthorized("the bearer token is invalid or expired")
			}
			return next(c)
		}
	}
}

// IssueToken signs a bearer token for subject. A zero ttl never expires.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies a bearer token and returns its claims.
func ParseToken(secret, token string) (*jwt.RegisteredClaims, error) {
	claims := new(jwt.RegisteredClaims)
	_, err := jwt.ParseWithClaims(
		token, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
