package middleware

import (
	"strings"

	xhttp "PricePortal/pkg/http"

	"github.com/labstack/echo/v4"
)

const usernameKey = "auth.username"

const (
	msgNoCredentials = "Authentication credentials were not provided."
	msgBadHeader     = "Authorization header must contain two space-delimited values"
)

// TokenAuthenticator resolves an access token to a username.
type TokenAuthenticator interface {
	Authenticate(token string) (string, error)
}

// JWTAuth requires a valid "Bearer <access>" Authorization header.
func JWTAuth(a TokenAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// foreign schemes count as no credentials
			parts := strings.Fields(c.Request().Header.Get(echo.HeaderAuthorization))
			if len(parts) == 0 || !strings.EqualFold(parts[0], "Bearer") {
				return xhttp.ErrorResponse(c, xhttp.UnauthorizedError(msgNoCredentials))
			}
			if len(parts) != 2 {
				return xhttp.ErrorResponse(c, xhttp.UnauthorizedError(msgBadHeader))
			}

			username, err := a.Authenticate(parts[1])
			if err != nil {
				return xhttp.ErrorResponse(c, err)
			}
			c.Set(usernameKey, username)
			return next(c)
		}
	}
}

// Username returns the authenticated user, empty outside JWTAuth.
func Username(c echo.Context) string {
	s, _ := c.Get(usernameKey).(string)
	return s
}
