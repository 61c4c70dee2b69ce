package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/utils"
)

// Identity resolves the caller for every request. With a secret configured
// and a Bearer token presented, the token's subject becomes the user id and
// an invalid token is rejected with 401. Without a token, or when tokens are
// disabled, the request acts as fallbackUserID.
func Identity(secret, fallbackUserID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if secret == "" || !strings.HasPrefix(auth, "Bearer ") {
				c.Set(userIDKey, fallbackUserID)
				return next(c)
			}
			sub, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
			}
			c.Set(userIDKey, sub)
			return next(c)
		}
	}
}
