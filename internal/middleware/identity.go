// Package middleware holds the echo middleware chain: identity, request
// logging, the redis response cache and the redis token bucket.
package middleware

import "github.com/labstack/echo/v4"

const userIDKey = "user_id"

// UserID returns the user id resolved by Identity, or "" when the
// middleware did not run.
func UserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok {
		return s
	}
	return ""
}
