package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const SubjectKey = "subject"

// Middleware validates the bearer token and stores its subject in the Echo context.
func (s *Service) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}

		sub, err := s.Verify(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
		if sub != AdminSubject {
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		}

		c.Set(SubjectKey, sub)
		return next(c)
	}
}

// SubjectFromContext returns the subject stored by Middleware.
func SubjectFromContext(c echo.Context) (string, error) {
	sub, ok := c.Get(SubjectKey).(string)
	if !ok || sub == "" {
		return "", errors.New("subject not found in context")
	}
	return sub, nil
}
