package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	res "github.com/lifeleveling/lifeleveling/pkg/http"
)

// HeaderAPIKey carries the shared secret of the local UI.
const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware admits requests whose API key matches a bcrypt hash.
type APIKeyMiddleware struct {
	hash []byte
}

// NewAPIKeyMiddleware returns a middleware checking keys against hash. An
// empty hash disables the check.
func NewAPIKeyMiddleware(hash string) *APIKeyMiddleware {
	return &APIKeyMiddleware{hash: []byte(hash)}
}

func (m *APIKeyMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if len(m.hash) == 0 {
			return next(c)
		}
		key := c.Request().Header.Get(HeaderAPIKey)
		if key == "" {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "missing api key", nil)
		}
		if err := bcrypt.CompareHashAndPassword(m.hash, []byte(key)); err != nil {
			return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", "invalid api key", nil)
		}
		return next(c)
	}
}
