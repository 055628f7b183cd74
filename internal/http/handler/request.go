package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docsign/internal/audit"
	"docsign/internal/http/middleware"
)

// owner resolves the customer scope of a staff request: "" for admins,
// the token's customer otherwise. The returned error is a *fiber.Error for
// ErrorHandler to render.
func owner(c *fiber.Ctx) (string, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	if p.IsAdmin() {
		return "", nil
	}
	if p.CustomerID == "" {
		return "", fiber.ErrForbidden
	}
	return p.CustomerID, nil
}

// idParam validates the :id route parameter as a UUID.
func idParam(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// fingerprint collects what the server knows about the caller. Geo headers
// are set by the edge proxy when present.
func fingerprint(c *fiber.Ctx) audit.Fingerprint {
	return audit.Fingerprint{
		IP:         audit.ClientIP(c.Get(fiber.HeaderXForwardedFor), c.Context().RemoteAddr().String()),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
		Language:   c.Get(fiber.HeaderAcceptLanguage),
		GeoCountry: c.Get("CF-IPCountry"),
		GeoCity:    c.Get("CF-IPCity"),
	}
}
