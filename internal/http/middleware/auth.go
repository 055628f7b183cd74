package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"docsign/internal/config"
)

// Staff roles carried in the role claim.
const (
	RoleAdmin    = "Admin"
	RoleCustomer = "Customer"
)

// PrincipalLocalKey is where Auth stores the authenticated *Principal.
const PrincipalLocalKey = "principal"

// Principal is the authenticated staff user.
type Principal struct {
	Subject    string
	Role       string
	CustomerID string
	Email      string
}

// IsAdmin reports whether p may act on every customer's data.
func (p *Principal) IsAdmin() bool {
	return strings.EqualFold(p.Role, RoleAdmin)
}

// Claims are the JWT claims issued to staff users.
type Claims struct {
	Role       string `json:"role"`
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("missing bearer token")

// Auth verifies an HS256 token from the Authorization header or the "jwt"
// cookie and stores the Principal in locals. Failures return 401.
func Auth(cfg config.AuthConfig) fiber.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.JWTSecret)

	return func(c *fiber.Ctx) error {
		raw, err := bearer(c)
		if err != nil || len(secret) == 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		var claims Claims
		if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		if !strings.EqualFold(claims.Role, RoleAdmin) && !strings.EqualFold(claims.Role, RoleCustomer) {
			return fiber.NewError(fiber.StatusForbidden, "role not allowed")
		}
		c.Locals(PrincipalLocalKey, &Principal{
			Subject:    claims.Subject,
			Role:       claims.Role,
			CustomerID: claims.CustomerID,
			Email:      claims.Email,
		})
		return c.Next()
	}
}

func bearer(c *fiber.Ctx) (string, error) {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok), nil
		}
		return "", errNoToken
	}
	if tok := c.Cookies("jwt"); tok != "" {
		return tok, nil
	}
	return "", errNoToken
}

// GetPrincipal returns the Principal stored by Auth.
func GetPrincipal(c *fiber.Ctx) (*Principal, bool) {
	p, ok := c.Locals(PrincipalLocalKey).(*Principal)
	return p, ok
}
