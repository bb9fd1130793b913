package models

import "github.com/golang-jwt/jwt/v5"

// Claims carries the editor identity and roles embedded in admin tokens.
type Claims struct {
	UserID               string   `json:"user_id"`
	Roles                []string `json:"roles"`
	jwt.RegisteredClaims          // Issuer, Subject, ExpiresAt, IssuedAt, ID (JTI)
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
