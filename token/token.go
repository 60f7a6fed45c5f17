// Package token decodes portal session tokens without verifying signatures.
//
// The server re-verifies every request, so client-side decoding only drives
// presentation and expiry checks. Use jwks.Verifier when signature checks are
// required.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	portal "github.com/chimerakang/portal-go"
	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingExpiry is returned when a token has no exp claim.
var ErrMissingExpiry = errors.New("portal/token: token has no exp claim")

// Unverified decodes the token payload without checking its signature.
type Unverified struct {
	parser *jwt.Parser
}

var _ portal.TokenDecoder = (*Unverified)(nil)

// NewUnverified returns a decoder that trusts the token payload.
func NewUnverified() *Unverified {
	return &Unverified{parser: jwt.NewParser()}
}

// Decode parses raw and maps its claims. Expired tokens decode successfully;
// expiry is the caller's decision.
func (u *Unverified) Decode(_ context.Context, raw string) (*portal.Claims, error) {
	if raw == "" {
		return nil, errors.New("portal/token: empty token")
	}
	mc := jwt.MapClaims{}
	if _, _, err := u.parser.ParseUnverified(raw, mc); err != nil {
		return nil, fmt.Errorf("portal/token: %w", err)
	}
	return FromMap(mc)
}

// standard claims that are not copied into Claims.Extra.
var standard = map[string]bool{
	"id": true, "sub": true, "name": true, "email": true, "role": true,
	"exp": true, "iat": true, "iss": true, "aud": true, "nbf": true, "jti": true,
}

// FromMap converts jwt.MapClaims to portal.Claims. The user id is read from
// "id" (number or string), falling back to "sub".
func FromMap(m jwt.MapClaims) (*portal.Claims, error) {
	exp, err := m.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("portal/token: exp: %w", err)
	}
	if exp == nil {
		return nil, ErrMissingExpiry
	}

	c := &portal.Claims{
		UserID:    userID(m),
		ExpiresAt: exp.Time,
		Extra:     make(map[string]any),
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if v, ok := m["name"].(string); ok {
		c.Name = v
	}
	if v, ok := m["email"].(string); ok {
		c.Email = v
	}
	if v, ok := m["role"].(string); ok {
		c.Role = portal.Role(v)
	}
	for k, v := range m {
		if !standard[k] {
			c.Extra[k] = v
		}
	}
	return c, nil
}

func userID(m jwt.MapClaims) string {
	switch v := m["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	if sub, err := m.GetSubject(); err == nil {
		return sub
	}
	return ""
}

// Expired reports whether c expires at or before now.
func Expired(c *portal.Claims, now time.Time) bool {
	return c == nil || !c.ExpiresAt.After(now)
}
