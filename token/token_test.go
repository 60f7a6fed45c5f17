package token_test

import (
	"context"
	"errors"
	"testing"
	"time"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/token"
	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDecode_Claims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := sign(t, jwt.MapClaims{
		"id":    42,
		"name":  "Ana",
		"email": "ana@example.com",
		"role":  "admin",
		"exp":   exp.Unix(),
		"iat":   exp.Add(-time.Hour).Unix(),
		"theme": "dark",
	})

	c, err := token.NewUnverified().Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if c.UserID != "42" {
		t.Errorf("UserID = %q, want 42", c.UserID)
	}
	if c.Name != "Ana" || c.Email != "ana@example.com" {
		t.Errorf("Name/Email = %q/%q", c.Name, c.Email)
	}
	if c.Role != portal.RoleAdmin {
		t.Errorf("Role = %q, want admin", c.Role)
	}
	if !c.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", c.ExpiresAt, exp)
	}
	if c.IssuedAt.IsZero() {
		t.Error("IssuedAt should be set")
	}
	if c.Extra["theme"] != "dark" {
		t.Errorf("Extra[theme] = %v", c.Extra["theme"])
	}
	if _, ok := c.Extra["email"]; ok {
		t.Error("standard claims should not be copied to Extra")
	}
}

func TestDecode_StringID(t *testing.T) {
	raw := sign(t, jwt.MapClaims{"id": "u-7", "exp": time.Now().Add(time.Hour).Unix()})
	c, err := token.NewUnverified().Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if c.UserID != "u-7" {
		t.Errorf("UserID = %q", c.UserID)
	}
}

func TestDecode_ExpiredStillDecodes(t *testing.T) {
	raw := sign(t, jwt.MapClaims{"id": 1, "exp": time.Now().Add(-time.Hour).Unix()})
	c, err := token.NewUnverified().Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !token.Expired(c, time.Now()) {
		t.Error("Expired() = false for past exp")
	}
}

func TestDecode_Errors(t *testing.T) {
	d := token.NewUnverified()
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"bad payload", "eyJhbGciOiJIUzI1NiJ9.!!!.sig"},
		{"no exp", sign(t, jwt.MapClaims{"id": 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Decode(context.Background(), tt.raw); err == nil {
				t.Error("Decode() expected error")
			}
		})
	}

	_, err := d.Decode(context.Background(), sign(t, jwt.MapClaims{"id": 1}))
	if !errors.Is(err, token.ErrMissingExpiry) {
		t.Errorf("Decode() = %v, want ErrMissingExpiry", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	if !token.Expired(nil, now) {
		t.Error("nil claims should be expired")
	}
	if !token.Expired(&portal.Claims{ExpiresAt: now}, now) {
		t.Error("exp == now should be expired")
	}
	if token.Expired(&portal.Claims{ExpiresAt: now.Add(time.Second)}, now) {
		t.Error("future exp should not be expired")
	}
}
