package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	mgr := NewManager("secret", time.Hour)
	mgr.Now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	token, err := mgr.Sign("u1", "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	claims, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "u1" || claims.Username != "alice" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParse_RejectsTamperedToken(t *testing.T) {
	mgr := NewManager("secret", time.Hour)
	token, err := mgr.Sign("u1", "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	if _, err := mgr.Parse(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	other := NewManager("other-secret", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestParse_RejectsExpiredToken(t *testing.T) {
	mgr := NewManager("secret", time.Minute)
	mgr.Now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	token, err := mgr.Sign("u1", "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	mgr.Now = func() time.Time { return time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC) }
	if _, err := mgr.Parse(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := BearerToken("bearer abc"); got != "abc" {
		t.Fatalf("scheme should be case-insensitive, got %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("expected empty for non-bearer header, got %q", got)
	}
	if got := BearerToken(""); got != "" {
		t.Fatalf("expected empty for missing header, got %q", got)
	}
}
