package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, "psiclinic", 168*time.Hour)
	p := Principal{ID: 42, Email: "a@x.com", Role: RoleAdmin}

	tok, exp, err := m.Issue(p)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if d := time.Until(exp); d < 167*time.Hour || d > 168*time.Hour {
		t.Errorf("expected expiry about 7 days out, got %s", d)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "a@x.com" || claims.Role != RoleAdmin {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.Subject != "42" {
		t.Errorf("expected sub 42, got %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}
}

func TestTokenManager_Tampered(t *testing.T) {
	m := NewTokenManager(testSecret, "psiclinic", time.Hour)
	tok, _, _ := m.Issue(Principal{ID: 1, Role: RolePsychologist})

	parts := strings.Split(tok, ".")
	parts[1] = parts[1] + "x"
	if _, err := m.Parse(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tok, _, _ := NewTokenManager("other-secret", "psiclinic", time.Hour).Issue(Principal{ID: 1})
	m := NewTokenManager(testSecret, "psiclinic", time.Hour)
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManager_WrongIssuer(t *testing.T) {
	tok, _, _ := NewTokenManager(testSecret, "someone-else", time.Hour).Issue(Principal{ID: 1})
	m := NewTokenManager(testSecret, "psiclinic", time.Hour)
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager(testSecret, "psiclinic", time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, _ := m.Issue(Principal{ID: 1})

	m.now = time.Now
	if _, err := m.Parse(tok); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenManager_RejectsNoneAlg(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "psiclinic",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: 1,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	m := NewTokenManager(testSecret, "psiclinic", time.Hour)
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManager_Empty(t *testing.T) {
	m := NewTokenManager(testSecret, "psiclinic", time.Hour)
	if _, err := m.Parse(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Compare(hash, "secret"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := h.Compare("not-a-hash", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for malformed hash, got %v", err)
	}
	h.CompareDummy("anything")
}
