package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-at-least-32-bytes-long!")

func signToken(t *testing.T, secret []byte, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifyTokenValid(t *testing.T) {
	v := NewVerifier(testSecret, "draftwise")

	tokenString := signToken(t, testSecret, tokenClaims{
		Email: "writer@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_123",
			Issuer:    "draftwise",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.VerifyToken(tokenString)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != "user_123" {
		t.Errorf("user ID = %q, want user_123", claims.UserID)
	}
	if claims.Email != "writer@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	v := NewVerifier(testSecret, "draftwise")

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "garbage",
			token: "not.a.token",
		},
		{
			name: "wrong secret",
			token: signToken(t, []byte("some-other-secret-32-bytes-long!!"), jwt.RegisteredClaims{
				Subject:   "user_123",
				Issuer:    "draftwise",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name: "expired",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject:   "user_123",
				Issuer:    "draftwise",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
		},
		{
			name: "missing expiry",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject: "user_123",
				Issuer:  "draftwise",
			}),
		},
		{
			name: "wrong issuer",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Subject:   "user_123",
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name: "missing subject",
			token: signToken(t, testSecret, jwt.RegisteredClaims{
				Issuer:    "draftwise",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.VerifyToken(tt.token); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestVerifyTokenRejectsNoneAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret, "")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user_123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := v.VerifyToken(signed); err == nil {
		t.Error("alg=none token must be rejected")
	}
}

func TestUserHasherDeterministic(t *testing.T) {
	h, err := NewUserHasher(testSecret)
	if err != nil {
		t.Fatalf("NewUserHasher failed: %v", err)
	}

	a := h.Hash("user_123")
	b := h.Hash("user_123")
	if a != b {
		t.Error("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if strings.Contains(a, "user_123") {
		t.Error("hash must not contain the raw user ID")
	}
	if h.Hash("user_124") == a {
		t.Error("different users must hash differently")
	}
}

func TestUserHasherKeySeparation(t *testing.T) {
	h1, err := NewUserHasher(testSecret)
	if err != nil {
		t.Fatalf("NewUserHasher failed: %v", err)
	}
	h2, err := NewUserHasher([]byte("another-deployment-secret-32-byte"))
	if err != nil {
		t.Fatalf("NewUserHasher failed: %v", err)
	}

	if h1.Hash("user_123") == h2.Hash("user_123") {
		t.Error("hashes must differ across deployment secrets")
	}
}
