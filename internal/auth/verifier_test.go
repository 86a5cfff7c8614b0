package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func hs256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	input := enc(map[string]string{"alg": "HS256", "typ": "JWT"}) + "." + enc(claims)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return input + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevTokens(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("t1:Admin")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "t1" || !p.IsAdmin() {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := v.Verify("t1"); err == nil {
		t.Fatal("expected error for token without role")
	}
}

func TestHMACTokens(t *testing.T) {
	v := NewVerifier("hmac", "k")
	v.now = func() time.Time { return time.Unix(1000, 0) }

	p, err := v.Verify(hs256(t, "k", map[string]any{"tenant": "acme", "exp": 2000}))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "acme" || p.Role != RolePlanner {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := v.Verify(hs256(t, "wrong", map[string]any{"tenant": "acme"})); err != ErrInvalidToken {
		t.Fatalf("bad signature: got %v", err)
	}
	if _, err := v.Verify(hs256(t, "k", map[string]any{"tenant": "acme", "exp": 999})); err != ErrExpired {
		t.Fatalf("expired: got %v", err)
	}
	if _, err := v.Verify(hs256(t, "k", map[string]any{"role": "admin"})); err == nil {
		t.Fatal("expected missing tenant error")
	}
	if _, err := v.Verify("a.b"); err != ErrInvalidToken {
		t.Fatalf("malformed: got %v", err)
	}
}
