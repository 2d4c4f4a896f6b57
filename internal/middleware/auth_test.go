package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, role string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, Claims{
		Role: role,
		Name: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func protected(v *Verifier, role string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaims(r) == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return JWTAuthMiddleware(v)(RoleAtLeastMiddleware(role)(ok))
}

func do(h http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestHS256(t *testing.T) {
	v := NewVerifier(nil, "s3cret")
	h := protected(v, "user")
	future := time.Now().Add(time.Hour)

	if code := do(h, sign(t, jwt.SigningMethodHS256, []byte("s3cret"), "resident", future)); code != http.StatusNoContent {
		t.Fatalf("valid token: got %d", code)
	}
	if code := do(h, ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", code)
	}
	if code := do(h, sign(t, jwt.SigningMethodHS256, []byte("other"), "admin", future)); code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d", code)
	}
	if code := do(h, sign(t, jwt.SigningMethodHS256, []byte("s3cret"), "admin", time.Now().Add(-time.Minute))); code != http.StatusUnauthorized {
		t.Fatalf("expired token: got %d", code)
	}
	if code := do(protected(v, "admin"), sign(t, jwt.SigningMethodHS256, []byte("s3cret"), "user", future)); code != http.StatusForbidden {
		t.Fatalf("insufficient role: got %d", code)
	}
}

func TestRS256RejectsOtherAlgorithms(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	v := NewVerifier(&key.PublicKey, "")
	h := protected(v, "user")
	future := time.Now().Add(time.Hour)

	if code := do(h, sign(t, jwt.SigningMethodRS256, key, "user", future)); code != http.StatusNoContent {
		t.Fatalf("valid RS256 token: got %d", code)
	}
	if code := do(h, sign(t, jwt.SigningMethodHS256, []byte("anything"), "admin", future)); code != http.StatusUnauthorized {
		t.Fatalf("HS256 token against RS256 verifier: got %d", code)
	}
}

func TestUnconfiguredVerifierRejects(t *testing.T) {
	var v *Verifier
	if _, err := v.Verify("x"); err != ErrNoVerifier {
		t.Fatalf("expected ErrNoVerifier, got %v", err)
	}
}

func TestCookieToken(t *testing.T) {
	v := NewVerifier(nil, "s3cret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: sign(t, jwt.SigningMethodHS256, []byte("s3cret"), "user", time.Now().Add(time.Hour))})
	c, err := v.FromRequest(req)
	if err != nil || c.Subject != "user-1" {
		t.Fatalf("cookie token: %v %+v", err, c)
	}
}
