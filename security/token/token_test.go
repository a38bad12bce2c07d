package token

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rsaConfig(t *testing.T) Config {
	t.Helper()
	priv, _, err := GenerateKeyPair(2048)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return Config{
		Algorithm:  AlgRS256,
		PrivateKey: string(priv),
		Issuer:     "identity",
		Audience:   "shop",
		TTL:        time.Hour,
	}
}

func TestIssueAndVerifyRS256(t *testing.T) {
	issuer, err := NewIssuer(rsaConfig(t))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	credential, expiresAt, err := issuer.Issue("user-1", "User")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("expiresAt out of range: %v", until)
	}

	claims, err := issuer.Verifier().Verify(credential)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "User" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry mismatch: got=%v want=%v", claims.ExpiresAt, expiresAt)
	}
}

func TestIssueAndVerifyHS256(t *testing.T) {
	cfg := Config{Algorithm: "hs256", Secret: "shared", TTL: time.Minute}
	issuer, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	credential, _, err := issuer.Issue("user-2", "Admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	claims, err := verifier.Verify(credential)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != "Admin" {
		t.Fatalf("role: got=%q", claims.Role)
	}
}

func TestVerifyOutcomes(t *testing.T) {
	cfg := rsaConfig(t)
	issuer, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	verifier := issuer.Verifier()

	expiredIssuer, _ := NewIssuer(cfg)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := expiredIssuer.Issue("user-1", "User")

	otherIssuer, _ := NewIssuer(rsaConfig(t))
	forged, _, _ := otherIssuer.Issue("user-1", "User")

	wrongAudienceCfg := cfg
	wrongAudienceCfg.Audience = "elsewhere"
	wrongAudienceIssuer, _ := NewIssuer(wrongAudienceCfg)
	wrongAudience, _, _ := wrongAudienceIssuer.Issue("user-1", "User")

	hsIssuer, _ := NewIssuer(Config{Algorithm: AlgHS256, Secret: "s", Issuer: cfg.Issuer, Audience: cfg.Audience})
	algSwap, _, _ := hsIssuer.Issue("user-1", "User")

	cases := []struct {
		name       string
		credential string
		want       error
	}{
		{"malformed", "not-a-jwt", ErrMalformed},
		{"expired", expired, ErrExpired},
		{"foreign key", forged, ErrSignatureInvalid},
		{"algorithm swap", algSwap, ErrSignatureInvalid},
		{"wrong audience", wrongAudience, ErrInvalidClaims},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(tc.credential)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMissingKeyMaterial(t *testing.T) {
	if _, err := NewIssuer(Config{Algorithm: AlgRS256}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("issuer: got %v", err)
	}
	if _, err := NewVerifier(Config{Algorithm: AlgHS256}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("verifier: got %v", err)
	}
	if _, err := NewIssuer(Config{Algorithm: "ES256", Secret: "x"}); !errors.Is(err, ErrUnsupportedAlg) {
		t.Fatalf("alg: got %v", err)
	}
	if _, err := NewIssuer(Config{Algorithm: AlgRS256, PrivateKey: "-----BEGIN NOTHING-----"}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("pem: got %v", err)
	}
}

func TestVerifierFromPublicKeyOnly(t *testing.T) {
	priv, pub, err := GenerateKeyPair(2048)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	issuer, err := NewIssuer(Config{PrivateKey: string(priv)})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	verifier, err := NewVerifier(Config{PublicKey: string(pub)})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	credential, _, _ := issuer.Issue("user-3", "User")
	if _, err := verifier.Verify(credential); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestExpiryOf(t *testing.T) {
	issuer, _ := NewIssuer(Config{Algorithm: AlgHS256, Secret: "s", TTL: 30 * time.Minute})
	credential, expiresAt, _ := issuer.Issue("user-1", "User")

	got, err := ExpiryOf(credential)
	if err != nil {
		t.Fatalf("ExpiryOf: %v", err)
	}
	if !got.Equal(expiresAt) {
		t.Fatalf("got=%v want=%v", got, expiresAt)
	}
	if _, err := ExpiryOf("a.b.c"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("malformed: got %v", err)
	}
}

func TestJWKSRoundTrip(t *testing.T) {
	issuer, err := NewIssuer(rsaConfig(t))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	set, err := issuer.Verifier().JWKS()
	if err != nil {
		t.Fatalf("JWKS: %v", err)
	}
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"kid":"`+issuer.kid+`"`) {
		t.Fatalf("kid missing from %s", body)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	remote, err := FetchVerifier(t.Context(), rsaConfig(t), srv.URL)
	if err != nil {
		t.Fatalf("FetchVerifier: %v", err)
	}
	credential, _, _ := issuer.Issue("user-4", "User")
	if _, err := remote.Verify(credential); err != nil {
		t.Fatalf("Verify via JWKS: %v", err)
	}
}
