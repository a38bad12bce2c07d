package identity

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/gofiber/fiber/v3"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*fiber.App, *token.Issuer, *revocation.MemoryStore) {
	t.Helper()
	priv, _, err := token.GenerateKeyPair(2048)
	require.NoError(t, err)
	issuer, err := token.NewIssuer(token.Config{Algorithm: token.AlgRS256, PrivateKey: string(priv), TTL: time.Hour})
	require.NoError(t, err)

	store := revocation.NewMemoryStore()
	app := fiber.New()
	NewAuthHandler(store, issuer.Verifier(), zap.NewNop()).Handle(app)
	return app, issuer, store
}

func logout(t *testing.T, app *fiber.App, bearer string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := app.Test(req)
	require.NoError(t, err)
	return res.StatusCode
}

func TestLogoutRevokesCredential(t *testing.T) {
	app, issuer, store := setup(t)
	credential, _, err := issuer.Issue("user-1", "User")
	require.NoError(t, err)

	require.Equal(t, fiber.StatusNoContent, logout(t, app, credential))

	revoked, err := store.IsRevoked(context.Background(), credential)
	require.NoError(t, err)
	require.True(t, revoked)

	// Revoking again is harmless.
	require.Equal(t, fiber.StatusNoContent, logout(t, app, credential))
	require.Equal(t, 1, store.Len())
}

func TestLogoutRejectsUnknownCredential(t *testing.T) {
	app, _, store := setup(t)

	require.Equal(t, fiber.StatusUnauthorized, logout(t, app, ""))
	require.Equal(t, fiber.StatusUnauthorized, logout(t, app, "garbage"))
	require.Zero(t, store.Len())
}

func TestJWKSPublishesSigningKey(t *testing.T) {
	app, issuer, _ := setup(t)
	credential, _, err := issuer.Issue("user-1", "User")
	require.NoError(t, err)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	set, err := jwk.Parse(body)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	verifier, err := token.FetchVerifier(context.Background(), token.Config{Algorithm: token.AlgRS256}, srv.URL)
	require.NoError(t, err)
	claims, err := verifier.Verify(credential)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
}
