package tokenbus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/gofiber/fiber/v3"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func newSource(redisAddr string, overrides map[string]any) *config.Source {
	src := config.FromViper(viper.New())
	for k, v := range map[string]any{
		"log.level":          "error",
		"bus.driver":         "redis",
		"bus.redis.block":    "100ms",
		"caching.redis.addr": redisAddr,
		"token.algorithm":    "HS256",
		"token.secret":       "app-test-secret",
		"http.host":          "127.0.0.1",
		"http.port":          0,
		"validation.timeout": "3s",
		"revocation.backend": "memory",
	} {
		src.Set(k, v)
	}
	for k, v := range overrides {
		src.Set(k, v)
	}
	return src
}

func TestServicesValidate(t *testing.T) {
	src := newSource("127.0.0.1:6379", nil)

	identity, err := IdentityService(src)
	require.NoError(t, err)
	require.NoError(t, fx.ValidateApp(identity))

	consumer, err := ConsumerService(src)
	require.NoError(t, err)
	require.NoError(t, fx.ValidateApp(consumer))

	for _, driver := range []string{"mqtt", "sns"} {
		src := newSource("", map[string]any{"bus.driver": driver})
		consumer, err := ConsumerService(src)
		require.NoError(t, err)
		require.NoError(t, fx.ValidateApp(consumer), driver)
	}

	for _, backend := range []string{"redis", "database", "dynamodb"} {
		src := newSource("127.0.0.1:6379", map[string]any{"revocation.backend": backend, "bus.driver": "sns"})
		identity, err := IdentityService(src)
		require.NoError(t, err)
		require.NoError(t, fx.ValidateApp(identity), backend)

		tool, err := RevocationTool(src)
		require.NoError(t, err)
		require.NoError(t, fx.ValidateApp(tool), backend)
	}
}

func TestUnknownDriverIsRejected(t *testing.T) {
	_, err := ConsumerService(newSource("", map[string]any{"bus.driver": "kafka"}))
	require.Error(t, err)
}

func bearerGet(t *testing.T, app *fiber.App, path, credential string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+credential)
	res, err := app.Test(req, fiber.TestConfig{Timeout: 0})
	require.NoError(t, err)
	return res.StatusCode
}

func TestLogoutReachesConsumer(t *testing.T) {
	mr := miniredis.RunT(t)

	var (
		issuer      *token.Issuer
		identityApp *fiber.App
		consumerApp *fiber.App
	)
	identity, err := IdentityService(newSource(mr.Addr(), map[string]any{"validation.service": "identity"}))
	require.NoError(t, err)
	ia := fxtest.New(t, identity, fx.Populate(&issuer, &identityApp))
	ia.RequireStart()
	defer ia.RequireStop()

	consumer, err := ConsumerService(newSource(mr.Addr(), map[string]any{"validation.service": "orders"}))
	require.NoError(t, err)
	ca := fxtest.New(t, consumer, fx.Populate(&consumerApp))
	ca.RequireStart()
	defer ca.RequireStop()

	credential, _, err := issuer.Issue("user-1", "User")
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, bearerGet(t, consumerApp, "/api/orders/me", credential))
	require.Equal(t, fiber.StatusForbidden, bearerGet(t, consumerApp, "/api/orders", credential))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+credential)
	res, err := identityApp.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, res.StatusCode)

	require.Equal(t, fiber.StatusUnauthorized, bearerGet(t, consumerApp, "/api/orders/me", credential))
}
