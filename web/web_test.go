package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

func newTestApp(handlers ...Handler) *fiber.App {
	app := NewFiberApp(Config{Name: "test"}, zap.NewNop())
	SetupHandlers(setupHandlersIn{App: app, Handlers: handlers})
	return app
}

func decodeError(t *testing.T, body []byte) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return e
}

func TestHealth(t *testing.T) {
	app := newTestApp(NewHealthHandler(), NewRequestTelemetry(zap.NewNop()))
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status got=%d", resp.StatusCode)
	}
}

func TestErrorHandlerShapes(t *testing.T) {
	app := newTestApp(HandlerFunc(func(r fiber.Router) {
		r.Get("/boom", func(fiber.Ctx) error { return errors.New("secret detail") })
		r.Get("/deny", func(c fiber.Ctx) error { return Forbidden(c, "") })
	}))

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/boom", fiber.StatusInternalServerError, "INTERNAL"},
		{"/missing", fiber.StatusNotFound, "NOT_FOUND"},
		{"/deny", fiber.StatusForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: status got=%d want=%d", tc.path, resp.StatusCode, tc.status)
		}
		body, _ := io.ReadAll(resp.Body)
		e := decodeError(t, body)
		if e.Error.Code != tc.code {
			t.Fatalf("%s: code got=%q want=%q", tc.path, e.Error.Code, tc.code)
		}
		if e.Error.Message == "secret detail" {
			t.Fatalf("%s: internal error leaked", tc.path)
		}
	}
}

type ordered struct {
	name  string
	prio  int
	trace *[]string
}

func (o ordered) Priority() int { return o.prio }
func (o ordered) Handle(fiber.Router) {
	*o.trace = append(*o.trace, o.name)
}

func TestSetupHandlersOrdersByPriority(t *testing.T) {
	var trace []string
	newTestApp(
		ordered{"late", Latest, &trace},
		ordered{"early", Earliest, &trace},
		HandlerFunc(func(fiber.Router) { trace = append(trace, "normal") }),
	)
	want := []string{"early", "normal", "late"}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("order got=%v want=%v", trace, want)
		}
	}
}
