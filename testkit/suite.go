// Package testkit starts the real backends behind tokenbus (Redis, Postgres,
// an MQTT broker, SNS/SQS/DynamoDB) in Docker for integration tests.
package testkit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

const IntegrationEnv = "RUN_INTEGRATION_TESTS"

// RequireIntegration skips the test unless RUN_INTEGRATION_TESTS is truthy.
func RequireIntegration(t testing.TB) {
	t.Helper()
	if enabled(os.Getenv(IntegrationEnv)) {
		return
	}
	t.Skipf("skipping integration test; set %s=1 to run", IntegrationEnv)
}

func enabled(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// RequireDocker skips the test when no Docker daemon is reachable.
func RequireDocker(t testing.TB) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker is not available: %v", r)
		}
	}()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		t.Skipf("docker is not available: %v", err)
		return
	}
	_ = provider.Close()
}

// Suite owns the containers of one test. Everything it starts is terminated
// in t.Cleanup.
type Suite struct {
	t   testing.TB
	ctx context.Context
}

// NewSuite applies both gates, so a plain `go test ./...` never touches Docker.
func NewSuite(t testing.TB) *Suite {
	t.Helper()
	RequireIntegration(t)
	RequireDocker(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Suite{t: t, ctx: ctx}
}

func (s *Suite) Context() context.Context {
	return s.ctx
}

func (s *Suite) StartContainer(req testcontainers.ContainerRequest) testcontainers.Container {
	s.t.Helper()

	c, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		s.t.Fatalf("start container %q: %v", req.Image, err)
	}
	s.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = c.Terminate(ctx)
	})
	return c
}

func (s *Suite) Host(c testcontainers.Container) string {
	s.t.Helper()
	host, err := c.Host(s.ctx)
	if err != nil {
		s.t.Fatalf("container host: %v", err)
	}
	return host
}

func (s *Suite) MappedPort(c testcontainers.Container, port string) string {
	s.t.Helper()
	mapped, err := c.MappedPort(s.ctx, nat.Port(port))
	if err != nil {
		s.t.Fatalf("mapped port for %s: %v", port, err)
	}
	return mapped.Port()
}

// Endpoint is "<scheme>://<host>:<mapped port>".
func (s *Suite) Endpoint(c testcontainers.Container, scheme string, port string) string {
	s.t.Helper()
	return fmt.Sprintf("%s://%s:%s", scheme, s.Host(c), s.MappedPort(c, port))
}
