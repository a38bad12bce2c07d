package testkit

import (
	"fmt"
	"net/url"
	"time"

	"github.com/bronystylecrazy/tokenbus/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultPostgresImage          = "postgres:17-alpine"
	defaultPostgresPort           = "5432/tcp"
	defaultPostgresUser           = "tokenbus"
	defaultPostgresPassword       = "tokenbus"
	defaultPostgresDB             = "tokenbus"
	defaultPostgresStartupTimeout = 2 * time.Minute
)

type PostgresOptions struct {
	Image          string
	Username       string
	Password       string
	Database       string
	StartupTimeout time.Duration
}

type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	Username  string
	Password  string
	Database  string
}

// StartPostgres starts an empty PostgreSQL server. Point database.Migrate at
// Config() to create the revoked_credentials table.
func (s *Suite) StartPostgres(opts PostgresOptions) *PostgresContainer {
	s.t.Helper()

	opts = withPostgresDefaults(opts)

	c := s.StartContainer(testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{defaultPostgresPort},
		Env: map[string]string{
			"POSTGRES_USER":     opts.Username,
			"POSTGRES_PASSWORD": opts.Password,
			"POSTGRES_DB":       opts.Database,
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(defaultPostgresPort),
		).WithDeadline(opts.StartupTimeout),
	})

	return &PostgresContainer{
		Container: c,
		Host:      s.Host(c),
		Port:      s.MappedPort(c, defaultPostgresPort),
		Username:  opts.Username,
		Password:  opts.Password,
		Database:  opts.Database,
	}
}

// URL has sslmode disabled.
func (c *PostgresContainer) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.PathEscape(c.Database),
	)
}

// Config is a db section for the container with migrations enabled.
func (c *PostgresContainer) Config() database.Config {
	return database.Config{Dialect: "postgres", Datasource: c.URL(), Migrate: true}
}

func withPostgresDefaults(opts PostgresOptions) PostgresOptions {
	if opts.Image == "" {
		opts.Image = defaultPostgresImage
	}
	if opts.Username == "" {
		opts.Username = defaultPostgresUser
	}
	if opts.Password == "" {
		opts.Password = defaultPostgresPassword
	}
	if opts.Database == "" {
		opts.Database = defaultPostgresDB
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultPostgresStartupTimeout
	}
	return opts
}
