package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bronystylecrazy/tokenbus"
	"github.com/bronystylecrazy/tokenbus/build"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

type globals struct {
	configFile string
}

func (g *globals) source() (*config.Source, error) {
	return tokenbus.Load(g.configFile)
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          build.Name,
		Short:        "Credential validation over a message bus",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "config.toml", "config file (optional)")

	for _, c := range []interface{ Command() *cobra.Command }{
		newServeCommand(g, "identity", "Run the issuing service: validation responder, logout and JWKS", tokenbus.IdentityService),
		newServeCommand(g, "gateway", "Run a consuming service that authorizes through the bus", tokenbus.ConsumerService),
		newIssueCommand(g),
		newRevokeCommand(g),
		newValidateCommand(g),
		newKeygenCommand(),
		newVersionCommand(),
		newHealthcheckCommand(),
	} {
		root.AddCommand(c.Command())
	}
	return root
}

type serveCommand struct {
	g     *globals
	use   string
	short string
	graph func(*config.Source) (fx.Option, error)
}

func newServeCommand(g *globals, use, short string, graph func(*config.Source) (fx.Option, error)) *serveCommand {
	return &serveCommand{g: g, use: use, short: short, graph: graph}
}

func (s *serveCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   s.use,
		Short: s.short,
		Args:  cobra.NoArgs,
		RunE:  s.Run,
	}
}

func (s *serveCommand) Run(cmd *cobra.Command, _ []string) error {
	src, err := s.g.source()
	if err != nil {
		return err
	}
	graph, err := s.graph(src)
	if err != nil {
		return err
	}
	app := fx.New(graph)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

// oneShot starts graph, runs fn against the populated targets and stops.
func oneShot(ctx context.Context, graph fx.Option, fn func(context.Context) error, targets ...any) error {
	app := fx.New(graph, fx.Populate(targets...))
	if err := app.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("stop: %w", err)
	}
	return runErr
}
