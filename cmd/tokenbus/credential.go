package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bronystylecrazy/tokenbus"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/bronystylecrazy/tokenbus/validation"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("credential rejected")

type issueCommand struct {
	g       *globals
	subject string
	role    string
}

func newIssueCommand(g *globals) *issueCommand {
	return &issueCommand{g: g}
}

func (s *issueCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "issue",
		Short: "Mint a credential with the configured signing key",
		Args:  cobra.NoArgs,
		RunE:  s.Run,
	}
	c.Flags().StringVar(&s.subject, "subject", "", "subject identifier")
	c.Flags().StringVar(&s.role, "role", "User", "role claim")
	_ = c.MarkFlagRequired("subject")
	return c
}

func (s *issueCommand) Run(cmd *cobra.Command, _ []string) error {
	src, err := s.g.source()
	if err != nil {
		return err
	}
	cfg, err := config.Decode[token.Config](src, "token")
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer(cfg)
	if err != nil {
		return err
	}
	credential, expiresAt, err := issuer.Issue(s.subject, s.role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), credential)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s (%s)\n", humanize.Time(expiresAt), expiresAt.Format(time.RFC3339))
	return nil
}

type revokeCommand struct {
	g *globals
}

func newRevokeCommand(g *globals) *revokeCommand {
	return &revokeCommand{g: g}
}

func (s *revokeCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <credential>",
		Short: "Revoke a credential in the configured revocation store",
		Args:  cobra.ExactArgs(1),
		RunE:  s.Run,
	}
}

func (s *revokeCommand) Run(cmd *cobra.Command, args []string) error {
	src, err := s.g.source()
	if err != nil {
		return err
	}
	graph, err := tokenbus.RevocationTool(src)
	if err != nil {
		return err
	}
	var store revocation.Store
	return oneShot(cmd.Context(), graph, func(ctx context.Context) error {
		if err := store.Revoke(ctx, args[0]); err != nil {
			return err
		}
		expiresAt, _ := token.ExpiryOf(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "revoked; record kept until %s\n", humanize.Time(expiresAt))
		return nil
	}, &store)
}

type validateCommand struct {
	g *globals
}

func newValidateCommand(g *globals) *validateCommand {
	return &validateCommand{g: g}
}

func (s *validateCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <credential>",
		Short: "Ask the issuing service about a credential over the bus",
		Args:  cobra.ExactArgs(1),
		RunE:  s.Run,
	}
}

func (s *validateCommand) Run(cmd *cobra.Command, args []string) error {
	src, err := s.g.source()
	if err != nil {
		return err
	}
	graph, err := tokenbus.ValidationTool(src)
	if err != nil {
		return err
	}
	var requester *validation.Requester
	return oneShot(cmd.Context(), graph, func(ctx context.Context) error {
		started := time.Now()
		o := requester.Validate(ctx, args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s (subject=%q role=%q, %s)\n", o.Status, o.SubjectID, o.Role, time.Since(started).Round(time.Millisecond))
		if !o.Valid {
			return errRejected
		}
		return nil
	}, &requester)
}
