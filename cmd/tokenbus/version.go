package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bronystylecrazy/tokenbus/build"
	"github.com/spf13/cobra"
)

type versionCommand struct{}

func newVersionCommand() *versionCommand {
	return &versionCommand{}
}

func (s *versionCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Args:  cobra.NoArgs,
		RunE:  s.Run,
	}
}

func (s *versionCommand) Run(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(
		cmd.OutOrStdout(),
		"%s\n  Version   %s\n  Commit    %s\n  BuildDate %s\n  Mode      %s\n",
		build.Name,
		build.Version,
		build.Commit,
		build.BuildDate,
		build.Mode,
	)
	return err
}

const defaultHealthcheckURL = "http://127.0.0.1:8080/healthz"

type healthcheckCommand struct {
	url     string
	timeout time.Duration
}

func newHealthcheckCommand() *healthcheckCommand {
	return &healthcheckCommand{}
}

func (s *healthcheckCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the HTTP health endpoint and exit non-zero when unhealthy",
		Args:  cobra.NoArgs,
		RunE:  s.Run,
	}
	c.Flags().StringVar(&s.url, "url", defaultHealthcheckURL, "health endpoint URL")
	c.Flags().DurationVar(&s.timeout, "timeout", 3*time.Second, "request timeout")
	return c
}

func (s *healthcheckCommand) Run(cmd *cobra.Command, _ []string) error {
	if s.timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return err
}
