package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type keygenCommand struct {
	bits int
	out  string
}

func newKeygenCommand() *keygenCommand {
	return &keygenCommand{}
}

func (s *keygenCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "keygen",
		Short: "Write an RSA signing key pair as private.pem and public.pem",
		Args:  cobra.NoArgs,
		RunE:  s.Run,
	}
	c.Flags().IntVar(&s.bits, "bits", 2048, "RSA modulus size")
	c.Flags().StringVar(&s.out, "out", ".", "output directory")
	return c
}

func (s *keygenCommand) Run(cmd *cobra.Command, _ []string) error {
	if s.bits < 2048 {
		return fmt.Errorf("keygen: %d bits is too small", s.bits)
	}
	privatePEM, publicPEM, err := token.GenerateKeyPair(s.bits)
	if err != nil {
		return err
	}
	pub, err := token.ParsePublicKey(string(publicPEM))
	if err != nil {
		return err
	}
	kid, err := token.Thumbprint(pub)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.out, 0o755); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{"private.pem", privatePEM, 0o600},
		{"public.pem", publicPEM, 0o644},
	} {
		path := filepath.Join(s.out, f.name)
		if err := os.WriteFile(path, f.data, f.perm); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(f.data))))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "kid %s\n", kid)
	return nil
}
