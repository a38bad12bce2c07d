package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeygenThenIssue(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "keygen", "--out", dir)
	require.NoError(t, err)
	require.Contains(t, out, "kid ")

	info, err := os.Stat(filepath.Join(dir, "private.pem"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfgFile := filepath.Join(dir, "config.toml")
	cfg := "[token]\nalgorithm = \"RS256\"\nprivate_key_file = \"" + filepath.ToSlash(filepath.Join(dir, "private.pem")) + "\"\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(cfg), 0o600))

	out, err = run(t, "--config", cfgFile, "issue", "--subject", "user-9", "--role", "Admin")
	require.NoError(t, err)
	credential := strings.TrimSpace(out)

	pub, err := os.ReadFile(filepath.Join(dir, "public.pem"))
	require.NoError(t, err)
	verifier, err := token.NewVerifier(token.Config{Algorithm: token.AlgRS256, PublicKey: string(pub)})
	require.NoError(t, err)
	claims, err := verifier.Verify(credential)
	require.NoError(t, err)
	require.Equal(t, "user-9", claims.Subject)
	require.Equal(t, "Admin", claims.Role)
}

func TestKeygenRejectsSmallKeys(t *testing.T) {
	_, err := run(t, "keygen", "--bits", "1024", "--out", t.TempDir())
	require.Error(t, err)
}

func TestIssueNeedsSubject(t *testing.T) {
	_, err := run(t, "issue")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "Version")
}
