package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/spf13/viper"
)

type sample struct {
	Name    string        `mapstructure:"name" default:"svc"`
	Timeout time.Duration `mapstructure:"timeout" default:"15s"`
	Groups  []string      `mapstructure:"groups"`
	Nested  struct {
		Port int `mapstructure:"port" default:"8080" validate:"gt=0"`
	} `mapstructure:"nested"`
}

func TestDecodeAppliesDefaults(t *testing.T) {
	src := config.FromViper(viper.New())

	got, err := config.Decode[sample](src, "sample")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "svc" {
		t.Fatalf("name got=%q want=%q", got.Name, "svc")
	}
	if got.Timeout != 15*time.Second {
		t.Fatalf("timeout got=%v want=%v", got.Timeout, 15*time.Second)
	}
	if got.Nested.Port != 8080 {
		t.Fatalf("port got=%d want=%d", got.Nested.Port, 8080)
	}
}

func TestDecodeReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[sample]\nname = \"orders\"\ngroups = \"a,b\"\n[sample.nested]\nport = 9000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TOKENBUS_SAMPLE_TIMEOUT", "2s")

	src, err := config.Load(config.Options{File: path, Type: "toml", EnvPrefix: "TOKENBUS"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := config.Decode[sample](src, "sample")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "orders" || got.Nested.Port != 9000 {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.Timeout != 2*time.Second {
		t.Fatalf("env override got=%v want=%v", got.Timeout, 2*time.Second)
	}
	if len(got.Groups) != 2 || got.Groups[1] != "b" {
		t.Fatalf("groups got=%v", got.Groups)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("sample.nested.port", -1)

	if _, err := config.Decode[sample](config.FromViper(v), "sample"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	opts := config.DefaultOptions()
	opts.File = filepath.Join(t.TempDir(), "missing.toml")

	if _, err := config.Load(opts); err != nil {
		t.Fatalf("Load optional: %v", err)
	}
	opts.Optional = false
	if _, err := config.Load(opts); err == nil {
		t.Fatal("expected error for required missing file")
	}
}
