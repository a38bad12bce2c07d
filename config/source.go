package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Options describe where configuration is read from.
type Options struct {
	File      string
	Type      string
	EnvPrefix string
	Optional  bool
}

func DefaultOptions() Options {
	return Options{
		File:      "config.toml",
		Type:      "toml",
		EnvPrefix: "TOKENBUS",
		Optional:  true,
	}
}

// Source is the process-wide configuration backing store. Every typed config
// section is decoded from the same Source.
type Source struct {
	v *viper.Viper

	mu       sync.Mutex
	watchers []func(*viper.Viper)
	watching bool
}

func Load(opts Options) (*Source, error) {
	v := viper.New()
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if opts.Type != "" {
		v.SetConfigType(opts.Type)
	}
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			if !opts.Optional || !isNotFound(err) {
				return nil, fmt.Errorf("config: read %s: %w", opts.File, err)
			}
		}
	}
	return &Source{v: v}, nil
}

// FromViper wraps an already populated viper instance, mostly for tests.
func FromViper(v *viper.Viper) *Source {
	return &Source{v: v}
}

func (s *Source) Viper() *viper.Viper {
	return s.v
}

// Set overrides a single key. Values set this way win over file and env.
func (s *Source) Set(key string, value any) {
	s.v.Set(key, value)
}

// OnChange registers fn to be called after the config file changes on disk.
// The file watch starts with the first registration.
func (s *Source) OnChange(fn func(*viper.Viper)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
	if s.watching || s.v.ConfigFileUsed() == "" {
		return
	}
	s.watching = true
	s.v.OnConfigChange(func(fsnotify.Event) {
		s.mu.Lock()
		watchers := append([]func(*viper.Viper){}, s.watchers...)
		s.mu.Unlock()
		for _, w := range watchers {
			w(s.v)
		}
	})
	s.v.WatchConfig()
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	// SetConfigFile bypasses the search path, so a missing file surfaces as a
	// plain fs error instead of ConfigFileNotFoundError.
	return errors.Is(err, fs.ErrNotExist)
}
