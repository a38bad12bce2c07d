package realtime

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bronystylecrazy/tokenbus/build"
	usmqtt "github.com/bronystylecrazy/tokenbus/realtime/mqtt"
	"github.com/google/uuid"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func NewBroker(cfg Config, slogger *slog.Logger, log *zap.Logger) (usmqtt.Broker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeEmbedded:
		return NewEmbedded(cfg.Listener, slogger)
	case ModeExternal:
		tlsCfg, err := cfg.Broker.TLS.Load()
		if err != nil {
			return nil, err
		}
		clientID := strings.TrimSpace(cfg.Broker.ClientID)
		if clientID == "" {
			clientID = defaultClientID()
		}
		return usmqtt.NewClient(usmqtt.ClientConfig{
			Endpoint:       cfg.Broker.Endpoint,
			ClientID:       clientID,
			Username:       cfg.Broker.Username,
			Password:       cfg.Broker.Password,
			CleanSession:   cfg.Broker.CleanSession,
			Keepalive:      cfg.Broker.Keepalive,
			ConnectTimeout: cfg.Broker.ConnectTimeout,
			TLSConfig:      tlsCfg,
		}, log)
	default:
		return nil, fmt.Errorf("realtime: invalid broker mode %q (allowed: %q, %q)", cfg.Mode, ModeEmbedded, ModeExternal)
	}
}

// NewEmbedded builds the in-process broker with its auth hook and TCP listener.
func NewEmbedded(cfg ListenerConfig, slogger *slog.Logger) (*usmqtt.Server, error) {
	server := usmqtt.NewServer(slogger)
	var hook mqtt.Hook = new(auth.AllowHook)
	var hookCfg any
	if cfg.Username != "" {
		hook = new(auth.Hook)
		hookCfg = &auth.Options{Ledger: &auth.Ledger{
			Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
		}}
	}
	err := AppendHooks(server, hookCfg, hook)
	if cfg.Address != "" {
		err = multierr.Append(err, AppendListeners(server, listeners.NewTCP(listeners.Config{ID: cfg.ID, Address: cfg.Address})))
	}
	if err != nil {
		return nil, err
	}
	return server, nil
}

func AppendHooks(ms *usmqtt.Server, config any, hooks ...mqtt.Hook) error {
	var err error
	for _, hook := range hooks {
		err = multierr.Append(err, ms.AddHook(hook, config))
	}
	return err
}

func AppendListeners(ms *usmqtt.Server, ls ...listeners.Listener) error {
	var err error
	for _, l := range ls {
		err = multierr.Append(err, ms.AddListener(l))
	}
	return err
}

var invalidClientIDRunes = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func defaultClientID() string {
	base := strings.Trim(invalidClientIDRunes.ReplaceAllString(build.Name, "-"), "-")
	if base == "" {
		base = "tokenbus"
	}
	return base + "-" + uuid.NewString()
}
