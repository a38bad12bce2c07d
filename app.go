// Package tokenbus assembles the issuing and consuming services from the
// module graph. Which optional modules join the graph depends on the loaded
// configuration, so the Source is read before fx starts.
package tokenbus

import (
	"context"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/bus/mqttbus"
	"github.com/bronystylecrazy/tokenbus/bus/redisbus"
	"github.com/bronystylecrazy/tokenbus/bus/snsbus"
	"github.com/bronystylecrazy/tokenbus/caching/rd"
	"github.com/bronystylecrazy/tokenbus/cloud/awscfg"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/database"
	"github.com/bronystylecrazy/tokenbus/gateway"
	"github.com/bronystylecrazy/tokenbus/identity"
	"github.com/bronystylecrazy/tokenbus/log"
	"github.com/bronystylecrazy/tokenbus/otel"
	"github.com/bronystylecrazy/tokenbus/realtime"
	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/authn"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/bronystylecrazy/tokenbus/validation"
	"github.com/bronystylecrazy/tokenbus/web"
	"go.uber.org/fx"
)

// Load reads file (optional) and TOKENBUS_* environment overrides.
func Load(file string) (*config.Source, error) {
	opts := config.DefaultOptions()
	if file != "" {
		opts.File = file
	}
	return config.Load(opts)
}

// plan records which shared backends the selected drivers need, so each
// module joins the graph once.
type plan struct {
	bus        bus.Config
	revocation revocation.Config
}

func newPlan(src *config.Source) (plan, error) {
	var p plan
	var err error
	if p.bus, err = config.Decode[bus.Config](src, "bus"); err != nil {
		return p, err
	}
	if p.revocation, err = config.Decode[revocation.Config](src, "revocation"); err != nil {
		return p, err
	}
	return p, nil
}

func (p plan) needsRedis(issuer bool) bool {
	return p.bus.Driver == bus.DriverRedis || (issuer && p.revocation.Backend == revocation.BackendRedis)
}

func (p plan) needsAWS(issuer bool) bool {
	return p.bus.Driver == bus.DriverSNS || (issuer && p.revocation.Backend == revocation.BackendDynamo)
}

func (p plan) backends(issuer bool) fx.Option {
	opts := make([]fx.Option, 0, 5)
	if p.needsRedis(issuer) {
		opts = append(opts, rd.Module())
	}
	if p.needsAWS(issuer) {
		opts = append(opts, awscfg.Module())
	}
	if issuer {
		opts = append(opts, p.store())
	}
	opts = append(opts, Transport(p.bus.Driver))
	return fx.Options(opts...)
}

// store adds the client module the revocation backend reads from, other than
// the shared redis and aws modules.
func (p plan) store() fx.Option {
	switch p.revocation.Backend {
	case revocation.BackendDatabase:
		return database.Module()
	case revocation.BackendDynamo:
		return revocation.DynamoModule()
	default:
		return fx.Options()
	}
}

// Transport selects the bus driver module. The redis driver expects
// rd.Module in the same graph and the sns driver awscfg.Module.
func Transport(driver string) fx.Option {
	switch driver {
	case bus.DriverMQTT:
		return fx.Options(realtime.Module(), mqttbus.Module())
	case bus.DriverSNS:
		return snsbus.Module()
	default:
		return redisbus.Module()
	}
}

// Base is the ambient stack every process carries. The context it provides
// only bounds exporter setup.
func Base(src *config.Source) fx.Option {
	return fx.Options(
		fx.Supply(src),
		fx.Provide(context.Background),
		log.Module(),
		otel.Module(),
	)
}

// IdentityService issues credentials, answers validation requests and serves
// logout and JWKS over HTTP.
func IdentityService(src *config.Source) (fx.Option, error) {
	p, err := newPlan(src)
	if err != nil {
		return nil, err
	}
	return fx.Options(
		Base(src),
		p.backends(true),
		bus.Module(),
		token.IssuerModule(),
		revocation.Module(),
		validation.Module(),
		validation.ResponderModule(),
		web.Module(),
		identity.Module(),
	), nil
}

// ConsumerService authorizes its own HTTP routes through the bus.
func ConsumerService(src *config.Source) (fx.Option, error) {
	p, err := newPlan(src)
	if err != nil {
		return nil, err
	}
	return fx.Options(
		Base(src),
		p.backends(false),
		bus.Module(),
		token.Module(),
		validation.Module(),
		validation.RequesterModule(),
		authn.Module(),
		web.Module(),
		gateway.Module(),
	), nil
}

// RevocationTool is the graph behind one-shot revocation from the CLI.
func RevocationTool(src *config.Source) (fx.Option, error) {
	p, err := newPlan(src)
	if err != nil {
		return nil, err
	}
	opts := []fx.Option{Base(src), revocation.Module(), p.store()}
	switch p.revocation.Backend {
	case revocation.BackendRedis:
		opts = append(opts, rd.Module())
	case revocation.BackendDynamo:
		opts = append(opts, awscfg.Module())
	}
	return fx.Options(opts...), nil
}

// ValidationTool is a Requester without the HTTP surface.
func ValidationTool(src *config.Source) (fx.Option, error) {
	p, err := newPlan(src)
	if err != nil {
		return nil, err
	}
	return fx.Options(
		Base(src),
		p.backends(false),
		bus.Module(),
		validation.Module(),
		validation.RequesterModule(),
	), nil
}
