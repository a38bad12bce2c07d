package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

type Verifier struct {
	cfg    Config
	alg    string
	key    any
	kid    string
	public *rsa.PublicKey
	parser *jwtgo.Parser
}

// NewVerifier builds a verifier from static key material. For RS256 a public
// key is preferred; a private key is accepted and its public half used.
func NewVerifier(cfg Config) (*Verifier, error) {
	v := &Verifier{cfg: cfg, alg: cfg.algorithm(), kid: cfg.KeyID}
	switch v.alg {
	case AlgRS256:
		pub, err := publicKeyFrom(cfg)
		if err != nil {
			return nil, err
		}
		v.key, v.public = pub, pub
		if v.kid == "" {
			if v.kid, err = Thumbprint(pub); err != nil {
				return nil, err
			}
		}
	case AlgHS256:
		if strings.TrimSpace(cfg.Secret) == "" {
			return nil, fmt.Errorf("%w: HS256 needs a secret", ErrMissingKey)
		}
		v.key = []byte(cfg.Secret)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlg, cfg.Algorithm)
	}
	return v.init(), nil
}

func publicKeyFrom(cfg Config) (*rsa.PublicKey, error) {
	raw, err := material(cfg.PublicKey, cfg.PublicKeyFile)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) != "" {
		return ParsePublicKey(raw)
	}
	raw, err = material(cfg.PrivateKey, cfg.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: RS256 needs a public key", ErrMissingKey)
	}
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// FetchVerifier builds an RS256 verifier from the first RSA signing key
// published at url.
func FetchVerifier(ctx context.Context, cfg Config, url string) (*Verifier, error) {
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrMissingKey, url, err)
	}
	for it := set.Keys(ctx); it.Next(ctx); {
		key := it.Pair().Value.(jwk.Key)
		if key.KeyType() != jwa.RSA {
			continue
		}
		var pub rsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		v := &Verifier{cfg: cfg, alg: AlgRS256, key: &pub, public: &pub, kid: key.KeyID()}
		return v.init(), nil
	}
	return nil, fmt.Errorf("%w: no RSA key at %s", ErrMissingKey, url)
}

func (v *Verifier) init() *Verifier {
	v.parser = jwtgo.NewParser(v.options()...)
	return v
}

func (v *Verifier) options() []jwtgo.ParserOption {
	opts := []jwtgo.ParserOption{
		jwtgo.WithValidMethods([]string{v.alg}),
		jwtgo.WithExpirationRequired(),
		jwtgo.WithLeeway(v.cfg.Leeway),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwtgo.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwtgo.WithAudience(v.cfg.Audience))
	}
	return opts
}

// Keyfunc resolves the verification key for a parsed token. It also serves
// HTTP middlewares that parse credentials themselves.
func (v *Verifier) Keyfunc(t *jwtgo.Token) (any, error) {
	if t.Method == nil || t.Method.Alg() != v.alg {
		return nil, fmt.Errorf("%w: alg %v", ErrSignatureInvalid, t.Header["alg"])
	}
	return v.key, nil
}

// Verify checks signature, expiry, issuer and audience and maps every
// failure onto one of ErrMalformed, ErrExpired, ErrSignatureInvalid or
// ErrInvalidClaims.
func (v *Verifier) Verify(credential string) (Claims, error) {
	var c jwtClaims
	_, err := v.parser.ParseWithClaims(credential, &c, v.Keyfunc)
	if err != nil {
		return Claims{}, classify(err)
	}
	if c.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	return c.claims(), nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtgo.ErrTokenMalformed):
		return errors.Join(ErrMalformed, err)
	case errors.Is(err, jwtgo.ErrTokenExpired):
		return errors.Join(ErrExpired, err)
	case errors.Is(err, jwtgo.ErrTokenSignatureInvalid),
		errors.Is(err, jwtgo.ErrTokenUnverifiable),
		errors.Is(err, ErrSignatureInvalid):
		return errors.Join(ErrSignatureInvalid, err)
	default:
		return errors.Join(ErrInvalidClaims, err)
	}
}

func (v *Verifier) Algorithm() string { return v.alg }

// JWKS publishes the RSA verification key. HS256 secrets are never
// published, so the set is empty.
func (v *Verifier) JWKS() (jwk.Set, error) {
	set := jwk.NewSet()
	if v.public == nil {
		return set, nil
	}
	key, err := jwk.FromRaw(v.public)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, v.kid); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return set, nil
}
