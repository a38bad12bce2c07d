package token

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Issuer struct {
	cfg    Config
	method jwtgo.SigningMethod
	key    any
	public *rsa.PublicKey
	kid    string
	now    func() time.Time
}

// NewIssuer fails with ErrMissingKey when no signing material is configured.
func NewIssuer(cfg Config) (*Issuer, error) {
	i := &Issuer{cfg: cfg, kid: cfg.KeyID, now: time.Now}
	switch cfg.algorithm() {
	case AlgRS256:
		raw, err := material(cfg.PrivateKey, cfg.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("%w: RS256 needs a private key", ErrMissingKey)
		}
		key, err := ParsePrivateKey(raw)
		if err != nil {
			return nil, err
		}
		i.method, i.key, i.public = jwtgo.SigningMethodRS256, key, &key.PublicKey
		if i.kid == "" {
			if i.kid, err = Thumbprint(i.public); err != nil {
				return nil, err
			}
		}
	case AlgHS256:
		if strings.TrimSpace(cfg.Secret) == "" {
			return nil, fmt.Errorf("%w: HS256 needs a secret", ErrMissingKey)
		}
		i.method, i.key = jwtgo.SigningMethodHS256, []byte(cfg.Secret)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlg, cfg.Algorithm)
	}
	return i, nil
}

// Issue signs a credential for subject in role.
func (i *Issuer) Issue(subject, role string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrInvalidClaims)
	}
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.cfg.ttl())
	claims := jwtClaims{
		Role: role,
		RegisteredClaims: jwtgo.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwtgo.NewNumericDate(now),
			NotBefore: jwtgo.NewNumericDate(now),
			ExpiresAt: jwtgo.NewNumericDate(expiresAt),
		},
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwtgo.ClaimStrings{i.cfg.Audience}
	}
	t := jwtgo.NewWithClaims(i.method, claims)
	if i.kid != "" {
		t.Header["kid"] = i.kid
	}
	signed, err := t.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verifier returns a verifier for the credentials this issuer signs.
func (i *Issuer) Verifier() *Verifier {
	v := &Verifier{cfg: i.cfg, alg: i.method.Alg(), kid: i.kid, public: i.public}
	if i.public == nil {
		v.key = i.key
	} else {
		v.key = i.public
	}
	return v.init()
}
