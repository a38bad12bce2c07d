package token

import (
	"errors"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
)

// Claims is what a credential carries past the protocol: who and in what role.
type Claims struct {
	Subject   string
	Role      string
	ID        string
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type jwtClaims struct {
	Role string `json:"role,omitempty"`
	jwtgo.RegisteredClaims
}

func (c *jwtClaims) claims() Claims {
	out := Claims{
		Subject: c.Subject,
		Role:    c.Role,
		ID:      c.ID,
		Issuer:  c.Issuer,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.UTC()
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.UTC()
	}
	return out
}

var parser = jwtgo.NewParser()

// Inspect decodes the claims without checking the signature or expiry. Only
// use it for bookkeeping on credentials that are never trusted as a result.
func Inspect(credential string) (Claims, error) {
	var c jwtClaims
	if _, _, err := parser.ParseUnverified(credential, &c); err != nil {
		return Claims{}, errors.Join(ErrMalformed, err)
	}
	return c.claims(), nil
}

// ExpiryOf returns the credential's embedded expiry. A credential without
// one is malformed for revocation purposes.
func ExpiryOf(credential string) (time.Time, error) {
	c, err := Inspect(credential)
	if err != nil {
		return time.Time{}, err
	}
	if c.ExpiresAt.IsZero() {
		return time.Time{}, ErrMalformed
	}
	return c.ExpiresAt, nil
}
