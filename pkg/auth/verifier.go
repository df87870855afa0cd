// Package auth identifies the user behind a sign-in request.
package auth

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/sync/singleflight"
)

const clockSkew = 30 * time.Second

// Verifier checks a raw JWT and returns its parsed form.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (jwt.Token, error)
}

type keySet struct {
	set       jwk.Set
	fetchedAt time.Time
}

// JWTVerifier verifies tokens against the keys published at a JWKS endpoint.
// The key set is refetched at most once per minInterval; concurrent refreshes share one fetch
// and a failed refresh keeps serving the previous keys.
type JWTVerifier struct {
	cfg   config.IdP
	fetch func(ctx context.Context, url string) (jwk.Set, error)
	now   func() time.Time

	keys    atomic.Pointer[keySet]
	refresh singleflight.Group
}

// NewJWTVerifier fetches the key set once and fails when it cannot.
func NewJWTVerifier(ctx context.Context, cfg config.IdP) (*JWTVerifier, error) {
	return newJWTVerifier(ctx, cfg, func(ctx context.Context, url string) (jwk.Set, error) {
		return jwk.Fetch(ctx, url)
	})
}

func newJWTVerifier(ctx context.Context, cfg config.IdP,
	fetch func(ctx context.Context, url string) (jwk.Set, error)) (*JWTVerifier, error) {
	v := &JWTVerifier{cfg: cfg, fetch: fetch, now: time.Now}
	if _, err := v.keySet(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch failed: %w", err)
	}
	return v, nil
}

func (v *JWTVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	cached := v.keys.Load()
	if cached != nil && v.now().Sub(cached.fetchedAt) < v.cfg.MinInterval {
		return cached.set, nil
	}

	res, err, _ := v.refresh.Do(v.cfg.JwksURL, func() (any, error) {
		set, err := v.fetch(ctx, v.cfg.JwksURL)
		if err != nil {
			return nil, err
		}
		v.keys.Store(&keySet{set: set, fetchedAt: v.now()})
		return set, nil
	})
	if err != nil {
		if cached != nil {
			return cached.set, nil
		}
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", v.cfg.JwksURL, err)
	}
	return res.(jwk.Set), nil
}

// Verify checks the signature, the time claims, the issuer and the authorized party of the
// token, and its audience when one is configured.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (jwt.Token, error) {
	set, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithClaimValue("azp", v.cfg.ClientID),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return token, nil
}
