// Copyright 2025 The mrvn authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth validates bearer tokens on the HTTP API.
//
// Two key sources are supported: a JWKS endpoint fetched and cached from an
// identity provider, or a shared HS256 secret for deployments without one.
package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// Claims are the fields extracted from a validated token. Private claims
// beyond email and role land in Custom.
type Claims struct {
	Subject string         `json:"sub"`
	Email   string         `json:"email"`
	Role    string         `json:"role"`
	Custom  map[string]any `json:"-"`
}

// Validator checks token signatures, expiry, and the configured issuer and
// audience claims. Safe for concurrent use.
type Validator struct {
	jwksURL  string
	cache    *jwk.Cache
	key      jwk.Key
	issuer   string
	audience string
}

// NewValidator builds a validator from the auth section of the config.
// In JWKS mode the key set is fetched once up front, so a bad URL fails
// here rather than on the first request, and refreshed in the background
// until ctx is canceled.
func NewValidator(ctx context.Context, cfg config.AuthConfig) (*Validator, error) {
	cfg.SetDefaults()

	v := &Validator{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}

	switch {
	case cfg.Secret != "":
		key, err := jwk.FromRaw([]byte(cfg.Secret))
		if err != nil {
			return nil, fmt.Errorf("failed to build key from secret: %w", err)
		}
		v.key = key

	case cfg.JWKSURL != "":
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
		}
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
		}
		v.jwksURL = cfg.JWKSURL
		v.cache = cache

	default:
		return nil, fmt.Errorf("auth requires a jwks_url or a secret")
	}

	return v, nil
}

// ValidateToken verifies the signature, expiry, and any configured issuer
// and audience, and returns the extracted claims.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParseOption{jwt.WithValidate(true)}

	if v.cache != nil {
		keyset, err := v.cache.Get(ctx, v.jwksURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWKS: %w", err)
		}
		opts = append(opts, jwt.WithKeySet(keyset))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, v.key))
	}

	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}
	for name, value := range token.PrivateClaims() {
		switch name {
		case "email":
			claims.Email, _ = value.(string)
		case "role":
			claims.Role, _ = value.(string)
		default:
			claims.Custom[name] = value
		}
	}
	return claims, nil
}
