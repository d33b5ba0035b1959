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

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

const (
	testIssuer   = "https://issuer.test"
	testAudience = "mrvn-api"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

// newKeyPair returns a private signing key and its public JWKS entry,
// both carrying the key ID the validator matches on.
func newKeyPair(t *testing.T) (jwk.Key, jwk.Key) {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	private, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("FromRaw(private) error = %v", err)
	}
	if err := private.Set(jwk.KeyIDKey, "test-key"); err != nil {
		t.Fatalf("Set(kid) error = %v", err)
	}

	public, err := jwk.FromRaw(&raw.PublicKey)
	if err != nil {
		t.Fatalf("FromRaw(public) error = %v", err)
	}
	if err := public.Set(jwk.KeyIDKey, "test-key"); err != nil {
		t.Fatalf("Set(kid) error = %v", err)
	}
	if err := public.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("Set(alg) error = %v", err)
	}

	return private, public
}

func newJWKSServer(t *testing.T, public jwk.Key) string {
	t.Helper()

	keyset := jwk.NewSet()
	if err := keyset.AddKey(public); err != nil {
		t.Fatalf("AddKey() error = %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(keyset); err != nil {
			t.Errorf("encode JWKS: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	return server.URL + "/.well-known/jwks.json"
}

// signToken builds a token valid for an hour and signs it. Entries in
// claims override the defaults, so tests can expire the token or swap
// the issuer by setting the registered claim directly.
func signToken(t *testing.T, key jwk.Key, alg jwa.SignatureAlgorithm, claims map[string]any) string {
	t.Helper()

	token := jwt.New()
	defaults := map[string]any{
		jwt.IssuerKey:     testIssuer,
		jwt.AudienceKey:   testAudience,
		jwt.SubjectKey:    "user-1",
		jwt.IssuedAtKey:   time.Now(),
		jwt.ExpirationKey: time.Now().Add(time.Hour),
	}
	for name, value := range defaults {
		if err := token.Set(name, value); err != nil {
			t.Fatalf("Set(%s) error = %v", name, err)
		}
	}
	for name, value := range claims {
		if err := token.Set(name, value); err != nil {
			t.Fatalf("Set(%s) error = %v", name, err)
		}
	}

	signed, err := jwt.Sign(token, jwt.WithKey(alg, key))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return string(signed)
}

func newJWKSValidator(t *testing.T, jwksURL string) *Validator {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	v, err := NewValidator(ctx, config.AuthConfig{
		Enabled:  true,
		JWKSURL:  jwksURL,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	return v
}

func TestValidateTokenJWKS(t *testing.T) {
	private, public := newKeyPair(t)
	v := newJWKSValidator(t, newJWKSServer(t, public))

	token := signToken(t, private, jwa.RS256, map[string]any{
		"email": "ada@example.com",
		"role":  "admin",
		"team":  "platform",
	})

	claims, err := v.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-1")
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "ada@example.com")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want %q", claims.Role, "admin")
	}
	if got := claims.Custom["team"]; got != "platform" {
		t.Errorf("Custom[team] = %v, want %q", got, "platform")
	}
	if _, ok := claims.Custom["email"]; ok {
		t.Error("Custom contains email, want it extracted into Claims.Email")
	}
	if len(claims.Custom) != 1 {
		t.Errorf("len(Custom) = %d, want 1 (%v)", len(claims.Custom), claims.Custom)
	}
}

func TestValidateTokenRejections(t *testing.T) {
	private, public := newKeyPair(t)
	otherKey, _ := newKeyPair(t)
	v := newJWKSValidator(t, newJWKSServer(t, public))

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "expired",
			token: signToken(t, private, jwa.RS256, map[string]any{jwt.ExpirationKey: time.Now().Add(-time.Hour)}),
		},
		{
			name:  "wrong issuer",
			token: signToken(t, private, jwa.RS256, map[string]any{jwt.IssuerKey: "https://imposter.test"}),
		},
		{
			name:  "wrong audience",
			token: signToken(t, private, jwa.RS256, map[string]any{jwt.AudienceKey: "other-api"}),
		},
		{
			name:  "wrong signing key",
			token: signToken(t, otherKey, jwa.RS256, nil),
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.ValidateToken(context.Background(), tt.token); err == nil {
				t.Error("ValidateToken() error = nil, want rejection")
			}
		})
	}
}

func TestValidateTokenSkipsUnsetIssuerAndAudience(t *testing.T) {
	private, public := newKeyPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	v, err := NewValidator(ctx, config.AuthConfig{
		Enabled: true,
		JWKSURL: newJWKSServer(t, public),
	})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	token := signToken(t, private, jwa.RS256, map[string]any{
		jwt.IssuerKey:   "https://anyone.test",
		jwt.AudienceKey: "anything",
	})
	if _, err := v.ValidateToken(context.Background(), token); err != nil {
		t.Fatalf("ValidateToken() error = %v, want issuer and audience unchecked", err)
	}
}

func TestValidatorSecretMode(t *testing.T) {
	v, err := NewValidator(context.Background(), config.AuthConfig{Enabled: true, Secret: testSecret})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	key, err := jwk.FromRaw([]byte(testSecret))
	if err != nil {
		t.Fatalf("FromRaw() error = %v", err)
	}
	claims, err := v.ValidateToken(context.Background(), signToken(t, key, jwa.HS256, map[string]any{"role": "viewer"}))
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Role != "viewer" {
		t.Errorf("Role = %q, want %q", claims.Role, "viewer")
	}

	wrongKey, err := jwk.FromRaw([]byte("another-secret-another-secret-ok"))
	if err != nil {
		t.Fatalf("FromRaw() error = %v", err)
	}
	if _, err := v.ValidateToken(context.Background(), signToken(t, wrongKey, jwa.HS256, nil)); err == nil {
		t.Error("ValidateToken() error = nil, want signature rejection")
	}
}

func TestNewValidatorRequiresKeySource(t *testing.T) {
	if _, err := NewValidator(context.Background(), config.AuthConfig{Enabled: true}); err == nil {
		t.Error("NewValidator() error = nil, want error without jwks_url or secret")
	}
}

func TestNewValidatorBadJWKSURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if _, err := NewValidator(ctx, config.AuthConfig{Enabled: true, JWKSURL: server.URL}); err == nil {
		t.Error("NewValidator() error = nil, want initial fetch failure")
	}
}

func TestMiddleware(t *testing.T) {
	v, err := NewValidator(context.Background(), config.AuthConfig{Enabled: true, Secret: testSecret})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	key, err := jwk.FromRaw([]byte(testSecret))
	if err != nil {
		t.Fatalf("FromRaw() error = %v", err)
	}

	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		if claims == nil || claims.Subject != "user-1" {
			t.Errorf("GetClaims() = %+v, want subject user-1", claims)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Missing Authorization header",
		},
		{
			name:       "wrong scheme",
			header:     "Token abc",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid Authorization format",
		},
		{
			name:       "invalid token",
			header:     "Bearer not.a.token",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Unauthorized:",
		},
		{
			name:       "valid token",
			header:     "Bearer " + signToken(t, key, jwa.HS256, nil),
			wantStatus: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestClaimsFromContextMissing(t *testing.T) {
	if got := ClaimsFromContext(context.Background()); got != nil {
		t.Errorf("ClaimsFromContext() = %+v, want nil", got)
	}
}
