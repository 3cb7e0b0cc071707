// Package token verifies the bearer credentials clients present when opening
// an API request or a realtime connection.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification failure: missing bearer
// prefix, bad signature, malformed claims, wrong app id. Callers never learn
// which check failed.
var ErrInvalidToken = errors.New("invalid token provided")

// appClaims extends jwt.RegisteredClaims with the application claim issued by
// the identity provider.
type appClaims struct {
	jwt.RegisteredClaims
	AppID string `json:"appId"`
}

// Verifier validates bearer tokens and extracts the subject. It is stateless
// apart from an optional JWKS cache and safe for concurrent use.
type Verifier struct {
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	appID   string
	methods []string
}

// NewVerifier creates a verifier for HMAC-signed tokens using a shared secret.
func NewVerifier(secret []byte, appID string) *Verifier {
	return &Verifier{
		keyFunc: func(*jwt.Token) (interface{}, error) { return secret, nil },
		appID:   appID,
		methods: []string{"HS256", "HS384", "HS512"},
	}
}

// NewJWKSVerifier creates a verifier that fetches and caches signing keys from
// a JWKS endpoint, for deployments where tokens are issued by an external IdP.
func NewJWKSVerifier(jwksURL, appID string) (*Verifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:                 context.Background(),
		RefreshInterval:     5 * time.Minute,
		RefreshRateLimit:    1 * time.Minute,
		RefreshUnknownKID:   true,
		RefreshErrorHandler: func(err error) { slog.Error("JWKS refresh error", "error", err) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return &Verifier{
		keyFunc: jwks.Keyfunc,
		jwks:    jwks,
		appID:   appID,
		methods: []string{"RS256", "RS384", "RS512", "ES256"},
	}, nil
}

// Close shuts down the JWKS background refresh goroutine, if any.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// ExtractBearer pulls the credential out of an Authorization header value.
// Absence or a wrong prefix is ErrInvalidToken.
func ExtractBearer(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrInvalidToken
	}
	return header[len(prefix):], nil
}

// Verify checks the credential's signature and app claim and returns the
// subject id. Any failure collapses to ErrInvalidToken.
func (v *Verifier) Verify(credential string) (string, error) {
	claims := &appClaims{}
	parsed, err := jwt.ParseWithClaims(credential, claims, v.keyFunc,
		jwt.WithValidMethods(v.methods),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.AppID != v.appID || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
