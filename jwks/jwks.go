// Package jwks provides a signature-verifying portal.TokenDecoder.
//
// RSA public keys are fetched from a JWKS endpoint (RFC 7517) and cached;
// tokens must be RS256-signed by one of them. Claims are mapped exactly like
// token.Unverified, so the two decoders are interchangeable in session.Manager.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/token"
	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshInterval is how long fetched keys are trusted before a refetch.
const DefaultRefreshInterval = time.Hour

// Verifier decodes tokens after checking their signature against a key set.
type Verifier struct {
	url             string
	httpClient      *http.Client
	refreshInterval time.Duration
	logger          *slog.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

var _ portal.TokenDecoder = (*Verifier)(nil)

// Option configures the Verifier.
type Option func(*Verifier)

// WithHTTPClient sets the client used to fetch the key set.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.httpClient = c }
}

// WithRefreshInterval sets how often cached keys are refetched.
func WithRefreshInterval(d time.Duration) Option {
	return func(v *Verifier) { v.refreshInterval = d }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a verifier for the key set published at url.
func New(url string, opts ...Option) *Verifier {
	v := &Verifier{
		url:             url,
		httpClient:      http.DefaultClient,
		refreshInterval: DefaultRefreshInterval,
		logger:          slog.Default(),
		keys:            make(map[string]*rsa.PublicKey),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Decode verifies raw and returns its claims. Expired tokens are rejected.
func (v *Verifier) Decode(ctx context.Context, raw string) (*portal.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)

	mc := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(raw, mc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("portal/jwks: %w", err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("portal/jwks: invalid token")
	}
	c, err := token.FromMap(mc)
	if err != nil {
		return nil, fmt.Errorf("portal/jwks: %w", err)
	}
	return c, nil
}

// key returns the public key for kid, refetching on a miss or a stale cache.
func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	k, found := v.keys[kid]
	stale := time.Since(v.fetchedAt) > v.refreshInterval
	v.mu.RUnlock()

	if found && !stale {
		return k, nil
	}

	if err := v.refresh(ctx); err != nil {
		if found {
			v.logger.Warn("portal/jwks: refresh failed, using cached key", "kid", kid, "error", err)
			return k, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	if kid == "" && len(v.keys) == 1 {
		for _, k := range v.keys {
			return k, nil
		}
	}
	return nil, fmt.Errorf("portal/jwks: no key for kid %q", kid)
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return fmt.Errorf("portal/jwks: create request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("portal/jwks: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("portal/jwks: fetch returned status %d", resp.StatusCode)
	}

	var set keySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("portal/jwks: decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.publicKey()
		if err != nil {
			v.logger.Warn("portal/jwks: skipping malformed key", "kid", jwk.Kid, "error", err)
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("portal/jwks: no RSA signing keys in set")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

type keySet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}
