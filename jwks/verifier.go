// Package jwks verifies access tokens against a remote JSON Web Key Set, for
// services that trust tokens minted by another faculty-auth instance.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/faculty-auth/services"
	"github.com/upb/faculty-auth/tokens"
	"go.uber.org/zap"
)

// ErrJWKSFetchFailed is returned when the key set cannot be retrieved
var ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")

// Config holds configuration for Verifier
type Config struct {
	URL         string
	Issuer      string
	Audience    string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	// MinRefreshInterval is the least time between two fetch attempts,
	// successful or not
	MinRefreshInterval time.Duration
}

// Verifier validates RS256 tokens with keys fetched from a JWKS endpoint
type Verifier struct {
	url        string
	issuer     string
	audience   string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	cacheMu      sync.RWMutex
	keys         map[string]*rsa.PublicKey
	cacheExp     time.Time
	lastFetch    time.Time
	lastAttempt  time.Time
	cacheTTL     time.Duration
	minRefreshIv time.Duration
}

// NewVerifier creates a Verifier. Keys are fetched lazily.
func NewVerifier(cfg Config, logger *zap.Logger) *Verifier {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 1 * time.Hour
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MinRefreshInterval == 0 {
		cfg.MinRefreshInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		url:          cfg.URL,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		logger:       logger,
		now:          time.Now,
		keys:         make(map[string]*rsa.PublicKey),
		cacheTTL:     cfg.CacheTTL,
		minRefreshIv: cfg.MinRefreshInterval,
	}
}

// Validate verifies tokenString with the same rules as tokens.Issuer. Every
// failure is reported as services.ErrInvalidToken.
func (v *Verifier) Validate(ctx context.Context, tokenString string) (*tokens.Claims, error) {
	claims, err := tokens.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("kid header not found")
		}
		return v.publicKey(ctx, kid)
	}, tokens.Rules{Issuer: v.issuer, Audience: v.audience, Now: v.now})
	if err != nil {
		v.logger.Debug("access token rejected", zap.Error(err))
		return nil, services.Wrap(services.ErrInvalidToken, err)
	}
	return claims, nil
}

// FetchJWKS downloads the key set and replaces the cache with its RSA
// signing keys.
func (v *Verifier) FetchJWKS(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if jwk.Algorithm != "" && jwk.Algorithm != tokens.Algorithm {
			continue
		}
		pub, ok := jwk.Key.(*rsa.PublicKey)
		if !ok {
			continue
		}
		keys[jwk.KeyID] = pub
	}

	now := v.now()
	v.cacheMu.Lock()
	v.keys = keys
	v.cacheExp = now.Add(v.cacheTTL)
	v.lastFetch = now
	v.cacheMu.Unlock()

	v.logger.Debug("jwks refreshed", zap.String("url", v.url), zap.Int("keys", len(keys)))
	return &set, nil
}

// publicKey returns the cached key for kid. A missing or expired key
// triggers a refetch, at most every MinRefreshInterval whether or not the
// previous attempt succeeded. While the endpoint is failing an expired key is
// still served.
func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := v.now()

	v.cacheMu.RLock()
	key, found := v.keys[kid]
	fresh := now.Before(v.cacheExp)
	v.cacheMu.RUnlock()

	if found && fresh {
		return key, nil
	}
	if !v.claimRefetch(now) {
		if found {
			return key, nil
		}
		return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
	}

	if _, err := v.FetchJWKS(ctx); err != nil {
		if found {
			v.logger.Warn("jwks refresh failed, using expired key",
				zap.String("kid", kid),
				zap.Error(err),
			)
			return key, nil
		}
		return nil, err
	}

	v.cacheMu.RLock()
	defer v.cacheMu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
}

// claimRefetch records a fetch attempt at now unless one happened within
// MinRefreshInterval. Concurrent callers see at most one true.
func (v *Verifier) claimRefetch(now time.Time) bool {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	if !v.lastAttempt.IsZero() && now.Sub(v.lastAttempt) < v.minRefreshIv {
		return false
	}
	v.lastAttempt = now
	return true
}

// CacheStats describes the cached key set
type CacheStats struct {
	Keys        int
	ExpiresAt   time.Time
	LastFetch   time.Time
	LastAttempt time.Time
}

// GetCacheStats returns cache statistics
func (v *Verifier) GetCacheStats() CacheStats {
	v.cacheMu.RLock()
	defer v.cacheMu.RUnlock()

	return CacheStats{
		Keys:        len(v.keys),
		ExpiresAt:   v.cacheExp,
		LastFetch:   v.lastFetch,
		LastAttempt: v.lastAttempt,
	}
}

// Ready reports whether tokens can be verified. An empty cache is filled
// once, subject to the same refetch interval as validation.
func (v *Verifier) Ready(ctx context.Context) error {
	if v.GetCacheStats().Keys > 0 {
		return nil
	}
	if !v.claimRefetch(v.now()) {
		return fmt.Errorf("%w: no keys cached", ErrJWKSFetchFailed)
	}
	if _, err := v.FetchJWKS(ctx); err != nil {
		return err
	}
	if v.GetCacheStats().Keys == 0 {
		return fmt.Errorf("%w: key set has no RSA signing keys", ErrJWKSFetchFailed)
	}
	return nil
}
