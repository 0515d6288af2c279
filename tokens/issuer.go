package tokens

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/faculty-auth/internal/ids"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/services"
	"go.uber.org/zap"
)

// AccessToken is a signed token and the instants it was minted for
type AccessToken struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PublicKeyInfo describes the verification key of an Issuer
type PublicKeyInfo struct {
	KeyID     string
	Algorithm string
	Key       *rsa.PublicKey
}

// Rules are the checks applied to every parsed token
type Rules struct {
	Issuer   string
	Audience string
	Now      func() time.Time
}

// Issuer signs and verifies access tokens with a single key pair
type Issuer struct {
	keys     *KeyMaterial
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the logger used for rejected tokens
func WithLogger(logger *zap.Logger) Option {
	return func(i *Issuer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIssuer creates an Issuer. ttl is the access token lifetime.
func NewIssuer(keys *KeyMaterial, issuer, audience string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if keys == nil {
		return nil, errors.New("key material is required")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	i := &Issuer{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue mints an access token for principal
func (i *Issuer) Issue(ctx context.Context, principal *models.Principal) (*AccessToken, error) {
	if principal == nil {
		return nil, errors.New("principal is required")
	}
	now := i.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(i.ttl))
	jti := ids.New(now)

	claims := &Claims{
		Email:    principal.Email,
		FullName: principal.FullName,
		Role:     principal.Role,
		TenantID: principal.TenantClaim(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   principal.ID.String(),
			Audience:  jwt.ClaimStrings{i.audience},
			ExpiresAt: expiresAt,
			NotBefore: issuedAt,
			IssuedAt:  issuedAt,
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keys.KeyID()

	signed, err := token.SignedString(i.keys.private)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AccessToken{
		Token:     signed,
		ID:        jti,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Validate verifies signature, issuer, audience and expiry with no clock
// skew. Every failure is reported as services.ErrInvalidToken.
func (i *Issuer) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := Parse(tokenString, i.keyfunc, Rules{
		Issuer:   i.issuer,
		Audience: i.audience,
		Now:      i.now,
	})
	if err != nil {
		i.logger.Debug("access token rejected", zap.Error(err))
		return nil, services.Wrap(services.ErrInvalidToken, err)
	}
	return claims, nil
}

// PublicKey returns the verification key and its identifiers
func (i *Issuer) PublicKey() PublicKeyInfo {
	return PublicKeyInfo{
		KeyID:     i.keys.KeyID(),
		Algorithm: Algorithm,
		Key:       i.keys.PublicKey(),
	}
}

// JWKS returns the key set served at the well-known endpoint
func (i *Issuer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{i.keys.JWK()}}
}

func (i *Issuer) keyfunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if kid != i.keys.KeyID() {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return i.keys.PublicKey(), nil
}

// Parse verifies tokenString with the key returned by keyfunc and applies
// rules. Only RS256 is accepted, expiry is required and no leeway is given.
func Parse(tokenString string, keyfunc jwt.Keyfunc, rules Rules) (*Claims, error) {
	now := rules.Now
	if now == nil {
		now = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithIssuer(rules.Issuer),
		jwt.WithAudience(rules.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("token subject is not a principal id: %w", err)
	}
	if claims.ID == "" {
		return nil, errors.New("token has no id")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}
	return claims, nil
}
