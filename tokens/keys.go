// Package tokens mints and verifies RS256 access tokens and exposes the
// signing key as a JWK set.
package tokens

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/upb/faculty-auth/config"
	"go.uber.org/zap"
)

// MinKeyBits is the smallest RSA modulus accepted for signing
const MinKeyBits = 2048

// Algorithm is the only signature algorithm issued and accepted
const Algorithm = "RS256"

var (
	// ErrWeakKey is returned for RSA keys below MinKeyBits
	ErrWeakKey = errors.New("rsa key too small")

	// ErrNoSigningKey is returned when production starts without a configured key
	ErrNoSigningKey = errors.New("no signing key configured")
)

// KeyMaterial is the RSA key pair used to sign access tokens, together with
// the key id published in token headers.
type KeyMaterial struct {
	private *rsa.PrivateKey
	keyID   string
}

// NewKeyMaterial wraps an existing key. An empty keyID is derived from the
// RFC 7638 thumbprint of the public key.
func NewKeyMaterial(private *rsa.PrivateKey, keyID string) (*KeyMaterial, error) {
	if private == nil {
		return nil, errors.New("private key is required")
	}
	if private.N.BitLen() < MinKeyBits {
		return nil, fmt.Errorf("%w: %d bits", ErrWeakKey, private.N.BitLen())
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		thumb, err := (&jose.JSONWebKey{Key: &private.PublicKey}).Thumbprint(crypto.SHA256)
		if err != nil {
			return nil, fmt.Errorf("compute key thumbprint: %w", err)
		}
		keyID = base64.RawURLEncoding.EncodeToString(thumb)
	}
	return &KeyMaterial{private: private, keyID: keyID}, nil
}

// GenerateKeyMaterial creates a fresh key pair
func GenerateKeyMaterial(bits int) (*KeyMaterial, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("%w: %d bits", ErrWeakKey, bits)
	}
	private, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return NewKeyMaterial(private, "")
}

// ParseKeyMaterial reads a PKCS#1 or PKCS#8 PEM private key
func ParseKeyMaterial(pemData []byte, keyID string) (*KeyMaterial, error) {
	private, err := parseRSAPrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewKeyMaterial(private, keyID)
}

// LoadKeyMaterial resolves the signing key from configuration: inline PEM
// first, then a key file. Outside production a missing key is replaced by a
// generated one, which invalidates issued tokens on every restart.
func LoadKeyMaterial(cfg config.AuthConfig, production bool, logger *zap.Logger) (*KeyMaterial, error) {
	switch {
	case strings.TrimSpace(cfg.PrivateKeyPEM) != "":
		return ParseKeyMaterial([]byte(cfg.PrivateKeyPEM), cfg.KeyID)
	case cfg.PrivateKeyPath != "":
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return ParseKeyMaterial(data, cfg.KeyID)
	case production:
		return nil, ErrNoSigningKey
	}

	keys, err := GenerateKeyMaterial(MinKeyBits)
	if err != nil {
		return nil, err
	}
	logger.Warn("generated ephemeral signing key",
		zap.String("kid", keys.KeyID()),
	)
	return keys, nil
}

// KeyID returns the kid placed in token headers
func (k *KeyMaterial) KeyID() string {
	return k.keyID
}

// PublicKey returns the verification key
func (k *KeyMaterial) PublicKey() *rsa.PublicKey {
	return &k.private.PublicKey
}

// JWK returns the public half as a JSON Web Key
func (k *KeyMaterial) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       k.PublicKey(),
		KeyID:     k.keyID,
		Algorithm: Algorithm,
		Use:       "sig",
	}
}

func parseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("invalid PEM private key")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("unsupported private key type")
	default:
		return nil, fmt.Errorf("unsupported private key type %s", block.Type)
	}
}
