package tokens

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faculty-auth/config"
	"go.uber.org/zap/zaptest"
)

func TestParseKeyMaterial(t *testing.T) {
	keys := sharedKeys(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(keys.private),
	})
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(keys.private)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes})

	t.Run("pkcs1", func(t *testing.T) {
		got, err := ParseKeyMaterial(pkcs1, "")
		require.NoError(t, err)
		assert.Equal(t, keys.KeyID(), got.KeyID())
		assert.True(t, keys.PublicKey().Equal(got.PublicKey()))
	})

	t.Run("pkcs8 with explicit kid", func(t *testing.T) {
		got, err := ParseKeyMaterial(pkcs8, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, "2026-03", got.KeyID())
	})

	t.Run("not pem", func(t *testing.T) {
		_, err := ParseKeyMaterial([]byte("garbage"), "")
		assert.Error(t, err)
	})

	t.Run("unsupported block", func(t *testing.T) {
		data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}})
		_, err := ParseKeyMaterial(data, "")
		assert.ErrorContains(t, err, "unsupported private key type")
	})
}

func TestNewKeyMaterial_RejectsWeakKey(t *testing.T) {
	weak := generateRSAKey(t, 1024)

	_, err := NewKeyMaterial(weak, "")
	assert.ErrorIs(t, err, ErrWeakKey)

	_, err = GenerateKeyMaterial(1024)
	assert.ErrorIs(t, err, ErrWeakKey)
}

func TestLoadKeyMaterial(t *testing.T) {
	logger := zaptest.NewLogger(t)
	keys := sharedKeys(t)
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(keys.private),
	})

	t.Run("inline pem", func(t *testing.T) {
		got, err := LoadKeyMaterial(config.AuthConfig{PrivateKeyPEM: string(pemData), KeyID: "inline"}, true, logger)
		require.NoError(t, err)
		assert.Equal(t, "inline", got.KeyID())
	})

	t.Run("key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "signing.pem")
		require.NoError(t, os.WriteFile(path, pemData, 0o600))

		got, err := LoadKeyMaterial(config.AuthConfig{PrivateKeyPath: path}, true, logger)
		require.NoError(t, err)
		assert.Equal(t, keys.KeyID(), got.KeyID())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadKeyMaterial(config.AuthConfig{PrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")}, false, logger)
		assert.ErrorContains(t, err, "read private key file")
	})

	t.Run("production without key", func(t *testing.T) {
		_, err := LoadKeyMaterial(config.AuthConfig{}, true, logger)
		assert.ErrorIs(t, err, ErrNoSigningKey)
	})

	t.Run("development generates a key", func(t *testing.T) {
		got, err := LoadKeyMaterial(config.AuthConfig{}, false, logger)
		require.NoError(t, err)
		assert.NotEmpty(t, got.KeyID())
		assert.GreaterOrEqual(t, got.PublicKey().N.BitLen(), MinKeyBits)
	})
}

func TestKeyMaterial_JWK(t *testing.T) {
	keys := sharedKeys(t)

	jwk := keys.JWK()
	assert.True(t, jwk.IsPublic())
	assert.True(t, jwk.Valid())

	data, err := json.Marshal(jwk)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "RSA", fields["kty"])
	assert.Equal(t, "RS256", fields["alg"])
	assert.Equal(t, "sig", fields["use"])
	assert.Equal(t, keys.KeyID(), fields["kid"])
	assert.NotContains(t, fields, "d")
}
