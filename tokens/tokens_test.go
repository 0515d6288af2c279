package tokens

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
)

var (
	testKeysOnce sync.Once
	testKeys     *KeyMaterial
	testKeysErr  error
)

// sharedKeys generates one key pair for the whole package
func sharedKeys(t *testing.T) *KeyMaterial {
	t.Helper()
	testKeysOnce.Do(func() {
		testKeys, testKeysErr = GenerateKeyMaterial(MinKeyBits)
	})
	if testKeysErr != nil {
		t.Fatalf("generate keys: %v", testKeysErr)
	}
	return testKeys
}

func generateRSAKey(t *testing.T, bits int) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPrincipal() *models.Principal {
	return models.NewPrincipal("Ana@Faculty.edu", "Ana Ruiz", uuid.New(), models.RoleProfessor)
}
