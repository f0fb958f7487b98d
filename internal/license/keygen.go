package license

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	keyCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyGroupLen  = 4
	keyGroups    = 4
	defaultRetry = 10
)

// KeyStore is the slice of the store the generator needs for
// uniqueness checks.
type KeyStore interface {
	LicenseKeyExists(ctx context.Context, key string) (bool, error)
}

// KeyGenerator produces license keys of the form
// PREFIX-XXXX-XXXX-XXXX-XXXX with each X drawn uniformly from [A-Z0-9].
// Collisions are astronomically unlikely; the store re-check is a
// safety net, capped so a store outage cannot spin forever.
type KeyGenerator struct {
	store      KeyStore
	prefix     string
	maxRetries int
}

// NewKeyGenerator creates a key generator. maxRetries <= 0 falls back
// to the default cap.
func NewKeyGenerator(store KeyStore, prefix string, maxRetries int) *KeyGenerator {
	if maxRetries <= 0 {
		maxRetries = defaultRetry
	}
	return &KeyGenerator{
		store:      store,
		prefix:     strings.ToUpper(prefix),
		maxRetries: maxRetries,
	}
}

// Generate returns a fresh key that no existing license holds. Returns
// ErrGenerationExhausted once the retry cap is hit.
func (g *KeyGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		key, err := g.randomKey()
		if err != nil {
			return "", fmt.Errorf("failed to generate key material: %w", err)
		}

		exists, err := g.store.LicenseKeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check key uniqueness: %w", err)
		}
		if !exists {
			return key, nil
		}
	}

	return "", ErrGenerationExhausted
}

func (g *KeyGenerator) randomKey() (string, error) {
	parts := make([]string, 0, keyGroups+1)
	parts = append(parts, g.prefix)

	max := big.NewInt(int64(len(keyCharset)))
	for i := 0; i < keyGroups; i++ {
		group := make([]byte, keyGroupLen)
		for j := range group {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			group[j] = keyCharset[n.Int64()]
		}
		parts = append(parts, string(group))
	}

	return strings.Join(parts, "-"), nil
}
