package license

import (
	"context"
	"regexp"
	"testing"
)

type fakeKeyStore struct {
	existing map[string]bool
	calls    int
}

func (f *fakeKeyStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	f.calls++
	return f.existing[key], nil
}

func TestGenerateKeyFormat(t *testing.T) {
	gen := NewKeyGenerator(&fakeKeyStore{}, "ORIG", 10)

	pattern := regexp.MustCompile(`^ORIG(-[A-Z0-9]{4}){4}$`)
	for i := 0; i < 50; i++ {
		key, err := gen.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !pattern.MatchString(key) {
			t.Errorf("Key %q does not match expected format", key)
		}
	}
}

func TestGenerateKeyUppercasesPrefix(t *testing.T) {
	gen := NewKeyGenerator(&fakeKeyStore{}, "orig", 10)

	key, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if key[:5] != "ORIG-" {
		t.Errorf("Expected uppercased prefix, got %q", key)
	}
}

func TestGenerateKeysAreDistinct(t *testing.T) {
	gen := NewKeyGenerator(&fakeKeyStore{}, "ORIG", 10)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := gen.Generate(context.Background())
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if seen[key] {
			t.Fatalf("Duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	// A store that claims every key already exists forces the generator
	// to give up after the retry cap.
	store := &fakeKeyStore{}
	gen := NewKeyGenerator(&everythingExistsStore{inner: store}, "ORIG", 3)

	_, err := gen.Generate(context.Background())
	if err != ErrGenerationExhausted {
		t.Fatalf("Expected ErrGenerationExhausted, got %v", err)
	}
	if store.calls != 3 {
		t.Errorf("Expected 3 uniqueness checks, got %d", store.calls)
	}
}

type everythingExistsStore struct {
	inner *fakeKeyStore
}

func (s *everythingExistsStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	s.inner.calls++
	return true, nil
}
