package license

import (
	"context"
	"strings"
	"testing"
	"time"

	"license-server/internal/database"

	"github.com/rs/zerolog"
)

// fakeStore is an in-memory Store for service tests
type fakeStore struct {
	licenses    map[string]*database.License // keyed by license key
	activations []database.Activation
	usageLogs   []database.UsageLog
	expired     []string
	lastSeen    []string
}

func newFakeStore(licenses ...*database.License) *fakeStore {
	s := &fakeStore{licenses: make(map[string]*database.License)}
	for _, lic := range licenses {
		s.licenses[lic.LicenseKey] = lic
	}
	return s
}

func (s *fakeStore) GetLicenseByKey(ctx context.Context, key string) (*database.License, error) {
	lic, ok := s.licenses[key]
	if !ok {
		return nil, nil
	}
	copied := *lic
	return &copied, nil
}

func (s *fakeStore) MarkExpired(ctx context.Context, id string) error {
	s.expired = append(s.expired, id)
	for _, lic := range s.licenses {
		if lic.ID == id {
			lic.Status = database.StatusExpired
		}
	}
	return nil
}

func (s *fakeStore) TouchLastSeen(ctx context.Context, id string) error {
	s.lastSeen = append(s.lastSeen, id)
	return nil
}

func (s *fakeStore) RecordActivation(ctx context.Context, act database.Activation) error {
	s.activations = append(s.activations, act)
	for _, lic := range s.licenses {
		if lic.ID == act.LicenseID && act.FirstBind {
			lic.Email = act.Email
			lic.Activations++
		}
	}
	return nil
}

func (s *fakeStore) InsertUsageLog(ctx context.Context, log *database.UsageLog) error {
	s.usageLogs = append(s.usageLogs, *log)
	return nil
}

func newTestService(store Store) *Service {
	return NewService(store, nil, zerolog.Nop())
}

func activeLicense() *database.License {
	return &database.License{
		ID:             "lic-1",
		LicenseKey:     "ORIG-AAAA-BBBB-CCCC-DDDD",
		Status:         database.StatusActive,
		Plan:           "pro",
		MaxActivations: 1,
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  orig-aaaa-bbbb-cccc-dddd  ", "ORIG-AAAA-BBBB-CCCC-DDDD"},
		{"ORIG-AAAA-BBBB-CCCC-DDDD", "ORIG-AAAA-BBBB-CCCC-DDDD"},
		{"\tMixedCase\n", "MIXEDCASE"},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateMissingKey(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Validate(context.Background(), "   ", "")
	if err != ErrMissingKey {
		t.Fatalf("Expected ErrMissingKey, got %v", err)
	}
}

func TestValidateUnknownKey(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Validate(context.Background(), "ORIG-XXXX-XXXX-XXXX-XXXX", "")
	if err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestValidateNormalizesKey(t *testing.T) {
	store := newFakeStore(activeLicense())
	svc := newTestService(store)

	result, err := svc.Validate(context.Background(), "  orig-aaaa-bbbb-cccc-dddd ", "")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid {
		t.Error("Expected valid result")
	}
	if result.Plan != "pro" {
		t.Errorf("Expected plan 'pro', got %q", result.Plan)
	}
}

func TestValidateSuspended(t *testing.T) {
	lic := activeLicense()
	lic.Status = database.StatusSuspended
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), lic.LicenseKey, "")
	if err == nil || err.Error() != "license suspended" {
		t.Fatalf("Expected 'license suspended', got %v", err)
	}
	if !IsBusinessError(err) {
		t.Error("Expected a business error")
	}

	// Failed attempts still land in the usage log
	if len(store.usageLogs) != 1 {
		t.Fatalf("Expected 1 usage log, got %d", len(store.usageLogs))
	}
	if store.usageLogs[0].Action != database.ActionValidate {
		t.Errorf("Expected validate action, got %q", store.usageLogs[0].Action)
	}

	// But a failed validation never counts as the license being seen
	if len(store.lastSeen) != 0 {
		t.Errorf("Expected last_seen_at untouched, got %v", store.lastSeen)
	}
}

func TestValidateLazyExpiry(t *testing.T) {
	lic := activeLicense()
	past := time.Now().Add(-time.Hour)
	lic.ExpiresAt = &past
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), lic.LicenseKey, "")
	if err != ErrExpired {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}
	if len(store.expired) != 1 || store.expired[0] != lic.ID {
		t.Fatalf("Expected one MarkExpired call for %s, got %v", lic.ID, store.expired)
	}

	// A second validate sees the stored expired status; the transition
	// only happens once.
	_, err = svc.Validate(context.Background(), lic.LicenseKey, "")
	if err == nil || err.Error() != "license expired" {
		t.Fatalf("Expected 'license expired', got %v", err)
	}
	if len(store.expired) != 1 {
		t.Errorf("Expected no further MarkExpired calls, got %d", len(store.expired))
	}
}

func TestValidateEmailMismatch(t *testing.T) {
	lic := activeLicense()
	lic.Email = "owner@example.com"
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Validate(context.Background(), lic.LicenseKey, "other@example.com")
	if err != ErrEmailMismatch {
		t.Fatalf("Expected ErrEmailMismatch, got %v", err)
	}
}

func TestValidateEmailCaseInsensitive(t *testing.T) {
	lic := activeLicense()
	lic.Email = "owner@example.com"
	store := newFakeStore(lic)
	svc := newTestService(store)

	result, err := svc.Validate(context.Background(), lic.LicenseKey, "OWNER@Example.COM")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid {
		t.Error("Expected valid result")
	}
}

func TestValidateUnboundIgnoresEmail(t *testing.T) {
	store := newFakeStore(activeLicense())
	svc := newTestService(store)

	result, err := svc.Validate(context.Background(), "ORIG-AAAA-BBBB-CCCC-DDDD", "anyone@example.com")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid {
		t.Error("Expected valid result for unbound license")
	}
}

func TestValidateTouchesLastSeen(t *testing.T) {
	store := newFakeStore(activeLicense())
	svc := newTestService(store)

	// Validation is idempotent: repeated calls succeed and never
	// consume activation quota.
	for i := 0; i < 3; i++ {
		if _, err := svc.Validate(context.Background(), "ORIG-AAAA-BBBB-CCCC-DDDD", ""); err != nil {
			t.Fatalf("Validate %d failed: %v", i, err)
		}
	}
	if len(store.lastSeen) != 3 {
		t.Errorf("Expected 3 last_seen stamps, got %d", len(store.lastSeen))
	}
	if len(store.activations) != 0 {
		t.Errorf("Validate must not record activations, got %d", len(store.activations))
	}
}

func TestActivateMissingFields(t *testing.T) {
	svc := newTestService(newFakeStore())

	cases := []struct{ key, email string }{
		{"", ""},
		{"ORIG-AAAA-BBBB-CCCC-DDDD", ""},
		{"", "user@example.com"},
		{"  ", "   "},
	}
	for _, c := range cases {
		_, err := svc.Activate(context.Background(), c.key, c.email, "")
		if err != ErrMissingFields {
			t.Errorf("Activate(%q, %q): expected ErrMissingFields, got %v", c.key, c.email, err)
		}
	}
}

func TestActivateFirstBind(t *testing.T) {
	store := newFakeStore(activeLicense())
	svc := newTestService(store)

	result, err := svc.Activate(context.Background(), "orig-aaaa-bbbb-cccc-dddd", "user@example.com", "")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !result.Activated {
		t.Error("Expected activated result")
	}
	if result.SessionToken == "" {
		t.Error("Expected a session token")
	}
	// Token is a UUID plus a millisecond timestamp suffix
	if parts := strings.Split(result.SessionToken, "-"); len(parts) != 6 {
		t.Errorf("Unexpected token shape: %s", result.SessionToken)
	}

	if len(store.activations) != 1 {
		t.Fatalf("Expected 1 activation, got %d", len(store.activations))
	}
	act := store.activations[0]
	if !act.FirstBind {
		t.Error("Expected first activation to bind the email")
	}
	if act.Email != "user@example.com" {
		t.Errorf("Expected bound email, got %q", act.Email)
	}
	if act.DeviceInfo != DefaultDeviceInfo {
		t.Errorf("Expected default device info, got %q", act.DeviceInfo)
	}
}

func TestActivateKeepsDeviceInfo(t *testing.T) {
	store := newFakeStore(activeLicense())
	svc := newTestService(store)

	_, err := svc.Activate(context.Background(), "ORIG-AAAA-BBBB-CCCC-DDDD", "user@example.com", "firefox-122")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if store.activations[0].DeviceInfo != "firefox-122" {
		t.Errorf("Expected device info to pass through, got %q", store.activations[0].DeviceInfo)
	}
}

func TestActivateSameEmailAgain(t *testing.T) {
	lic := activeLicense()
	lic.Email = "user@example.com"
	lic.Activations = 1
	store := newFakeStore(lic)
	svc := newTestService(store)

	// Re-activation by the bound email succeeds even at the quota;
	// reinstalls must not brick the license.
	result, err := svc.Activate(context.Background(), lic.LicenseKey, "USER@example.com", "")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !result.Activated {
		t.Error("Expected activated result")
	}
	if store.activations[0].FirstBind {
		t.Error("Re-activation must not rebind")
	}
}

func TestActivateBoundToOtherEmail(t *testing.T) {
	lic := activeLicense()
	lic.Email = "owner@example.com"
	lic.Activations = 1
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Activate(context.Background(), lic.LicenseKey, "intruder@example.com", "")
	if err != ErrAlreadyActivated {
		t.Fatalf("Expected ErrAlreadyActivated, got %v", err)
	}
	if len(store.activations) != 0 {
		t.Error("Blocked activation must not write")
	}
}

func TestActivateOtherEmailWithQuotaLeft(t *testing.T) {
	lic := activeLicense()
	lic.Email = "owner@example.com"
	lic.Activations = 1
	lic.MaxActivations = 3
	store := newFakeStore(lic)
	svc := newTestService(store)

	result, err := svc.Activate(context.Background(), lic.LicenseKey, "second@example.com", "")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !result.Activated {
		t.Error("Expected activated result with quota remaining")
	}
}

func TestActivateUnboundQuotaExhausted(t *testing.T) {
	lic := activeLicense()
	lic.Activations = 1 // counter left by an admin unbind
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Activate(context.Background(), lic.LicenseKey, "user@example.com", "")
	if err != ErrQuotaExceeded {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
}

func TestActivateSuspended(t *testing.T) {
	lic := activeLicense()
	lic.Status = database.StatusSuspended
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Activate(context.Background(), lic.LicenseKey, "user@example.com", "")
	if err != ErrSuspended {
		t.Fatalf("Expected ErrSuspended, got %v", err)
	}
}

func TestActivateLazyExpiry(t *testing.T) {
	lic := activeLicense()
	past := time.Now().Add(-time.Minute)
	lic.ExpiresAt = &past
	store := newFakeStore(lic)
	svc := newTestService(store)

	_, err := svc.Activate(context.Background(), lic.LicenseKey, "user@example.com", "")
	if err != ErrExpired {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}
	if len(store.expired) != 1 {
		t.Errorf("Expected one MarkExpired call, got %d", len(store.expired))
	}
}

func TestActivateUnknownKey(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Activate(context.Background(), "ORIG-XXXX-XXXX-XXXX-XXXX", "user@example.com", "")
	if err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := newSessionToken()
		if seen[token] {
			t.Fatalf("Duplicate session token: %s", token)
		}
		seen[token] = true
	}
}
