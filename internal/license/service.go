package license

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"license-server/internal/database"
	"license-server/internal/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDeviceInfo labels sessions when the caller sends no device info
const DefaultDeviceInfo = "extension"

// Store is the license store surface the validation and activation
// services depend on. *database.Repository satisfies it.
type Store interface {
	GetLicenseByKey(ctx context.Context, key string) (*database.License, error)
	MarkExpired(ctx context.Context, id string) error
	TouchLastSeen(ctx context.Context, id string) error
	RecordActivation(ctx context.Context, act database.Activation) error
	InsertUsageLog(ctx context.Context, log *database.UsageLog) error
}

// ValidateResult is the outcome of a successful validation
type ValidateResult struct {
	Valid     bool       `json:"valid"`
	Plan      string     `json:"plan,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ActivateResult is the outcome of a successful activation
type ActivateResult struct {
	Activated    bool       `json:"activated"`
	Plan         string     `json:"plan,omitempty"`
	SessionToken string     `json:"session_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Service implements the license validation and activation protocol.
// Every call re-reads the current row; nothing is cached across
// requests so concurrent activations observe the latest counter.
type Service struct {
	store  Store
	bus    *events.EventBus
	logger zerolog.Logger
}

// NewService creates a license service. bus may be nil.
func NewService(store Store, bus *events.EventBus, logger zerolog.Logger) *Service {
	return &Service{store: store, bus: bus, logger: logger}
}

// NormalizeKey trims and uppercases a caller-supplied license key
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Validate checks whether a key (optionally scoped to an email) is
// currently usable. Read-only except for the lazy expiry transition and
// the last_seen stamp on success.
func (s *Service) Validate(ctx context.Context, key, email string) (*ValidateResult, error) {
	key = NormalizeKey(key)
	if key == "" {
		return nil, ErrMissingKey
	}

	lic, err := s.store.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("license lookup failed: %w", err)
	}
	if lic == nil {
		return nil, ErrNotFound
	}

	if lic.Status != database.StatusActive {
		s.logUsage(ctx, lic.ID, email, database.ActionValidate, false, "license "+lic.Status)
		return nil, statusError(lic.Status)
	}

	if expired(lic) {
		if err := s.store.MarkExpired(ctx, lic.ID); err != nil {
			return nil, fmt.Errorf("failed to expire license: %w", err)
		}
		s.publish(events.EventLicenseExpired, lic)
		s.logUsage(ctx, lic.ID, email, database.ActionValidate, false, ErrExpired.Message)
		return nil, ErrExpired
	}

	if email != "" && lic.Bound() && !strings.EqualFold(lic.Email, email) {
		s.logUsage(ctx, lic.ID, email, database.ActionValidate, false, ErrEmailMismatch.Message)
		return nil, ErrEmailMismatch
	}

	if err := s.store.TouchLastSeen(ctx, lic.ID); err != nil {
		return nil, fmt.Errorf("failed to stamp last_seen: %w", err)
	}

	logEmail := lic.Email
	if logEmail == "" {
		logEmail = email
	}
	s.logUsage(ctx, lic.ID, logEmail, database.ActionValidate, true, "")
	s.publish(events.EventLicenseValidated, lic)

	return &ValidateResult{
		Valid:     true,
		Plan:      lic.Plan,
		Email:     lic.Email,
		ExpiresAt: lic.ExpiresAt,
	}, nil
}

// Activate binds a key to an email, enforcing the activation quota, and
// issues a session token. Decision order is strict; the first matching
// rule wins.
func (s *Service) Activate(ctx context.Context, key, email, deviceInfo string) (*ActivateResult, error) {
	key = NormalizeKey(key)
	email = strings.TrimSpace(email)
	if key == "" || email == "" {
		return nil, ErrMissingFields
	}

	lic, err := s.store.GetLicenseByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("license lookup failed: %w", err)
	}
	if lic == nil {
		return nil, ErrNotFound
	}

	switch lic.Status {
	case database.StatusSuspended:
		s.logUsage(ctx, lic.ID, email, database.ActionActivate, false, ErrSuspended.Message)
		return nil, ErrSuspended
	case database.StatusExpired:
		s.logUsage(ctx, lic.ID, email, database.ActionActivate, false, ErrExpired.Message)
		return nil, ErrExpired
	}

	if expired(lic) {
		if err := s.store.MarkExpired(ctx, lic.ID); err != nil {
			return nil, fmt.Errorf("failed to expire license: %w", err)
		}
		s.publish(events.EventLicenseExpired, lic)
		s.logUsage(ctx, lic.ID, email, database.ActionActivate, false, ErrExpired.Message)
		return nil, ErrExpired
	}

	// Bound to someone else with no quota left
	if lic.Bound() && !strings.EqualFold(lic.Email, email) && lic.Activations >= lic.MaxActivations {
		s.logUsage(ctx, lic.ID, email, database.ActionActivate, false, ErrAlreadyActivated.Message)
		return nil, ErrAlreadyActivated
	}

	// Never bound but quota already consumed (possible after an admin
	// unbinds the email while leaving the counter)
	if !lic.Bound() && lic.Activations >= lic.MaxActivations {
		s.logUsage(ctx, lic.ID, email, database.ActionActivate, false, ErrQuotaExceeded.Message)
		return nil, ErrQuotaExceeded
	}

	if deviceInfo == "" {
		deviceInfo = DefaultDeviceInfo
	}

	token := newSessionToken()
	act := database.Activation{
		LicenseID:  lic.ID,
		Email:      email,
		FirstBind:  !lic.Bound(),
		Token:      token,
		DeviceInfo: deviceInfo,
	}

	if err := s.store.RecordActivation(ctx, act); err != nil {
		return nil, fmt.Errorf("activation write failed: %w", err)
	}

	s.logUsage(ctx, lic.ID, email, database.ActionActivate, true, "")
	s.publish(events.EventLicenseActivated, lic)
	s.logger.Info().Str("license_key", lic.LicenseKey).Str("email", email).Bool("first_bind", act.FirstBind).Msg("license activated")

	return &ActivateResult{
		Activated:    true,
		Plan:         lic.Plan,
		SessionToken: token,
		ExpiresAt:    lic.ExpiresAt,
	}, nil
}

// newSessionToken builds an opaque token: a random identifier plus a
// millisecond timestamp component against intra-millisecond collisions.
func newSessionToken() string {
	return uuid.New().String() + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func expired(lic *database.License) bool {
	return lic.ExpiresAt != nil && lic.ExpiresAt.Before(time.Now())
}

// logUsage appends to the usage log. Failures here are logged and
// swallowed; the audit trail never blocks the caller's outcome.
func (s *Service) logUsage(ctx context.Context, licenseID, email, action string, success bool, reason string) {
	entry := &database.UsageLog{
		LicenseID: licenseID,
		Email:     email,
		Action:    action,
		Details:   database.UsageDetails(success, reason),
	}
	if err := s.store.InsertUsageLog(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("usage log insert failed")
	}
}

func (s *Service) publish(eventType events.EventType, lic *database.License) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, map[string]interface{}{
		"license_id":  lic.ID,
		"license_key": lic.LicenseKey,
		"plan":        lic.Plan,
	})
}
