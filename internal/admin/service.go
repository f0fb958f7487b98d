package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"license-server/internal/auth"
	"license-server/internal/database"
	"license-server/internal/events"
	"license-server/internal/license"

	"github.com/rs/zerolog"
)

const (
	// MaxCreateQuantity caps batch creation defensively
	MaxCreateQuantity = 100

	// adminID identifies the single shared operator identity in the
	// audit log; there is no per-admin identity in this design.
	adminID = "admin"

	entityLicense = "license"
)

// Store is the store surface the admin service needs.
// *database.Repository satisfies it.
type Store interface {
	CreateLicense(ctx context.Context, lic *database.License) error
	GetLicenseByID(ctx context.Context, id string) (*database.License, error)
	ListLicenses(ctx context.Context, filter database.LicenseFilter) ([]database.License, int, error)
	UpdateLicenseFields(ctx context.Context, id string, upd database.LicenseUpdate) (*database.License, error)
	SetLicenseStatus(ctx context.Context, id, status string) (*database.License, error)
	DeleteLicense(ctx context.Context, id string) error
	DeleteSessionsForLicense(ctx context.Context, licenseID string) error
	LicenseStats(ctx context.Context) (*database.LicenseStats, error)
	RecentUsageLogs(ctx context.Context, limit int) ([]database.UsageLog, error)
	InsertAuditLog(ctx context.Context, log *database.AuditLog) error
}

// StatsCache is an optional read-path cache for get_stats
type StatsCache interface {
	GetStats(ctx context.Context) (*database.LicenseStats, bool)
	SetStats(ctx context.Context, stats *database.LicenseStats)
	Invalidate(ctx context.Context)
}

// Defaults fill in omitted create_license fields
type Defaults struct {
	Plan           string
	MaxActivations int
}

// Service implements the privileged operations behind the admin panel
type Service struct {
	store    Store
	keygen   *license.KeyGenerator
	auth     *auth.Admin
	cache    StatsCache // may be nil
	bus      *events.EventBus
	defaults Defaults
	logger   zerolog.Logger
}

// NewService creates the admin service. cache and bus may be nil.
func NewService(store Store, keygen *license.KeyGenerator, adminAuth *auth.Admin, cache StatsCache, bus *events.EventBus, defaults Defaults, logger zerolog.Logger) *Service {
	if defaults.Plan == "" {
		defaults.Plan = "pro"
	}
	if defaults.MaxActivations < 1 {
		defaults.MaxActivations = 1
	}
	return &Service{
		store:    store,
		keygen:   keygen,
		auth:     adminAuth,
		cache:    cache,
		bus:      bus,
		defaults: defaults,
		logger:   logger,
	}
}

// Authorize checks the admin token. Must pass before Dispatch touches
// the store.
func (s *Service) Authorize(token string) bool {
	return s.auth.CheckToken(token)
}

// Dispatch runs one admin action against its typed payload
func (s *Service) Dispatch(ctx context.Context, kind ActionKind, payload json.RawMessage) (interface{}, error) {
	switch kind {
	case ActionListLicenses:
		var req ListLicensesRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.listLicenses(ctx, req)
	case ActionCreateLicense:
		var req CreateLicenseRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.createLicenses(ctx, req)
	case ActionUpdateLicense:
		var req UpdateLicenseRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.updateLicense(ctx, req)
	case ActionDeleteLicense:
		var req IDRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.deleteLicense(ctx, req.ID)
	case ActionRevokeLicense:
		var req IDRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.revokeLicense(ctx, req.ID)
	case ActionGetStats:
		return s.getStats(ctx)
	case ActionGetLogs:
		var req GetLogsRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.getLogs(ctx, req.Limit)
	case ActionLogin:
		var req LoginRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return s.login(req.Password)
	default:
		return nil, ErrUnknownAction
	}
}

func decode(payload json.RawMessage, out interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errInvalid("malformed payload: " + err.Error())
	}
	return nil
}

func (s *Service) listLicenses(ctx context.Context, req ListLicensesRequest) (interface{}, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 50
	}

	licenses, total, err := s.store.ListLicenses(ctx, database.LicenseFilter{
		Page:   req.Page,
		Limit:  req.Limit,
		Search: req.Search,
		Status: req.Status,
	})
	if err != nil {
		return nil, err
	}
	if licenses == nil {
		licenses = []database.License{}
	}

	return map[string]interface{}{
		"licenses": licenses,
		"total":    total,
		"page":     req.Page,
		"limit":    req.Limit,
	}, nil
}

func (s *Service) createLicenses(ctx context.Context, req CreateLicenseRequest) (interface{}, error) {
	if req.Plan == "" {
		req.Plan = s.defaults.Plan
	}
	if req.MaxActivations < 1 {
		req.MaxActivations = s.defaults.MaxActivations
	}
	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}
	if quantity > MaxCreateQuantity {
		quantity = MaxCreateQuantity
	}

	var expiresAt *time.Time
	if req.ExpiresDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresDays)
		expiresAt = &t
	}

	created := make([]database.License, 0, quantity)
	for i := 0; i < quantity; i++ {
		key, err := s.keygen.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("key generation failed: %w", err)
		}

		lic := &database.License{
			LicenseKey:     key,
			Email:          req.Email,
			Status:         database.StatusActive,
			Plan:           req.Plan,
			MaxActivations: req.MaxActivations,
			ExpiresAt:      expiresAt,
			Notes:          req.Notes,
		}
		if err := s.store.CreateLicense(ctx, lic); err != nil {
			return nil, fmt.Errorf("license insert failed: %w", err)
		}
		created = append(created, *lic)
	}

	s.audit(ctx, "create_license", map[string]interface{}{"count": len(created), "plan": req.Plan})
	s.invalidateStats(ctx)
	s.publish(events.EventLicenseCreated, map[string]interface{}{"count": len(created), "plan": req.Plan})
	s.logger.Info().Int("count", len(created)).Str("plan", req.Plan).Msg("licenses created")

	return map[string]interface{}{
		"success":  true,
		"licenses": created,
	}, nil
}

// allowedUpdateFields is the only set of license columns the admin API
// may touch. Anything else in the updates object is a typed error.
var allowedUpdateFields = map[string]bool{
	"status":          true,
	"plan":            true,
	"email":           true,
	"max_activations": true,
	"expires_at":      true,
	"notes":           true,
}

func (s *Service) updateLicense(ctx context.Context, req UpdateLicenseRequest) (interface{}, error) {
	if req.ID == "" {
		return nil, ErrMissingID
	}

	for field := range req.Updates {
		if !allowedUpdateFields[field] {
			return nil, errUnknownField(field)
		}
	}

	upd, err := buildUpdate(req.Updates)
	if err != nil {
		return nil, err
	}

	lic, err := s.store.UpdateLicenseFields(ctx, req.ID, upd)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	s.audit(ctx, "update_license", map[string]interface{}{"id": req.ID})
	s.invalidateStats(ctx)
	s.publish(events.EventLicenseUpdated, map[string]interface{}{"license_id": req.ID})

	return map[string]interface{}{
		"success": true,
		"license": lic,
	}, nil
}

func buildUpdate(updates map[string]json.RawMessage) (database.LicenseUpdate, error) {
	var upd database.LicenseUpdate

	if raw, ok := updates["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err != nil {
			return upd, errInvalid("status must be a string")
		}
		switch status {
		case database.StatusActive, database.StatusSuspended, database.StatusExpired:
		default:
			return upd, errInvalid("status must be one of: active, suspended, expired")
		}
		upd.Status = &status
	}
	if raw, ok := updates["plan"]; ok {
		var plan string
		if err := json.Unmarshal(raw, &plan); err != nil {
			return upd, errInvalid("plan must be a string")
		}
		upd.Plan = &plan
	}
	if raw, ok := updates["email"]; ok {
		var email string
		if err := json.Unmarshal(raw, &email); err != nil {
			return upd, errInvalid("email must be a string")
		}
		upd.Email = &email
	}
	if raw, ok := updates["max_activations"]; ok {
		var max int
		if err := json.Unmarshal(raw, &max); err != nil {
			return upd, errInvalid("max_activations must be an integer")
		}
		if max < 1 {
			return upd, errInvalid("max_activations must be at least 1")
		}
		upd.MaxActivations = &max
	}
	if raw, ok := updates["expires_at"]; ok {
		var expiresAt time.Time
		if err := json.Unmarshal(raw, &expiresAt); err != nil {
			return upd, errInvalid("expires_at must be an RFC 3339 timestamp")
		}
		upd.ExpiresAt = &expiresAt
	}
	if raw, ok := updates["notes"]; ok {
		var notes string
		if err := json.Unmarshal(raw, &notes); err != nil {
			return upd, errInvalid("notes must be a string")
		}
		upd.Notes = &notes
	}

	return upd, nil
}

func (s *Service) deleteLicense(ctx context.Context, id string) (interface{}, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	lic, err := s.store.GetLicenseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	if err := s.store.DeleteLicense(ctx, id); err != nil {
		return nil, err
	}

	s.audit(ctx, "delete_license", map[string]interface{}{"id": id, "license_key": lic.LicenseKey})
	s.invalidateStats(ctx)
	s.publish(events.EventLicenseDeleted, map[string]interface{}{"license_id": id})

	return map[string]interface{}{"success": true}, nil
}

func (s *Service) revokeLicense(ctx context.Context, id string) (interface{}, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	lic, err := s.store.SetLicenseStatus(ctx, id, database.StatusSuspended)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	// Dropping the sessions forces re-activation before any reuse
	if err := s.store.DeleteSessionsForLicense(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to drop sessions: %w", err)
	}

	s.audit(ctx, "revoke_license", map[string]interface{}{"id": id, "license_key": lic.LicenseKey})
	s.invalidateStats(ctx)
	s.publish(events.EventLicenseRevoked, map[string]interface{}{"license_id": id})

	return map[string]interface{}{
		"success": true,
		"license": lic,
	}, nil
}

func (s *Service) getStats(ctx context.Context) (interface{}, error) {
	if s.cache != nil {
		if stats, ok := s.cache.GetStats(ctx); ok {
			return map[string]interface{}{"stats": stats}, nil
		}
	}

	stats, err := s.store.LicenseStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetStats(ctx, stats)
	}
	return map[string]interface{}{"stats": stats}, nil
}

func (s *Service) getLogs(ctx context.Context, limit int) (interface{}, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	logs, err := s.store.RecentUsageLogs(ctx, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []database.UsageLog{}
	}

	return map[string]interface{}{"logs": logs}, nil
}

func (s *Service) login(password string) (interface{}, error) {
	token, err := s.auth.Login(password)
	if err != nil {
		// Wrong password rides a 200 like the other business failures
		return map[string]interface{}{
			"success": false,
			"error":   "incorrect password",
		}, nil
	}

	return map[string]interface{}{
		"success": true,
		"token":   token,
	}, nil
}

func (s *Service) audit(ctx context.Context, action string, details map[string]interface{}) {
	data, _ := json.Marshal(details)
	entry := &database.AuditLog{
		AdminID:    adminID,
		Action:     action,
		EntityType: entityLicense,
		Details:    string(data),
	}
	if err := s.store.InsertAuditLog(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit log insert failed")
	}
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *Service) publish(eventType events.EventType, data map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventType, data)
	}
}
