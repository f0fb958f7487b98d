package database

import (
	"time"
)

// License lifecycle states. Expired and suspended licenses can only be
// brought back through an admin update.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusExpired   = "expired"
)

// Usage log actions
const (
	ActionActivate = "activate"
	ActionValidate = "validate"
)

// License represents a license row. Email is empty until the first
// activation binds the license to an identity.
type License struct {
	ID             string     `json:"id"`
	LicenseKey     string     `json:"license_key"`
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	Plan           string     `json:"plan"`
	Activations    int        `json:"activations"`
	MaxActivations int        `json:"max_activations"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ActivatedAt    *time.Time `json:"activated_at"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Bound reports whether the license has been activated by an identity
func (l *License) Bound() bool {
	return l.Email != ""
}

// LicenseSession is an ephemeral proof of a successful activation
type LicenseSession struct {
	ID         string    `json:"id"`
	LicenseID  string    `json:"license_id"`
	Token      string    `json:"token"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
}

// UsageLog is an append-only record of activate/validate attempts
type UsageLog struct {
	ID        string    `json:"id"`
	LicenseID string    `json:"license_id"`
	Email     string    `json:"email"`
	Action    string    `json:"action"`
	Details   string    `json:"details"` // JSON object
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog is an append-only record of admin panel operations
type AuditLog struct {
	ID         string    `json:"id"`
	AdminID    string    `json:"admin_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	Details    string    `json:"details"` // JSON object
	CreatedAt  time.Time `json:"created_at"`
}

// LicenseStats holds the aggregate counters shown on the dashboard
type LicenseStats struct {
	TotalLicenses     int `json:"total_licenses"`
	ActiveLicenses    int `json:"active_licenses"`
	SuspendedLicenses int `json:"suspended_licenses"`
	ExpiredLicenses   int `json:"expired_licenses"`
	Validations24h    int `json:"validations_24h"`
	Activations24h    int `json:"activations_24h"`
}

// LicenseFilter narrows ListLicenses results
type LicenseFilter struct {
	Page   int
	Limit  int
	Search string // case-insensitive substring on key or email
	Status string // exact status match
}

// LicenseUpdate carries the allow-listed mutable license fields. Nil
// pointers leave the column untouched.
type LicenseUpdate struct {
	Status         *string
	Plan           *string
	Email          *string
	MaxActivations *int
	ExpiresAt      *time.Time
	Notes          *string
}

// Activation captures everything a successful activation writes in a
// single transaction: the license row update and the new session.
type Activation struct {
	LicenseID  string
	Email      string
	FirstBind  bool // set email, bump activations, stamp activated_at
	Token      string
	DeviceInfo string
}
