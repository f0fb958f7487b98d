package admin

import (
	"encoding/json"
)

// ActionKind is the closed set of admin operations. Dispatch switches
// over this enum with a typed payload per variant, so adding or
// removing an action is compile-checked.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionListLicenses
	ActionCreateLicense
	ActionUpdateLicense
	ActionDeleteLicense
	ActionRevokeLicense
	ActionGetStats
	ActionGetLogs
	ActionLogin
)

var actionNames = map[string]ActionKind{
	"list_licenses":  ActionListLicenses,
	"create_license": ActionCreateLicense,
	"update_license": ActionUpdateLicense,
	"delete_license": ActionDeleteLicense,
	"revoke_license": ActionRevokeLicense,
	"get_stats":      ActionGetStats,
	"get_logs":       ActionGetLogs,
	"admin_login":    ActionLogin,
}

// ParseAction maps a wire action name onto the enum
func ParseAction(name string) (ActionKind, error) {
	kind, ok := actionNames[name]
	if !ok {
		return ActionUnknown, ErrUnknownAction
	}
	return kind, nil
}

// String returns the wire name of an action
func (k ActionKind) String() string {
	for name, kind := range actionNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Request is the admin API envelope. Payload carries the
// action-specific fields (the whole body; envelope fields are ignored
// by the payload decoders).
type Request struct {
	Action  string          `json:"action"`
	Token   string          `json:"token"`
	Payload json.RawMessage `json:"-"`
}

// ListLicensesRequest narrows and pages the license listing
type ListLicensesRequest struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search"`
	Status string `json:"status"`
}

// CreateLicenseRequest issues 1..100 licenses in one call
type CreateLicenseRequest struct {
	Email          string `json:"email"`
	Plan           string `json:"plan"`
	MaxActivations int    `json:"max_activations"`
	ExpiresDays    int    `json:"expires_days"`
	Notes          string `json:"notes"`
	Quantity       int    `json:"quantity"`
}

// UpdateLicenseRequest mutates allow-listed fields of one license.
// Unknown keys inside updates are rejected, not dropped.
type UpdateLicenseRequest struct {
	ID      string                     `json:"id"`
	Updates map[string]json.RawMessage `json:"updates"`
}

// IDRequest addresses a single license
type IDRequest struct {
	ID string `json:"id"`
}

// GetLogsRequest limits the usage log listing
type GetLogsRequest struct {
	Limit int `json:"limit"`
}

// LoginRequest carries the operator password
type LoginRequest struct {
	Password string `json:"password"`
}
