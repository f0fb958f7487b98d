package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertUsageLog appends an activate/validate record. Usage logs are
// never mutated.
func (r *Repository) InsertUsageLog(ctx context.Context, log *UsageLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now()
	if log.Details == "" {
		log.Details = "{}"
	}

	query := `
	INSERT INTO usage_logs (id, license_id, email, action, details, created_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		log.ID,
		log.LicenseID,
		log.Email,
		log.Action,
		log.Details,
		log.CreatedAt,
	)

	return err
}

// RecentUsageLogs returns the most recent usage log entries
func (r *Repository) RecentUsageLogs(ctx context.Context, limit int) ([]UsageLog, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
	SELECT id, license_id, COALESCE(email, ''), action, COALESCE(details::text, '{}'), created_at
	FROM usage_logs
	ORDER BY created_at DESC
	LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	defer rows.Close()

	var logs []UsageLog
	for rows.Next() {
		var log UsageLog
		err := rows.Scan(&log.ID, &log.LicenseID, &log.Email, &log.Action, &log.Details, &log.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, nil
}

// InsertAuditLog appends an admin action record
func (r *Repository) InsertAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now()
	if log.Details == "" {
		log.Details = "{}"
	}

	query := `
	INSERT INTO audit_logs (id, admin_id, action, entity_type, details, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		log.ID,
		log.AdminID,
		log.Action,
		log.EntityType,
		log.Details,
		log.CreatedAt,
	)

	return err
}

// LicenseStats returns the aggregate counters for the dashboard:
// license totals by status plus validations/activations in the last 24h.
func (r *Repository) LicenseStats(ctx context.Context) (*LicenseStats, error) {
	stats := &LicenseStats{}

	query := `
	SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = $1),
		COUNT(*) FILTER (WHERE status = $2),
		COUNT(*) FILTER (WHERE status = $3)
	FROM licenses
	`
	err := r.db.Pool.QueryRow(ctx, query, StatusActive, StatusSuspended, StatusExpired).Scan(
		&stats.TotalLicenses,
		&stats.ActiveLicenses,
		&stats.SuspendedLicenses,
		&stats.ExpiredLicenses,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count licenses: %w", err)
	}

	logQuery := `
	SELECT
		COUNT(*) FILTER (WHERE action = $1),
		COUNT(*) FILTER (WHERE action = $2)
	FROM usage_logs
	WHERE created_at > NOW() - INTERVAL '24 hours'
	`
	err = r.db.Pool.QueryRow(ctx, logQuery, ActionValidate, ActionActivate).Scan(
		&stats.Validations24h,
		&stats.Activations24h,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent usage: %w", err)
	}

	return stats, nil
}

// UsageDetails renders the details JSON stored with a usage log entry
func UsageDetails(success bool, reason string) string {
	details := map[string]interface{}{"success": success}
	if reason != "" {
		details["reason"] = reason
	}
	data, _ := json.Marshal(details)
	return string(data)
}
