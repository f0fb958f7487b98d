package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods over the license store
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

const licenseColumns = `id, license_key, COALESCE(email, ''), status, plan, activations, max_activations,
	       expires_at, activated_at, last_seen_at, COALESCE(notes, ''), created_at, updated_at`

func scanLicense(row pgx.Row) (*License, error) {
	var lic License
	err := row.Scan(
		&lic.ID,
		&lic.LicenseKey,
		&lic.Email,
		&lic.Status,
		&lic.Plan,
		&lic.Activations,
		&lic.MaxActivations,
		&lic.ExpiresAt,
		&lic.ActivatedAt,
		&lic.LastSeenAt,
		&lic.Notes,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

// CreateLicense inserts a new license row
func (r *Repository) CreateLicense(ctx context.Context, lic *License) error {
	if lic.ID == "" {
		lic.ID = uuid.New().String()
	}
	lic.CreatedAt = time.Now()
	lic.UpdatedAt = lic.CreatedAt

	query := `
	INSERT INTO licenses (id, license_key, email, status, plan, activations, max_activations, expires_at, notes, created_at, updated_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		lic.ID,
		lic.LicenseKey,
		lic.Email,
		lic.Status,
		lic.Plan,
		lic.Activations,
		lic.MaxActivations,
		lic.ExpiresAt,
		lic.Notes,
		lic.CreatedAt,
		lic.UpdatedAt,
	)

	return err
}

// GetLicenseByKey retrieves a license by its key. Returns nil when the
// key does not exist.
func (r *Repository) GetLicenseByKey(ctx context.Context, key string) (*License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE license_key = $1`, licenseColumns)

	lic, err := scanLicense(r.db.Pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by key: %w", err)
	}
	return lic, nil
}

// GetLicenseByID retrieves a license by ID. Returns nil when absent.
func (r *Repository) GetLicenseByID(ctx context.Context, id string) (*License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE id = $1`, licenseColumns)

	lic, err := scanLicense(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by id: %w", err)
	}
	return lic, nil
}

// LicenseKeyExists reports whether a key is already taken
func (r *Repository) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM licenses WHERE license_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check license key: %w", err)
	}
	return exists, nil
}

// ListLicenses retrieves licenses newest-first with optional search and
// status filters. Returns the page plus the unpaginated total.
func (r *Repository) ListLicenses(ctx context.Context, filter LicenseFilter) ([]License, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.Search != "" {
		whereClause += fmt.Sprintf(" AND (license_key ILIKE $%d OR email ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM licenses %s", whereClause)
	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	query := fmt.Sprintf(`
	SELECT %s
	FROM licenses
	%s
	ORDER BY created_at DESC
	LIMIT $%d OFFSET $%d
	`, licenseColumns, whereClause, argNum, argNum+1)

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, *lic)
	}

	return licenses, total, nil
}

// UpdateLicenseFields applies the allow-listed mutable fields and
// returns the updated row. Nil pointers leave columns untouched.
func (r *Repository) UpdateLicenseFields(ctx context.Context, id string, upd LicenseUpdate) (*License, error) {
	setClause := "updated_at = NOW()"
	args := []interface{}{id}
	argNum := 2

	addSet := func(column string, value interface{}) {
		setClause += fmt.Sprintf(", %s = $%d", column, argNum)
		args = append(args, value)
		argNum++
	}

	if upd.Status != nil {
		addSet("status", *upd.Status)
	}
	if upd.Plan != nil {
		addSet("plan", *upd.Plan)
	}
	if upd.Email != nil {
		setClause += fmt.Sprintf(", email = NULLIF($%d, '')", argNum)
		args = append(args, *upd.Email)
		argNum++
	}
	if upd.MaxActivations != nil {
		addSet("max_activations", *upd.MaxActivations)
	}
	if upd.ExpiresAt != nil {
		addSet("expires_at", *upd.ExpiresAt)
	}
	if upd.Notes != nil {
		addSet("notes", *upd.Notes)
	}

	query := fmt.Sprintf(`UPDATE licenses SET %s WHERE id = $1 RETURNING %s`, setClause, licenseColumns)

	lic, err := scanLicense(r.db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update license: %w", err)
	}
	return lic, nil
}

// SetLicenseStatus moves a license to the given lifecycle state
func (r *Repository) SetLicenseStatus(ctx context.Context, id, status string) (*License, error) {
	query := fmt.Sprintf(
		`UPDATE licenses SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING %s`,
		licenseColumns,
	)

	lic, err := scanLicense(r.db.Pool.QueryRow(ctx, query, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set license status: %w", err)
	}
	return lic, nil
}

// MarkExpired transitions a license to expired (lazy expiry path)
func (r *Repository) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE licenses SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, StatusExpired,
	)
	return err
}

// TouchLastSeen stamps last_seen_at. Observability only, last write wins.
func (r *Repository) TouchLastSeen(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE licenses SET last_seen_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}

// DeleteLicense hard-deletes a license; sessions and usage logs cascade
func (r *Repository) DeleteLicense(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	return err
}

// RecordActivation applies the activation write and inserts the session
// row in one transaction, so a crash between the two cannot leave a
// consumed activation without its session.
func (r *Repository) RecordActivation(ctx context.Context, act Activation) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin activation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if act.FirstBind {
		_, err = tx.Exec(ctx, `
		UPDATE licenses
		SET status = $2, email = $3, activations = activations + 1,
		    activated_at = NOW(), last_seen_at = NOW(), updated_at = NOW()
		WHERE id = $1
		`, act.LicenseID, StatusActive, act.Email)
	} else {
		_, err = tx.Exec(ctx, `
		UPDATE licenses
		SET status = $2, last_seen_at = NOW(), updated_at = NOW()
		WHERE id = $1
		`, act.LicenseID, StatusActive)
	}
	if err != nil {
		return fmt.Errorf("failed to apply activation: %w", err)
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO license_sessions (id, license_id, token, device_info, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New().String(), act.LicenseID, act.Token, act.DeviceInfo)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return tx.Commit(ctx)
}

// DeleteSessionsForLicense removes all sessions of a license, forcing
// re-activation before the key can be used again.
func (r *Repository) DeleteSessionsForLicense(ctx context.Context, licenseID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM license_sessions WHERE license_id = $1`, licenseID,
	)
	return err
}

// DeleteSessionsOlderThan sweeps stale sessions and returns the count
func (r *Repository) DeleteSessionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM license_sessions WHERE created_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
