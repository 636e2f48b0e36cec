package activity

import (
	"context"
	"fmt"

	"github.com/leyden/paysandbox/internal/core"
)

// Maintenance contains housekeeping activities run from cron schedules.
type Maintenance struct {
	db     core.DB
	resets *core.PasswordResetService
}

// NewMaintenance creates a new Maintenance activity struct.
func NewMaintenance(db core.DB, resets *core.PasswordResetService) *Maintenance {
	return &Maintenance{db: db, resets: resets}
}

// SweepExpiredResetTokens clears password reset tokens whose window has
// passed and returns the count of cleared rows.
func (a *Maintenance) SweepExpiredResetTokens(ctx context.Context) (int64, error) {
	return a.resets.SweepExpired(ctx)
}

// DeleteOldAuditLogs deletes audit log entries older than the specified
// number of days and returns the count of deleted rows.
func (a *Maintenance) DeleteOldAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := a.db.Exec(ctx,
		"DELETE FROM audit_logs WHERE created_at < now() - make_interval(days => $1)", retentionDays)
	if err != nil {
		return 0, fmt.Errorf("delete old audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
