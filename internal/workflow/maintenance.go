package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SweepResetTokensWorkflow clears password reset tokens whose expiry has
// passed. Runs on a cron schedule from the worker.
func SweepResetTokensWorkflow(ctx workflow.Context) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var swept int64
	err := workflow.ExecuteActivity(ctx, "SweepExpiredResetTokens").Get(ctx, &swept)
	if err != nil {
		return err
	}

	workflow.GetLogger(ctx).Info("swept expired reset tokens", "swept", swept)
	return nil
}

// CleanupAuditLogsWorkflow deletes audit log entries older than the
// specified days.
func CleanupAuditLogsWorkflow(ctx workflow.Context, retentionDays int) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var deleted int64
	err := workflow.ExecuteActivity(ctx, "DeleteOldAuditLogs", retentionDays).Get(ctx, &deleted)
	if err != nil {
		return err
	}

	workflow.GetLogger(ctx).Info("cleaned up old audit logs", "deleted", deleted, "retentionDays", retentionDays)
	return nil
}
