package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/leyden/paysandbox/internal/core"
)

// DeliverEventWorkflow drives delivery of one signed event to one
// endpoint. Retries happen at the activity level so the delivery row
// records every attempt; a 4xx from the endpoint is non-retryable and
// ends the chain immediately.
func DeliverEventWorkflow(ctx workflow.Context, input core.DeliverEventInput) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	err := workflow.ExecuteActivity(ctx, "DeliverWebhook", input).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("webhook delivery failed",
			"delivery", input.DeliveryID, "endpoint", input.EndpointID, "error", err)
		return err
	}
	return nil
}
