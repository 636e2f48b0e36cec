package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/leyden/paysandbox/internal/activity"
	"github.com/leyden/paysandbox/internal/config"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/crypto"
	"github.com/leyden/paysandbox/internal/db"
	"github.com/leyden/paysandbox/internal/logging"
	"github.com/leyden/paysandbox/internal/metrics"
	"github.com/leyden/paysandbox/internal/workflow"
)

const taskQueue = "sandbox-tasks"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "worker"
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, taskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	// Register activities
	endpoints := core.NewWebhookEndpointService(pool, cfg.KEKHex)
	deliveries := core.NewWebhookDeliveryService(pool)
	verifier := core.NewWebhookVerifier(endpoints, cfg.WebhookDefaultSecret, cfg.TimestampTolerance)
	w.RegisterActivity(activity.NewWebhook(endpoints, deliveries, verifier))

	hasher := crypto.NewHasher(cfg.HashConcurrency)
	w.RegisterActivity(activity.NewMaintenance(pool, core.NewPasswordResetService(pool, hasher)))

	// Register workflows
	w.RegisterWorkflow(workflow.DeliverEventWorkflow)
	w.RegisterWorkflow(workflow.SweepResetTokensWorkflow)
	w.RegisterWorkflow(workflow.CleanupAuditLogsWorkflow)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, taskQueue, cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, taskQueue string, cfg *config.Config, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "reset-token-sweep-cron",
			cron:     "*/15 * * * *",
			workflow: workflow.SweepResetTokensWorkflow,
		},
		{
			id:       "audit-log-retention-cron",
			cron:     "0 4 * * *",
			workflow: workflow.CleanupAuditLogsWorkflow,
			args:     []interface{}{cfg.AuditLogRetentionDays},
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
