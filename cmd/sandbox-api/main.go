package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/leyden/paysandbox/internal/api"
	"github.com/leyden/paysandbox/internal/config"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/crypto"
	"github.com/leyden/paysandbox/internal/db"
	"github.com/leyden/paysandbox/internal/logging"
	"github.com/leyden/paysandbox/internal/metrics"
	"github.com/leyden/paysandbox/internal/model"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "create-api-key":
			createAPIKey(os.Args[2:])
			return
		case "reset-token":
			issueResetToken(os.Args[2:])
			return
		}
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sandbox-api"
	}

	if err := cfg.Validate("sandbox-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

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

	srv := api.NewServer(logger, pool, tc, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting sandbox API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	srv.Close()
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	email := fs.String("email", "", "Owner account email (required)")
	keyType := fs.String("type", model.KeyTypeSecret, "Key type: publishable, secret, or test")
	scopes := fs.String("scopes", "", "Comma-separated permission scopes (default full access)")
	fs.Parse(args)

	if *email == "" {
		fmt.Fprintln(os.Stderr, "error: --email is required")
		fmt.Fprintln(os.Stderr, "usage: sandbox-api create-api-key --email <email> [--type secret] [--scopes transactions:read,webhooks:write]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	accounts := core.NewAccountService(pool, crypto.NewHasher(cfg.HashConcurrency))
	account, err := accounts.GetByEmail(ctx, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to look up account %s: %v\n", *email, err)
		os.Exit(1)
	}

	var permissions []string
	if *scopes != "" {
		permissions = strings.Split(*scopes, ",")
	}

	svc := core.NewAPIKeyService(pool)
	key, secret, err := svc.Issue(ctx, account.ID, *keyType, permissions, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key created successfully.\n\n")
	fmt.Printf("  ID:      %s\n", key.ID)
	fmt.Printf("  Type:    %s\n", key.KeyType)
	fmt.Printf("  Public:  %s\n", key.PublicKey)
	fmt.Printf("  Secret:  %s\n\n", secret)
	fmt.Printf("Save the secret now. It will not be shown again.\n")
}

func issueResetToken(args []string) {
	fs := flag.NewFlagSet("reset-token", flag.ExitOnError)
	email := fs.String("email", "", "Account email (required)")
	fs.Parse(args)

	if *email == "" {
		fmt.Fprintln(os.Stderr, "error: --email is required")
		fmt.Fprintln(os.Stderr, "usage: sandbox-api reset-token --email <email>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hasher := crypto.NewHasher(cfg.HashConcurrency)
	accounts := core.NewAccountService(pool, hasher)
	account, err := accounts.GetByEmail(ctx, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to look up account %s: %v\n", *email, err)
		os.Exit(1)
	}

	resets := core.NewPasswordResetService(pool, hasher)
	token, err := resets.RequestReset(ctx, account.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to issue reset token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reset token issued for %s.\n\n", *email)
	fmt.Printf("  Token:   %s\n", token)
	fmt.Printf("  Expires: in 1 hour\n\n")
	fmt.Printf("Hand the token to the account holder out of band. It will not be shown again.\n")
}
