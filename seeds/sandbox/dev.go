package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/leyden/paysandbox/internal/crypto"
	"github.com/leyden/paysandbox/internal/model"
)

const (
	devAccountID   = "acct_dev_000000000001"
	devAccountMail = "dev@paysandbox.test"

	devSecretKeyID     = "key_dev_secret_000000001"
	devSecretKeyPublic = "sk_test_dev000000000001"
	devSecretKeySecret = "sec_dev_secret0000000000000001"

	devPubKeyID     = "key_dev_publish_00000001"
	devPubKeyPublic = "pk_test_dev000000000001"
	devPubKeySecret = "sec_dev_publish000000000000001"
)

type endpointsFile struct {
	Endpoints []endpointEntry `yaml:"endpoints"`
}

type endpointEntry struct {
	ID     string   `yaml:"id"`
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

func main() {
	databaseURL := os.Getenv("SANDBOX_DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "SANDBOX_DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	fmt.Println("Seeding sandbox database...")

	fmt.Println("  Inserting dev account...")
	hasher := crypto.NewHasher(2)
	passwordHash, err := hasher.HashAndSalt(ctx, "password")
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		devAccountID, devAccountMail, passwordHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "insert account: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("  Inserting dev API keys...")
	if err := upsertKey(ctx, pool, devSecretKeyID, devSecretKeyPublic, devSecretKeySecret, model.KeyTypeSecret, []string{model.ScopeAll}); err != nil {
		fmt.Fprintf(os.Stderr, "insert secret key: %v\n", err)
		os.Exit(1)
	}
	if err := upsertKey(ctx, pool, devPubKeyID, devPubKeyPublic, devPubKeySecret, model.KeyTypePublishable, []string{model.ScopeTransactionsRead}); err != nil {
		fmt.Fprintf(os.Stderr, "insert publishable key: %v\n", err)
		os.Exit(1)
	}

	// --- Webhook endpoints from YAML ---

	kekHex := os.Getenv("SANDBOX_KEK")
	if kekHex != "" {
		fmt.Println("  Seeding webhook endpoints from YAML...")
		if err := seedEndpoints(ctx, pool, kekHex); err != nil {
			fmt.Fprintf(os.Stderr, "seed endpoints: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("  WARNING: SANDBOX_KEK not set, skipping webhook endpoint seeding.")
	}

	fmt.Println()
	fmt.Println("Seed complete!")
	fmt.Println()
	fmt.Printf("  Account: %s / password\n", devAccountMail)
	fmt.Println()
	fmt.Printf("  Secret key:      %s / %s\n", devSecretKeyPublic, devSecretKeySecret)
	fmt.Printf("  Publishable key: %s / %s\n", devPubKeyPublic, devPubKeySecret)
}

func upsertKey(ctx context.Context, pool *pgxpool.Pool, id, publicKey, secret, keyType string, permissions []string) error {
	fmt.Printf("    Upserting key %s (%s)\n", publicKey, keyType)
	_, err := pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, public_key, secret_hash, key_type, permissions, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, true)
		 ON CONFLICT (id) DO UPDATE SET
		   secret_hash = EXCLUDED.secret_hash,
		   permissions = EXCLUDED.permissions,
		   is_active = true,
		   updated_at = now()`,
		id, devAccountID, publicKey, crypto.LookupHash(secret), keyType, permissions)
	return err
}

// seedEndpoints reads seeds/sandbox/endpoints.yaml and upserts webhook
// endpoint rows with secrets sealed under SANDBOX_KEK.
func seedEndpoints(ctx context.Context, pool *pgxpool.Pool, kekHex string) error {
	kek, err := hex.DecodeString(kekHex)
	if err != nil {
		return fmt.Errorf("decode SANDBOX_KEK: %w", err)
	}

	// Resolve path relative to this source file so it works regardless of cwd.
	_, thisFile, _, _ := runtime.Caller(0)
	yamlPath := filepath.Join(filepath.Dir(thisFile), "endpoints.yaml")

	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return fmt.Errorf("read endpoints.yaml: %w", err)
	}

	var ef endpointsFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return fmt.Errorf("parse endpoints.yaml: %w", err)
	}

	for _, ep := range ef.Endpoints {
		for _, ev := range ep.Events {
			if !model.ValidEventType(ev) {
				return fmt.Errorf("endpoint %s subscribes to unknown event type %q", ep.ID, ev)
			}
		}

		sealed, err := crypto.Encrypt([]byte(ep.Secret), kek)
		if err != nil {
			return fmt.Errorf("encrypt secret for %s: %w", ep.ID, err)
		}

		fmt.Printf("    Upserting endpoint %s (%s)\n", ep.ID, ep.URL)
		_, err = pool.Exec(ctx,
			`INSERT INTO webhook_endpoints (id, owner_id, url, secret_encrypted, subscribed_events, is_active)
			 VALUES ($1, $2, $3, $4, $5, true)
			 ON CONFLICT (id) DO UPDATE SET
			   url = EXCLUDED.url,
			   secret_encrypted = EXCLUDED.secret_encrypted,
			   subscribed_events = EXCLUDED.subscribed_events,
			   is_active = true,
			   updated_at = now()`,
			ep.ID, devAccountID, ep.URL, sealed, ep.Events)
		if err != nil {
			return fmt.Errorf("upsert endpoint %s: %w", ep.ID, err)
		}
	}

	return nil
}
