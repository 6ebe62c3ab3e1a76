package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsadapter "github.com/ericfisherdev/cloudpanel/internal/adapter/driven/aws"
	mockadapter "github.com/ericfisherdev/cloudpanel/internal/adapter/driven/mock"
	sqliteadapter "github.com/ericfisherdev/cloudpanel/internal/adapter/driven/sqlite"
	vaultadapter "github.com/ericfisherdev/cloudpanel/internal/adapter/driven/vault"
	"github.com/ericfisherdev/cloudpanel/internal/application"
	"github.com/ericfisherdev/cloudpanel/internal/config"
)

// app is the composition root shared by the server and the CLI commands.
type app struct {
	db        *sqliteadapter.DB
	accounts  *sqliteadapter.AccountRepo
	resources *sqliteadapter.ResourceRepo
	runs      *sqliteadapter.SyncRunRepo
	vault     *vaultadapter.Vault

	registry     *application.AccountRegistry
	orchestrator *application.SyncOrchestrator
	tester       *application.ConnectionTester
	scheduler    *application.SyncScheduler

	// maxSync bounds one sync; it sizes the write timeout and the drain.
	maxSync time.Duration
}

// newApp opens the store, applies migrations and wires every service. The
// caller must defer app.Close().
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	// 1. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", "path", cfg.DBPath)

	// 2. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	// 3. Wire storage adapters.
	accounts := sqliteadapter.NewAccountRepo(db)
	resources := sqliteadapter.NewResourceRepo(db)
	runs := sqliteadapter.NewSyncRunRepo(db)

	// 4. Credential vault. Missing key material disables it rather than failing
	// startup, so mock-only accounts keep working.
	cipher, err := vaultadapter.NewCipher(cfg.Cipher, cfg.SecretKey, cfg.AgeIdentity)
	switch {
	case errors.Is(err, vaultadapter.ErrNoKey):
		logger.Warn("no secret key configured, credential vault disabled")
		cipher = nil
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("credential vault: %w", err)
	}
	vault := vaultadapter.New(accounts, cipher, logger)

	// 5. Remote and mock sources.
	awsOpts := awsadapter.Options{Timeout: cfg.AdapterTimeout, Endpoint: cfg.AWSEndpoint}
	selector := application.NewSourceSelector(vault, awsadapter.NewFactory(awsOpts), mockadapter.NewFactory(cfg.MockSeed))

	// 6. Application services.
	retry := application.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.BaseDelay = cfg.RetryBaseDelay
	retry.MaxDelay = cfg.RetryMaxDelay

	logger.Debug("retry policy",
		"max_attempts", retry.MaxAttempts,
		"delays", retry.Delays(retry.MaxAttempts-1),
	)

	maxSync := application.MaxSyncDuration(retry, cfg.AdapterTimeout, cfg.SyncConcurrency)

	orchestrator := application.NewSyncOrchestrator(accounts, resources, runs, selector, retry, cfg.SyncConcurrency, logger)
	// Runs younger than the longest possible sync may still be owned by a
	// live process.
	orchestrator.SetStaleRunAge(max(maxSync+5*time.Minute, application.DefaultStaleRunAge))

	return &app{
		db:           db,
		accounts:     accounts,
		resources:    resources,
		runs:         runs,
		vault:        vault,
		registry:     application.NewAccountRegistry(accounts, vault, orchestrator, logger),
		orchestrator: orchestrator,
		tester:       application.NewConnectionTester(accounts, vault, awsadapter.NewProber(awsOpts), logger),
		scheduler:    application.NewSyncScheduler(accounts, resources, orchestrator, cfg.SyncInterval, cfg.RemovedRetention, logger),
		maxSync:      maxSync,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
