package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-server/config"
	"license-server/internal/admin"
	"license-server/internal/api"
	"license-server/internal/auth"
	"license-server/internal/cache"
	"license-server/internal/database"
	"license-server/internal/events"
	"license-server/internal/license"
	"license-server/internal/logging"
	"license-server/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "generate-config" {
		if err := config.GenerateSampleConfig("config.json"); err != nil {
			os.Stderr.WriteString("failed to generate config: " + err.Error() + "\n")
			os.Exit(1)
		}
		os.Stdout.WriteString("wrote config.json\n")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	// Vault, when enabled, overrides the secrets from config/env
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		return err
	}
	if vaultClient.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		secrets, err := vaultClient.LoadSecrets(ctx)
		cancel()
		if err != nil {
			return err
		}
		if secrets.DatabasePassword != "" {
			cfg.DatabaseConfig.Password = secrets.DatabasePassword
		}
		if secrets.AdminSecret != "" {
			cfg.AdminConfig.Secret = secrets.AdminSecret
		}
		if secrets.AdminSecretHash != "" {
			cfg.AdminConfig.SecretHash = secrets.AdminSecretHash
		}
		if secrets.AdminSigningKey != "" {
			cfg.AdminConfig.SigningKey = secrets.AdminSigningKey
		}
		vaultLogger := logging.Component(logger, "vault")
		vaultLogger.Info().Msg("secrets loaded from vault")
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.RunMigrations(migrateCtx)
	cancel()
	if err != nil {
		return err
	}

	repo := database.NewRepository(db)
	eventBus := events.NewEventBus()

	var statsCache admin.StatsCache
	if cfg.RedisConfig.Enabled {
		redisCache := cache.NewStatsCache(cache.Config{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
			StatsTTL: cfg.RedisConfig.StatsTTL,
		}, logging.Component(logger, "cache"))
		defer redisCache.Close()
		statsCache = redisCache
	}

	adminAuth, err := auth.NewAdmin(cfg.AdminConfig.Secret, cfg.AdminConfig.SecretHash,
		cfg.AdminConfig.SigningKey, cfg.AdminConfig.TokenDuration)
	if err != nil {
		return err
	}

	keygen := license.NewKeyGenerator(repo, cfg.LicenseConfig.KeyPrefix, cfg.LicenseConfig.KeyGenMaxRetries)
	licenseSvc := license.NewService(repo, eventBus, logging.Component(logger, "license"))
	adminSvc := admin.NewService(repo, keygen, adminAuth, statsCache, eventBus, admin.Defaults{
		Plan:           cfg.LicenseConfig.DefaultPlan,
		MaxActivations: cfg.LicenseConfig.DefaultMaxActivations,
	}, logging.Component(logger, "admin"))

	var vaultChecker api.VaultChecker
	if vaultClient.IsEnabled() {
		vaultChecker = vaultClient
	}

	server := api.NewServer(api.ServerConfig{
		Host:            cfg.ServerConfig.Host,
		Port:            cfg.ServerConfig.Port,
		ProductionMode:  cfg.ServerConfig.ProductionMode,
		StaticFilesPath: cfg.ServerConfig.StaticFilesPath,
		RateLimit:       cfg.ServerConfig.RateLimit,
		RateLimitWindow: cfg.ServerConfig.RateLimitWindow,
	}, licenseSvc, adminSvc, db, vaultChecker, eventBus, logging.Component(logger, "api"))

	sweepDone := make(chan struct{})
	if cfg.LicenseConfig.SessionTTL > 0 {
		go sweepSessions(repo, cfg.LicenseConfig.SessionTTL, cfg.LicenseConfig.SessionSweepPeriod,
			logging.Component(logger, "sessions"), sweepDone)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(sweepDone)
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	close(sweepDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// sweepSessions periodically deletes activation sessions older than the
// configured TTL. Sessions are audit data, not access control, so the
// sweep only bounds table growth.
func sweepSessions(repo *database.Repository, ttl, period time.Duration, logger zerolog.Logger, done <-chan struct{}) {
	if period <= 0 {
		period = 24 * time.Hour
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			deleted, err := repo.DeleteSessionsOlderThan(ctx, time.Now().Add(-ttl))
			cancel()
			if err != nil {
				logger.Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if deleted > 0 {
				logger.Info().Int64("deleted", deleted).Msg("expired sessions removed")
			}
		}
	}
}
