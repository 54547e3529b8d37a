package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-onboarding/internal/application/onboarding"
	"github.com/go-onboarding/internal/application/pool"
	"github.com/go-onboarding/internal/config"
	"github.com/go-onboarding/internal/domain"
	"github.com/go-onboarding/internal/infrastructure/awsinfra"
	"github.com/go-onboarding/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-onboarding/internal/infrastructure/jwt"
	"github.com/go-onboarding/internal/infrastructure/memory"
	"github.com/go-onboarding/internal/infrastructure/provider"
	"github.com/go-onboarding/internal/infrastructure/redisstore"
	s3infra "github.com/go-onboarding/internal/infrastructure/s3"
	"github.com/go-onboarding/internal/infrastructure/sns"
	"github.com/go-onboarding/internal/pkg/logger"
	"github.com/go-onboarding/internal/pkg/secret"
	transporthttp "github.com/go-onboarding/internal/transport/http"
	"github.com/go-onboarding/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// accountStore is satisfied by every account pool backend.
type accountStore interface {
	PutIfAbsent(ctx context.Context, a *domain.PoolAccount) (bool, error)
	Get(ctx context.Context, username string) (*domain.PoolAccount, error)
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if envErr != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	box, err := secret.NewBox(cfg.CredentialKey)
	if err != nil {
		return fmt.Errorf("credential key: %w", err)
	}
	if box == nil {
		log.Warn().Msg("CREDENTIAL_KEY not set, credentials are stored unencrypted")
	}

	// AWS config is loaded lazily: the dynamo backend, the archive and the
	// notifier each need it, the redis and memory backends alone do not.
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsinfra.LoadConfig(ctx, cfg)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	var (
		sessions onboarding.SessionStore
		accounts accountStore
		closers  []func() error
		ready    handler.ReadinessCheck
	)
	switch cfg.SessionBackend {
	case config.BackendDynamo:
		c, err := loadAWS()
		if err != nil {
			return err
		}
		client := dynamo.NewClient(c, cfg.AWSEndpointURL)
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, log)
		sessions = dynamo.NewOnboardingRepo(client, cfg.DynamoTables.Onboarding)
		accounts = dynamo.NewAccountRepo(client, cfg.DynamoTables.Accounts)
		ready = func(ctx context.Context) error { return dynamo.Ping(ctx, client, cfg.DynamoTables.Onboarding) }
	case config.BackendRedis:
		rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, rdb.Close)
		sessions = redisstore.New(rdb, cfg.RedisPrefix)
		accounts = redisstore.NewAccounts(rdb, cfg.RedisPrefix)
		ready = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	case config.BackendMemory:
		store := memory.New(cfg.SessionTTL)
		closers = append(closers, store.Close)
		sessions = store
		accounts = memory.NewAccounts()
		log.Warn().Msg("memory backend selected, sessions and accounts are lost on restart")
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	log.Info().Str("backend", cfg.SessionBackend).Msg("session store ready")

	poolSvc := pool.NewService(accounts, box)
	deps := onboarding.ServiceDeps{
		Store: onboarding.NewSealedStore(sessions, box),
		NewProvider: func() onboarding.Provider {
			return provider.NewClient(cfg.ProviderBaseURL, &http.Client{Timeout: cfg.ProviderTimeout}, log)
		},
		Registrar:  poolSvc,
		Logger:     log,
		SessionTTL: cfg.SessionTTL,
		LogTail:    cfg.LogTail,
	}

	if cfg.ArchiveBucket != "" {
		c, err := loadAWS()
		if err != nil {
			return err
		}
		deps.Archiver = s3infra.NewArchive(s3infra.NewClient(c, cfg.AWSEndpointURL), cfg.ArchiveBucket)
	}
	if cfg.SNSTopicARN != "" {
		c, err := loadAWS()
		if err != nil {
			return err
		}
		deps.Notifier = sns.NewNotifier(sns.NewClient(c, cfg.AWSEndpointURL), cfg.SNSTopicARN)
	}

	// JWT provider (optional in development, graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiry); err == nil {
		jwtProvider = p
	} else if cfg.AppEnv == "production" {
		return fmt.Errorf("jwt provider: %w", err)
	} else {
		log.Warn().Err(err).Msg("JWT provider not available")
	}

	router, stop := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Onboarding:  onboarding.NewService(deps),
		Pool:        poolSvc,
		JWTProvider: jwtProvider,
		Ready:       ready,
		Logger:      log,
	})
	defer stop()

	// WriteTimeout covers a full provider round trip plus the login retry on resume.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
