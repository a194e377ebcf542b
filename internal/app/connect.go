package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cenkalti/backoff/v4"
	nats "github.com/nats-io/nats.go"
	"google.golang.org/api/option"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/lifeleveling/lifeleveling/config"
	fsrepo "github.com/lifeleveling/lifeleveling/internal/adapters/firestore"
	repo "github.com/lifeleveling/lifeleveling/internal/adapters/postgres"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagApp = "App"

type stores struct {
	users  domain.UserRepository
	audit  domain.AuthLogRepository
	tokens domain.PushTokenRepository
	db     *gorm.DB
	fs     *firestore.Client
}

// retry runs op with exponential backoff until it succeeds, maxElapsed
// passes or ctx is done. It is only used while bootstrapping connections.
func retry(ctx context.Context, maxElapsed time.Duration, logger pkglog.Logger, what string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	notify := func(err error, next time.Duration) {
		logger.Warn(tagApp, what+" failed, retrying", err, pkglog.Fields{"next": next.String()})
	}
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

func openStores(ctx context.Context, cfg *config.Config, logger pkglog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		return openFirestore(ctx, cfg)
	case config.StorePostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openFirestore(ctx context.Context, cfg *config.Config) (*stores, error) {
	var opts []option.ClientOption
	if cfg.FirestoreCredentials != "" && cfg.FirestoreEmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirestoreCredentials))
	}
	client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &stores{
		users:  fsrepo.NewUserRepository(client),
		audit:  fsrepo.NewAuthLogRepository(client),
		tokens: fsrepo.NewPushTokenRepository(client),
		fs:     client,
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log pkglog.Logger) (*stores, error) {
	var db *gorm.DB
	err := retry(ctx, 30*time.Second, log, "postgres connect", func() error {
		var err error
		db, err = gorm.Open(postgres.Open(buildDSN(cfg)), &gorm.Config{
			Logger:         loggerForGorm(cfg),
			NamingStrategy: schema.NamingStrategy{SingularTable: true},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(repo.Models()...); err != nil {
		return nil, err
	}
	return &stores{
		users:  repo.NewUserRepository(db),
		audit:  repo.NewAuthLogRepository(db),
		tokens: repo.NewPushTokenRepository(db),
		db:     db,
	}, nil
}

func (s *stores) close() {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.fs != nil {
		_ = s.fs.Close()
	}
}

// connectNATS returns nil when the broker stays unreachable; push delivery is
// then limited to the HTTP bridge.
func connectNATS(ctx context.Context, cfg *config.Config, logger pkglog.Logger) *nats.Conn {
	var nc *nats.Conn
	err := retry(ctx, cfg.NATSConnectWait, logger, "nats connect", func() error {
		var err error
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName+"-"+cfg.DeviceID), nats.MaxReconnects(-1))
		return err
	})
	if err != nil {
		logger.Warn(tagApp, "nats unavailable, push subscriber disabled", err, pkglog.Fields{"url": cfg.NATSURL})
		return nil
	}
	return nc
}

func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

func loggerForGorm(cfg *config.Config) logger.Interface {
	level := logger.Silent
	switch cfg.AppEnv {
	case "local":
		level = logger.Info
	default:
		level = logger.Warn
	}
	return logger.Default.LogMode(level)
}
