package cli

import (
	"context"
	"fmt"

	"github.com/buildtall-systems/gifticon/internal/auth"
	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/config"
	"github.com/buildtall-systems/gifticon/internal/db"
	"github.com/buildtall-systems/gifticon/internal/logging"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.Verbose)
}

// openCatalog returns the catalog store and, when a feed database is
// configured, the open database that also serves as the contact directory.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*catalog.Store, *db.DB, error) {
	if cfg.Database.Path == "" {
		store, err := catalog.NewStore(catalog.DefaultProducts())
		return store, nil, err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		_ = database.Close()
		return nil, nil, err
	}

	if cfg.Database.Seed {
		n, err := database.CountProducts(ctx)
		if err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		if n == 0 {
			if err := database.SeedProducts(ctx, catalog.DefaultProducts()); err != nil {
				_ = database.Close()
				return nil, nil, err
			}
			logger.Info("seeded catalog feed", zap.String("path", cfg.Database.Path))
		}
	}

	products, err := database.LoadProducts(ctx)
	if err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	store, err := catalog.NewStore(products)
	if err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("loading catalog feed: %w", err)
	}
	logger.Info("catalog ready", zap.String("path", cfg.Database.Path), zap.Int("products", store.Len()))
	return store, database, nil
}

func newGateway(cfg *config.Config, logger *zap.Logger) payment.Gateway {
	if cfg.Payment.Endpoint != "" {
		logger.Info("using payment service", zap.String("endpoint", cfg.Payment.Endpoint))
		return payment.NewHTTPGateway(cfg.Payment.Endpoint, cfg.Payment.APIKey, logger)
	}
	logger.Info("using simulated payments",
		zap.Duration("latency", cfg.Payment.SimulatedLatency),
		zap.String("outcome", string(cfg.Payment.SimulatedOutcome)),
	)
	return payment.NewSimulated(cfg.Payment.SimulatedLatency, cfg.Payment.SimulatedOutcome)
}

func newTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.Tokens, func() error, error) {
	if cfg.Redis.Addr == "" {
		return auth.NewMemoryTokens(cfg.Auth.SessionTTL), func() error { return nil }, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("session store ready", zap.String("redis", cfg.Redis.Addr))
	return auth.NewRedisTokens(rdb, cfg.Auth.SessionTTL), rdb.Close, nil
}

func shareConfig(cfg *config.Config) share.Config {
	return share.Config{
		Brand:          cfg.Brand,
		GenericLinkURL: cfg.Share.GenericLinkURL,
		Supported:      cfg.Share.Channels,
	}
}
