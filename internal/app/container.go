package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"github.com/qs3c/chatpay_server/config"
	"github.com/qs3c/chatpay_server/internal/api"
	"github.com/qs3c/chatpay_server/internal/api/handler"
	"github.com/qs3c/chatpay_server/internal/database"
	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/pkg/gateway"
	"github.com/qs3c/chatpay_server/internal/pkg/identity"
	"github.com/qs3c/chatpay_server/internal/pkg/lock"
	"github.com/qs3c/chatpay_server/internal/pkg/pubsub"
	"github.com/qs3c/chatpay_server/internal/pkg/signature"
	"github.com/qs3c/chatpay_server/internal/repository"
	"github.com/qs3c/chatpay_server/internal/service"
)

// Store 订阅存储，附带 billingctl 使用的查询
type Store interface {
	service.SubscriptionStore
	ListActivations(ctx context.Context, userID string) ([]model.SubscriptionActivation, error)
}

// Container 进程级依赖，每个客户端只构建一次
type Container struct {
	cfg    *config.Config
	logger *slog.Logger

	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error

	redisOnce sync.Once
	redis     *redis.Client
	redisErr  error

	mongoOnce   sync.Once
	mongoClient *mongo.Client
	mongoColl   *mongo.Collection
	mongoErr    error

	storeOnce sync.Once
	store     Store
	storeErr  error

	verifierOnce sync.Once
	verifier     *identity.JWTVerifier
	verifierErr  error

	gatewayOnce sync.Once
	gateway     *gateway.Client
}

func NewContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{cfg: cfg, logger: logger}
}

func (c *Container) Config() *config.Config {
	return c.cfg
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// DB 关系型数据库，首次打开时自动迁移
func (c *Container) DB() (*gorm.DB, error) {
	c.dbOnce.Do(func() {
		db, err := database.NewGorm(&c.cfg.Database)
		if err != nil {
			c.dbErr = err
			return
		}
		if err := database.Migrate(db); err != nil {
			c.dbErr = fmt.Errorf("failed to migrate database: %w", err)
			return
		}
		c.logger.Info("database connected", "driver", c.cfg.Database.Driver)
		c.db = db
	})
	return c.db, c.dbErr
}

func (c *Container) Redis() (*redis.Client, error) {
	c.redisOnce.Do(func() {
		c.redis, c.redisErr = database.NewRedis(&c.cfg.Redis)
		if c.redisErr == nil {
			c.logger.Info("redis connected", "host", c.cfg.Redis.Host, "port", c.cfg.Redis.Port)
		}
	})
	return c.redis, c.redisErr
}

// Mongo 用户集合
func (c *Container) Mongo(ctx context.Context) (*mongo.Collection, error) {
	c.mongoOnce.Do(func() {
		c.mongoClient, c.mongoColl, c.mongoErr = database.NewMongo(ctx, &c.cfg.Mongo)
		if c.mongoErr == nil {
			c.logger.Info("mongo connected", "database", c.cfg.Mongo.Database, "collection", c.cfg.Mongo.Collection)
		}
	})
	return c.mongoColl, c.mongoErr
}

// Store 按 database.driver 选择 gorm 或 mongo 实现
func (c *Container) Store(ctx context.Context) (Store, error) {
	c.storeOnce.Do(func() {
		if c.cfg.Database.Driver == config.DriverMongo {
			coll, err := c.Mongo(ctx)
			if err != nil {
				c.storeErr = err
				return
			}
			repo := repository.NewMongoSubscriptionRepository(coll)
			if err := repo.EnsureIndexes(ctx); err != nil {
				c.storeErr = fmt.Errorf("failed to ensure mongo indexes: %w", err)
				return
			}
			c.store = repo
			return
		}

		db, err := c.DB()
		if err != nil {
			c.storeErr = err
			return
		}
		c.store = repository.NewSubscriptionRepository(db)
	})
	return c.store, c.storeErr
}

func (c *Container) Verifier() (identity.Verifier, error) {
	c.verifierOnce.Do(func() {
		c.verifier, c.verifierErr = identity.NewJWTVerifier(c.cfg.Identity)
	})
	if c.verifierErr != nil {
		return nil, c.verifierErr
	}
	return c.verifier, nil
}

func (c *Container) Gateway() *gateway.Client {
	c.gatewayOnce.Do(func() {
		c.gateway = gateway.NewClient(c.cfg.Payment, c.logger)
	})
	return c.gateway
}

func (c *Container) Locker() (*lock.RedisLocker, error) {
	client, err := c.Redis()
	if err != nil {
		return nil, err
	}
	return lock.NewRedisLocker(client, c.cfg.Lock.TTL, c.cfg.Lock.Wait).WithLogger(c.logger), nil
}

func (c *Container) Publisher() (*pubsub.Publisher, error) {
	client, err := c.Redis()
	if err != nil {
		return nil, err
	}
	return pubsub.NewPublisher(client), nil
}

// HealthChecks 存储与 Redis 的连通性检查
func (c *Container) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"redis": func(ctx context.Context) error {
			client, err := c.Redis()
			if err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		},
	}

	if c.cfg.Database.Driver == config.DriverMongo {
		checks["mongo"] = func(ctx context.Context) error {
			if _, err := c.Mongo(ctx); err != nil {
				return err
			}
			return c.mongoClient.Ping(ctx, nil)
		}
		return checks
	}

	checks["database"] = func(ctx context.Context) error {
		db, err := c.DB()
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return checks
}

// Router 组装服务和 handler
func (c *Container) Router(ctx context.Context) (*api.Router, error) {
	store, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	verifier, err := c.Verifier()
	if err != nil {
		return nil, err
	}
	locker, err := c.Locker()
	if err != nil {
		return nil, err
	}
	publisher, err := c.Publisher()
	if err != nil {
		return nil, err
	}

	orderService := service.NewOrderService(c.Gateway(), c.cfg, c.logger)
	subscriptionService := service.NewSubscriptionService(store, signature.NewVerifier(c.cfg.Payment.KeySecret), locker, publisher, c.logger)
	quotaService := service.NewQuotaService(store)

	return api.NewRouter(
		handler.NewPaymentHandler(orderService, subscriptionService, verifier, c.logger),
		handler.NewSubscriptionHandler(subscriptionService, c.logger),
		handler.NewQuotaHandler(quotaService, c.logger),
		handler.NewPlanHandler(),
		handler.NewHealthHandler(c.HealthChecks(), c.logger),
		quotaService,
		verifier,
		c.logger,
		c.cfg,
	), nil
}

// Close 关闭已经建立的连接
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.mongoClient != nil {
		errs = append(errs, c.mongoClient.Disconnect(ctx))
	}
	return errors.Join(errs...)
}
