package bootstrap

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/infra/blob"
	"github.com/devlog-hq/devlog/internal/infra/cache"
	"github.com/devlog-hq/devlog/internal/infra/db"
	"github.com/devlog-hq/devlog/internal/infra/github"
	"github.com/devlog-hq/devlog/internal/infra/logger"
	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/middleware"
	"github.com/devlog-hq/devlog/internal/modules/handler"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/router"
	"github.com/devlog-hq/devlog/internal/telemetry"
)

const (
	commitCachePrefix = "devlog:commits"
	loginLimitPrefix  = "devlog:ratelimit:login"
)

// BuildContainer registers every component lazily. Redis, RabbitMQ and S3
// are optional; when disabled their consumers get nil or a no-op.
func BuildContainer() *do.Injector {
	inj := do.New()
	do.ProvideValue(inj, &Closers{})

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level, cfg.App.Env)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		if telemetry.Enabled(cfg) {
			if err := db.RegisterOpenTelemetryPlugin(d); err != nil {
				return nil, err
			}
		}
		if sqlDB, err := d.DB(); err == nil {
			do.MustInvoke[*Closers](i).Add("database", sqlDB.Close)
		}
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(d, model.All()...); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.Redis.Enabled {
			return nil, nil
		}
		rdb, err := cache.New(cfg)
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*Closers](i).Add("redis", func() error { return cache.Close(rdb) })
		if telemetry.Enabled(cfg) {
			if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
				return nil, err
			}
		}
		return rdb, nil
	})

	// RabbitMQ
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.RabbitMQ.Enabled {
			return nil, nil
		}
		conn, err := mq.Dial(cfg)
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*Closers](i).Add("rabbitmq", conn.Close)
		return conn, nil
	})
	do.Provide(inj, func(i *do.Injector) (mq.ActivityPublisher, error) {
		conn := do.MustInvoke[*amqp.Connection](i)
		if conn == nil {
			return mq.Discard{}, nil
		}
		pub, err := mq.NewPublisher(conn, do.MustInvoke[*zap.Logger](i), do.MustInvoke[*config.Config](i))
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*Closers](i).Add("rabbitmq channel", pub.Close)
		return pub, nil
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (service.ExportStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.S3.Enabled {
			return nil, nil
		}
		s3, err := blob.NewS3(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return s3, nil
	})

	// GitHub
	do.Provide(inj, func(i *do.Injector) (service.CommitProvider, error) {
		return github.NewClient(do.MustInvoke[*config.Config](i), do.MustInvoke[*zap.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.CommitCache, error) {
		rdb := do.MustInvoke[*redis.Client](i)
		if rdb == nil {
			return nil, nil
		}
		return cache.NewJSON(rdb, commitCachePrefix), nil
	})

	do.Provide(inj, func(i *do.Injector) (*middleware.RateLimiter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := do.MustInvoke[*redis.Client](i)
		if rdb == nil || !cfg.RateLimit.Enabled {
			return nil, nil
		}
		return middleware.NewRateLimiter(rdb, loginLimitPrefix, cfg.RateLimit.Rate, cfg.RateLimit.Burst, do.MustInvoke[*zap.Logger](i)), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.UserRepo, error) {
		return repo.NewUserRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.AccountRepo, error) {
		return repo.NewAccountRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ProjectRepo, error) {
		return repo.NewProjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.EntryRepo, error) {
		return repo.NewEntryRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ReactionRepo, error) {
		return repo.NewReactionRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.CommentRepo, error) {
		return repo.NewCommentRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ForumRepo, error) {
		return repo.NewForumRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SearchRepo, error) {
		return repo.NewSearchRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.FeedRepo, error) {
		return repo.NewFeedRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.CredentialService, error) {
		return service.NewCredentialService(
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.AccountService, error) {
		return service.NewAccountService(
			do.MustInvoke[repo.AccountRepo](i),
			do.MustInvoke[service.ExportStore](i),
			do.MustInvoke[mq.ActivityPublisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.EntryService, error) {
		return service.NewEntryService(
			do.MustInvoke[repo.EntryRepo](i),
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[mq.ActivityPublisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ReactionService, error) {
		return service.NewReactionService(
			do.MustInvoke[repo.ReactionRepo](i),
			do.MustInvoke[mq.ActivityPublisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.CommentService, error) {
		return service.NewCommentService(
			do.MustInvoke[repo.CommentRepo](i),
			do.MustInvoke[repo.EntryRepo](i),
			do.MustInvoke[mq.ActivityPublisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ProjectService, error) {
		return service.NewProjectService(
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[mq.ActivityPublisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.CommitService, error) {
		return service.NewCommitService(
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[service.CommitProvider](i),
			do.MustInvoke[service.CommitCache](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ForumService, error) {
		return service.NewForumService(
			do.MustInvoke[repo.ForumRepo](i),
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[mq.ActivityPublisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.SearchService, error) {
		return service.NewSearchService(
			do.MustInvoke[repo.SearchRepo](i),
			do.MustInvoke[repo.EntryRepo](i),
			do.MustInvoke[repo.ForumRepo](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.FeedService, error) {
		return service.NewFeedService(
			do.MustInvoke[repo.FeedRepo](i),
			do.MustInvoke[repo.EntryRepo](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.AccountHandler, error) {
		return handler.NewAccountHandler(
			do.MustInvoke[service.CredentialService](i),
			do.MustInvoke[service.AccountService](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.EntryHandler, error) {
		return handler.NewEntryHandler(
			do.MustInvoke[service.EntryService](i),
			do.MustInvoke[service.ReactionService](i),
			do.MustInvoke[service.CommentService](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ProjectHandler, error) {
		return handler.NewProjectHandler(
			do.MustInvoke[service.ProjectService](i),
			do.MustInvoke[service.EntryService](i),
			do.MustInvoke[service.CommitService](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ForumHandler, error) {
		return handler.NewForumHandler(do.MustInvoke[service.ForumService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.SearchHandler, error) {
		return handler.NewSearchHandler(do.MustInvoke[service.SearchService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.FeedHandler, error) {
		return handler.NewFeedHandler(do.MustInvoke[service.FeedService](i)), nil
	})

	return inj
}

// RouterDeps collects everything the HTTP router needs from the container.
func RouterDeps(inj *do.Injector) router.RouterDeps {
	return router.RouterDeps{
		Config:         do.MustInvoke[*config.Config](inj),
		Log:            do.MustInvoke[*zap.Logger](inj),
		Credentials:    do.MustInvoke[service.CredentialService](inj),
		LoginLimiter:   do.MustInvoke[*middleware.RateLimiter](inj),
		AccountHandler: do.MustInvoke[*handler.AccountHandler](inj),
		EntryHandler:   do.MustInvoke[*handler.EntryHandler](inj),
		ProjectHandler: do.MustInvoke[*handler.ProjectHandler](inj),
		ForumHandler:   do.MustInvoke[*handler.ForumHandler](inj),
		SearchHandler:  do.MustInvoke[*handler.SearchHandler](inj),
		FeedHandler:    do.MustInvoke[*handler.FeedHandler](inj),
	}
}

// Close releases what the container opened, newest first, then flushes
// telemetry.
func Close(inj *do.Injector, timeout time.Duration) {
	log := do.MustInvoke[*zap.Logger](inj)
	do.MustInvoke[*Closers](inj).CloseAll(log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		log.Warn("shutdown tracing", zap.Error(err))
	}
	if err := telemetry.ShutdownMetrics(ctx); err != nil {
		log.Warn("shutdown metrics", zap.Error(err))
	}
	_ = log.Sync()
}
