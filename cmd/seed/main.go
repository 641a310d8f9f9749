// cmd/seed/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/pkg/bootstrap"
	"staybook/internal/pkg/database"
	"staybook/internal/pkg/logger"
	"staybook/internal/pkg/zookeeper"
	"staybook/internal/service/booking/infrastructure"
)

const (
	serviceName  = "catalog-seed"
	lockResource = "seed"
	seedTimeout  = 2 * time.Minute
)

// 清空并重新写入演示用的客房和促销。
// 配置了 ZooKeeper 时先拿分布式锁，避免多个部署任务同时重置数据。
func main() {
	cfg := bootstrap.Init(serviceName)
	if cfg.Database.Driver != "mysql" {
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("seeding requires the mysql driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()

	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		unlock, err := acquireLock(ctx, cfg.Infra.Zookeeper)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to acquire seed lock")
		}
		defer unlock()
	}

	db, err := database.OpenMySQL(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	store := infrastructure.NewDatabaseStorage(db)
	if err := store.AutoMigrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	logger.Info().Msg("Seeding database...")
	posts, promotions, err := infrastructure.SeedCatalog(ctx, store)
	if err != nil {
		logger.Fatal().Err(err).Int("posts", posts).Int("promotions", promotions).Msg("seeding failed")
	}
	logger.Info().Int("posts", posts).Int("promotions", promotions).Msg("Database seeded successfully!")
}

func acquireLock(ctx context.Context, cfg bootstrap.ZookeeperConfig) (func(), error) {
	conn, err := zookeeper.Connect(ctx, cfg.Servers, cfg.SessionTimeout)
	if err != nil {
		return nil, err
	}
	lock, err := zookeeper.NewDistributedLock(conn, lockResource)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info().Strs("servers", cfg.Servers).Msg("seed lock acquired")
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Error().Err(err).Msg("failed to release seed lock")
		}
		conn.Close()
	}, nil
}
